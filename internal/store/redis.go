package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/medifly/services/delivery/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ChangeChannel carries the key of every partition that gets rewritten, so
// open dashboards can refresh the affected list without polling.
const ChangeChannel = "medifly:changes"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found in store")

// RedisStore persists JSON blobs under namespaced keys and broadcasts
// change events when a partition is rewritten.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests that run
// against an embedded Redis.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetJSON reads the blob stored under key into dest. Returns ErrNotFound
// when the key does not exist; a decode failure is returned as-is so
// callers can decide whether to treat the value as empty.
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, "failed to unmarshal stored value")
	}

	return nil
}

// SetJSON writes value as a JSON blob under key.
func (s *RedisStore) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for storage")
	}

	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "failed to delete key from Redis")
	}
	return nil
}

// PublishChange announces that the partition stored under key was rewritten.
func (s *RedisStore) PublishChange(ctx context.Context, key string) error {
	if err := s.client.Publish(ctx, ChangeChannel, key).Err(); err != nil {
		return errors.Wrap(err, "failed to publish change event")
	}
	return nil
}

// SubscribeChanges returns a channel of rewritten partition keys. The
// subscription is closed when ctx is cancelled.
func (s *RedisStore) SubscribeChanges(ctx context.Context) <-chan string {
	sub := s.client.Subscribe(ctx, ChangeChannel)
	out := make(chan string)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
