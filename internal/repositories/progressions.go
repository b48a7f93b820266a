package repositories

import (
	"context"

	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ProgressionsKey is the single well-known key holding the list of active
// delivery progressions.
const ProgressionsKey = "medifly:progressions"

// ProgressionRepository persists the schedule records the progression
// scheduler reconstructs its timers from after a restart.
type ProgressionRepository struct {
	store *store.RedisStore
}

// NewProgressionRepository creates a new progression repository
func NewProgressionRepository(s *store.RedisStore) *ProgressionRepository {
	return &ProgressionRepository{store: s}
}

// List returns all persisted progressions, newest first. A missing key or
// a malformed blob both come back as an empty list.
func (r *ProgressionRepository) List(ctx context.Context) ([]models.DeliveryProgression, error) {
	var progressions []models.DeliveryProgression
	err := r.store.GetJSON(ctx, ProgressionsKey, &progressions)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		log.Warn().Err(err).Msg("Discarding unreadable progression list")
		return nil, nil
	}
	return progressions, nil
}

// Put stores a progression, replacing any prior record for the same
// delivery id. The list is re-read immediately before the write.
func (r *ProgressionRepository) Put(ctx context.Context, progression models.DeliveryProgression) error {
	existing, err := r.List(ctx)
	if err != nil {
		return err
	}

	updated := make([]models.DeliveryProgression, 0, len(existing)+1)
	updated = append(updated, progression)
	for _, p := range existing {
		if p.DeliveryID != progression.DeliveryID {
			updated = append(updated, p)
		}
	}

	if err := r.store.SetJSON(ctx, ProgressionsKey, updated); err != nil {
		return errors.Wrap(err, "failed to save progression")
	}
	return nil
}

// Get returns the progression for a delivery id, or nil if none exists.
func (r *ProgressionRepository) Get(ctx context.Context, deliveryID string) (*models.DeliveryProgression, error) {
	progressions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range progressions {
		if progressions[i].DeliveryID == deliveryID {
			return &progressions[i], nil
		}
	}
	return nil, nil
}

// Remove deletes the progression for a delivery id. Removing an id with no
// record is a no-op.
func (r *ProgressionRepository) Remove(ctx context.Context, deliveryID string) error {
	existing, err := r.List(ctx)
	if err != nil {
		return err
	}

	updated := existing[:0]
	for _, p := range existing {
		if p.DeliveryID != deliveryID {
			updated = append(updated, p)
		}
	}

	if err := r.store.SetJSON(ctx, ProgressionsKey, updated); err != nil {
		return errors.Wrap(err, "failed to remove progression")
	}
	return nil
}

// Clear erases every persisted progression record.
func (r *ProgressionRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, ProgressionsKey); err != nil {
		return errors.Wrap(err, "failed to clear progressions")
	}
	return nil
}
