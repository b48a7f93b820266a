package repositories

import (
	"context"

	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrDeliveryNotFound is returned when a mutation targets a delivery id
// that does not exist in the requested partition.
var ErrDeliveryNotFound = errors.New("delivery not found in partition")

// PatientDeliveriesKey generates the storage key for a patient's deliveries
func PatientDeliveriesKey(patientID string) string {
	return "medifly:deliveries:patient:" + patientID
}

// DoctorDeliveriesKey generates the storage key for a doctor's deliveries
func DoctorDeliveriesKey(doctorID string) string {
	return "medifly:deliveries:doctor:" + doctorID
}

// DeliveryRepository provides access to the per-owner delivery partitions.
// Patient and doctor copies of a delivery live in separate lists; callers
// that know both owners are responsible for mutating both.
type DeliveryRepository struct {
	store *store.RedisStore
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(s *store.RedisStore) *DeliveryRepository {
	return &DeliveryRepository{store: s}
}

func partitionKey(partition models.Partition, ownerID string) string {
	if partition == models.PartitionDoctor {
		return DoctorDeliveriesKey(ownerID)
	}
	return PatientDeliveriesKey(ownerID)
}

// load reads one partition. A missing key or a malformed blob both come
// back as an empty list; the store recovers rather than failing startup.
func (r *DeliveryRepository) load(ctx context.Context, key string) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.store.GetJSON(ctx, key, &deliveries)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable delivery partition")
		return nil, nil
	}
	return deliveries, nil
}

// ListByPatient returns all deliveries in a patient's partition.
func (r *DeliveryRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Delivery, error) {
	return r.load(ctx, PatientDeliveriesKey(patientID))
}

// ListByDoctor returns all deliveries in a doctor's partition.
func (r *DeliveryRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.Delivery, error) {
	return r.load(ctx, DoctorDeliveriesKey(doctorID))
}

// Get looks up one delivery inside one partition.
func (r *DeliveryRepository) Get(ctx context.Context, deliveryID string, partition models.Partition, ownerID string) (*models.Delivery, error) {
	deliveries, err := r.load(ctx, partitionKey(partition, ownerID))
	if err != nil {
		return nil, err
	}
	for i := range deliveries {
		if deliveries[i].ID == deliveryID {
			return &deliveries[i], nil
		}
	}
	return nil, ErrDeliveryNotFound
}

// Save prepends a delivery to the partition, replacing any prior entry
// with the same id. The partition is re-read immediately before the write
// so concurrent saves on the same tick are not clobbered.
func (r *DeliveryRepository) Save(ctx context.Context, delivery models.Delivery, partition models.Partition, ownerID string) error {
	key := partitionKey(partition, ownerID)

	existing, err := r.load(ctx, key)
	if err != nil {
		return err
	}

	updated := make([]models.Delivery, 0, len(existing)+1)
	updated = append(updated, delivery)
	for _, d := range existing {
		if d.ID != delivery.ID {
			updated = append(updated, d)
		}
	}

	if err := r.store.SetJSON(ctx, key, updated); err != nil {
		return errors.Wrap(err, "failed to save delivery")
	}

	r.publishChange(ctx, key)
	return nil
}

// Update applies a partial update to one delivery inside one partition.
// A missing delivery is logged and reported as ErrDeliveryNotFound; the
// partition itself is left untouched in that case.
func (r *DeliveryRepository) Update(ctx context.Context, deliveryID string, update models.DeliveryUpdate, partition models.Partition, ownerID string) error {
	key := partitionKey(partition, ownerID)

	deliveries, err := r.load(ctx, key)
	if err != nil {
		return err
	}

	found := false
	for i := range deliveries {
		if deliveries[i].ID == deliveryID {
			update.Apply(&deliveries[i])
			found = true
			break
		}
	}

	if !found {
		log.Warn().
			Str("delivery_id", deliveryID).
			Str("partition", string(partition)).
			Str("owner_id", ownerID).
			Msg("Delivery not found in partition, skipping update")
		return ErrDeliveryNotFound
	}

	if err := r.store.SetJSON(ctx, key, deliveries); err != nil {
		return errors.Wrap(err, "failed to update delivery partition")
	}

	r.publishChange(ctx, key)
	return nil
}

func (r *DeliveryRepository) publishChange(ctx context.Context, key string) {
	if err := r.store.PublishChange(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to publish partition change event")
	}
}
