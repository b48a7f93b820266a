package progression

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultCleanupGrace separates the delivered mutation from removal of the
// progression record, so views still reading the progression during the
// transition briefly see the completed state instead of an abrupt
// disappearance.
const DefaultCleanupGrace = time.Second

// DeliveryStore is the slice of the delivery repository the scheduler
// mutates deliveries through.
type DeliveryStore interface {
	Get(ctx context.Context, deliveryID string, partition models.Partition, ownerID string) (*models.Delivery, error)
	Update(ctx context.Context, deliveryID string, update models.DeliveryUpdate, partition models.Partition, ownerID string) error
}

// ProgressionStore persists schedules so they survive restarts.
type ProgressionStore interface {
	List(ctx context.Context) ([]models.DeliveryProgression, error)
	Put(ctx context.Context, progression models.DeliveryProgression) error
	Get(ctx context.Context, deliveryID string) (*models.DeliveryProgression, error)
	Remove(ctx context.Context, deliveryID string) error
	Clear(ctx context.Context) error
}

// Notifier receives fire-and-forget announcements at transition points.
type Notifier interface {
	DeliveryDispatched(ctx context.Context, deliveryID, patientID, droneID string)
	DeliveryCompleted(ctx context.Context, deliveryID, patientID string, actualTime float64)
}

// Scheduler drives deliveries through two time-boxed phases, mutating the
// visible status at the correct wall-clock moments and surviving restarts
// by reconstructing timers from persisted state. All mutation paths are
// best-effort: a failed write is logged and only corrected by the next
// reconciliation pass.
type Scheduler struct {
	deliveries   DeliveryStore
	progressions ProgressionStore
	notifier     Notifier
	metrics      *metrics.Metrics
	cleanupGrace time.Duration

	mu     sync.Mutex
	timers map[string][]*time.Timer

	// applyMu serializes the phase mutations: with zero-length phases both
	// timers fire at once, and each status check must be atomic with its
	// write or a late dispatch can roll back a completion.
	applyMu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// NewScheduler creates a new progression scheduler. A non-positive
// cleanupGrace falls back to DefaultCleanupGrace.
func NewScheduler(deliveries DeliveryStore, progressions ProgressionStore, notifier Notifier, m *metrics.Metrics, cleanupGrace time.Duration) *Scheduler {
	if cleanupGrace <= 0 {
		cleanupGrace = DefaultCleanupGrace
	}
	return &Scheduler{
		deliveries:   deliveries,
		progressions: progressions,
		notifier:     notifier,
		metrics:      m,
		cleanupGrace: cleanupGrace,
		timers:       make(map[string][]*time.Timer),
		now:          time.Now,
	}
}

// Start begins automatic progression for a delivery. Any existing
// progression for the same id is cancelled and replaced. Durations are
// minutes and may be fractional; only invalid (negative or non-finite)
// durations are rejected.
func (s *Scheduler) Start(ctx context.Context, deliveryID, patientID, doctorID string, estimatedTime, preparationTime float64) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	if err := validateDuration("preparation time", preparationTime); err != nil {
		return err
	}
	if err := validateDuration("estimated time", estimatedTime); err != nil {
		return err
	}

	// No two timers for the same phase may ever coexist.
	s.Cancel(deliveryID)

	progression := models.DeliveryProgression{
		DeliveryID:      deliveryID,
		PatientID:       patientID,
		DoctorID:        doctorID,
		ApprovedAt:      s.now(),
		PreparationTime: preparationTime,
		EstimatedTime:   estimatedTime,
	}

	if err := s.progressions.Put(ctx, progression); err != nil {
		// The timers still run for this process; only restart recovery
		// is lost for this delivery.
		log.Error().Err(err).Str("delivery_id", deliveryID).Msg("Failed to persist progression")
	}

	log.Info().
		Str("delivery_id", deliveryID).
		Float64("preparation_time", preparationTime).
		Float64("estimated_time", estimatedTime).
		Msg("Starting delivery progression")

	s.schedule(progression,
		minutesToDuration(progression.PreparationTime),
		minutesToDuration(progression.TotalTime()),
		true)

	s.metrics.IncrementCounter(metrics.CounterProgressionsStarted)
	return nil
}

// Cancel stops any pending phase timers for a delivery without mutating
// the delivery record. Idempotent if none exist.
func (s *Scheduler) Cancel(deliveryID string) {
	s.mu.Lock()
	timers := s.timers[deliveryID]
	delete(s.timers, deliveryID)
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

// ResumeAll reloads persisted progressions and reconciles each against the
// wall clock: matured progressions are completed immediately with a
// back-dated delivery time, mid-flight ones get their remaining timers.
// Safe to call repeatedly; it never double-schedules or double-notifies.
func (s *Scheduler) ResumeAll(ctx context.Context) error {
	progressions, err := s.progressions.List(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load persisted progressions")
	}

	now := s.now()
	for _, p := range progressions {
		s.resume(ctx, p, now)
	}
	return nil
}

// Get returns the persisted progression for a delivery, or nil if none
// is active. The view layer uses this to render remaining time without
// owning any timers itself.
func (s *Scheduler) Get(ctx context.Context, deliveryID string) (*models.DeliveryProgression, error) {
	return s.progressions.Get(ctx, deliveryID)
}

// IsActive reports whether a delivery is in automatic progression.
func (s *Scheduler) IsActive(ctx context.Context, deliveryID string) bool {
	p, err := s.progressions.Get(ctx, deliveryID)
	if err != nil {
		log.Warn().Err(err).Str("delivery_id", deliveryID).Msg("Failed to look up progression")
		return false
	}
	return p != nil
}

// ClearAll cancels every pending timer and erases all persisted
// progression records. Used for demo reset.
func (s *Scheduler) ClearAll(ctx context.Context) error {
	s.Shutdown()

	if err := s.progressions.Clear(ctx); err != nil {
		return errors.Wrap(err, "failed to clear progressions")
	}

	log.Info().Msg("All delivery progressions cleared")
	return nil
}

// Shutdown stops every pending timer without touching persisted state, so
// a later ResumeAll can pick the schedules back up.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	all := s.timers
	s.timers = make(map[string][]*time.Timer)
	s.mu.Unlock()

	for _, timers := range all {
		for _, t := range timers {
			t.Stop()
		}
	}
}

func (s *Scheduler) resume(ctx context.Context, p models.DeliveryProgression, now time.Time) {
	elapsed := now.Sub(p.ApprovedAt).Minutes()

	// Any timers a previous pass registered are replaced, never doubled.
	s.Cancel(p.DeliveryID)

	switch {
	case elapsed >= p.TotalTime():
		// The progression matured while the process was not running.
		// Complete it immediately with a back-dated delivery time.
		deliveredAt := p.ApprovedAt.Add(minutesToDuration(p.TotalTime()))
		log.Info().
			Str("delivery_id", p.DeliveryID).
			Time("delivered_at", deliveredAt).
			Msg("Marking overdue delivery as delivered")

		s.applyCompleted(ctx, p, deliveredAt, p.TotalTime())
		if err := s.progressions.Remove(ctx, p.DeliveryID); err != nil {
			log.Warn().Err(err).Str("delivery_id", p.DeliveryID).Msg("Failed to remove matured progression")
		}

	case elapsed >= p.PreparationTime:
		// Mid-flight: dispatch now (back-dated) unless an earlier pass
		// already did, then schedule only the remaining completion.
		dispatchedAt := p.ApprovedAt.Add(minutesToDuration(p.PreparationTime))
		s.applyDispatched(ctx, p, dispatchedAt)

		remaining := p.TotalTime() - elapsed
		s.scheduleCompletion(p, minutesToDuration(remaining), false)

	default:
		// Still in preparation: both deadlines move up by the elapsed time.
		s.schedule(p,
			minutesToDuration(p.PreparationTime-elapsed),
			minutesToDuration(p.TotalTime()-elapsed),
			false)
	}

	s.metrics.IncrementCounter(metrics.CounterProgressionsResumed)
}

// schedule registers both phase timers for a progression.
func (s *Scheduler) schedule(p models.DeliveryProgression, prepDelay, totalDelay time.Duration, jitter bool) {
	prepTimer := time.AfterFunc(prepDelay, func() {
		s.applyDispatched(context.Background(), p, s.now())
	})

	s.mu.Lock()
	s.timers[p.DeliveryID] = append(s.timers[p.DeliveryID], prepTimer)
	s.mu.Unlock()

	s.scheduleCompletion(p, totalDelay, jitter)
}

// scheduleCompletion registers only the delivery-end timer.
func (s *Scheduler) scheduleCompletion(p models.DeliveryProgression, delay time.Duration, jitter bool) {
	timer := time.AfterFunc(delay, func() {
		actualTime := p.TotalTime()
		if jitter {
			// Cosmetic variance of up to +-2.5 minutes on the reported time.
			actualTime = math.Max(0, actualTime+(rand.Float64()-0.5)*5)
		}
		s.applyCompleted(context.Background(), p, s.now(), actualTime)
		s.cleanup(p)
	})

	s.mu.Lock()
	s.timers[p.DeliveryID] = append(s.timers[p.DeliveryID], timer)
	s.mu.Unlock()
}

// applyDispatched moves a delivery to in-transit in every partition whose
// owner is known, assigns a drone, and notifies observers. Skipped when
// the delivery already left the pending phase, which keeps repeated
// reconciliation passes from double-notifying.
func (s *Scheduler) applyDispatched(ctx context.Context, p models.DeliveryProgression, dispatchedAt time.Time) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if current := s.lookup(ctx, p); current != nil && current.Status != models.StatusPending {
		log.Debug().
			Str("delivery_id", p.DeliveryID).
			Str("status", string(current.Status)).
			Msg("Delivery already past preparation, skipping dispatch")
		return
	}

	droneID := newDroneID()
	status := models.StatusInTransit
	update := models.DeliveryUpdate{
		Status:       &status,
		DroneID:      &droneID,
		DispatchedAt: &dispatchedAt,
	}

	log.Info().
		Str("delivery_id", p.DeliveryID).
		Str("drone_id", droneID).
		Msg("Medication preparation completed, dispatching drone")

	s.applyBoth(ctx, p, update)
	s.notifier.DeliveryDispatched(ctx, p.DeliveryID, p.PatientID, droneID)
	s.metrics.IncrementCounter(metrics.CounterDeliveriesDispatched)
}

// applyCompleted moves a delivery to delivered in every partition whose
// owner is known and notifies observers.
func (s *Scheduler) applyCompleted(ctx context.Context, p models.DeliveryProgression, deliveredAt time.Time, actualTime float64) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if current := s.lookup(ctx, p); current != nil && current.Status == models.StatusDelivered {
		log.Debug().Str("delivery_id", p.DeliveryID).Msg("Delivery already completed, skipping")
		return
	}

	status := models.StatusDelivered
	update := models.DeliveryUpdate{
		Status:      &status,
		DeliveredAt: &deliveredAt,
		ActualTime:  &actualTime,
	}

	log.Info().
		Str("delivery_id", p.DeliveryID).
		Float64("actual_time", actualTime).
		Msg("Delivery completed")

	s.applyBoth(ctx, p, update)
	s.notifier.DeliveryCompleted(ctx, p.DeliveryID, p.PatientID, actualTime)
	s.metrics.IncrementCounter(metrics.CounterDeliveriesCompleted)
}

// applyBoth mutates the patient and doctor copies of the delivery. Both
// partitions must reflect the same state so either party's dashboard
// agrees on it. Failures are logged and never abort the other write.
func (s *Scheduler) applyBoth(ctx context.Context, p models.DeliveryProgression, update models.DeliveryUpdate) {
	if p.PatientID != "" {
		if err := s.deliveries.Update(ctx, p.DeliveryID, update, models.PartitionPatient, p.PatientID); err != nil {
			log.Warn().Err(err).Str("delivery_id", p.DeliveryID).Msg("Failed to update patient delivery")
			s.metrics.IncrementCounter(metrics.CounterMutationFailures)
		}
	}
	if p.DoctorID != "" {
		if err := s.deliveries.Update(ctx, p.DeliveryID, update, models.PartitionDoctor, p.DoctorID); err != nil {
			log.Warn().Err(err).Str("delivery_id", p.DeliveryID).Msg("Failed to update doctor delivery")
			s.metrics.IncrementCounter(metrics.CounterMutationFailures)
		}
	}
}

// lookup reads the delivery's current state from whichever partition has
// a known owner. Returns nil when no copy can be found.
func (s *Scheduler) lookup(ctx context.Context, p models.DeliveryProgression) *models.Delivery {
	if p.PatientID != "" {
		if d, err := s.deliveries.Get(ctx, p.DeliveryID, models.PartitionPatient, p.PatientID); err == nil {
			return d
		}
	}
	if p.DoctorID != "" {
		if d, err := s.deliveries.Get(ctx, p.DeliveryID, models.PartitionDoctor, p.DoctorID); err == nil {
			return d
		}
	}
	return nil
}

// cleanup removes the persisted progression record after the grace delay,
// then drops the timer bookkeeping for the id. If the id was restarted
// during the grace window the newer progression is left alone.
func (s *Scheduler) cleanup(p models.DeliveryProgression) {
	time.AfterFunc(s.cleanupGrace, func() {
		ctx := context.Background()

		stored, err := s.progressions.Get(ctx, p.DeliveryID)
		if err != nil {
			log.Warn().Err(err).Str("delivery_id", p.DeliveryID).Msg("Failed to read progression during cleanup")
			return
		}
		if stored != nil && !stored.ApprovedAt.Equal(p.ApprovedAt) {
			return
		}

		if err := s.progressions.Remove(ctx, p.DeliveryID); err != nil {
			log.Warn().Err(err).Str("delivery_id", p.DeliveryID).Msg("Failed to remove completed progression")
		}
		s.Cancel(p.DeliveryID)
	})
}

func validateDuration(name string, minutes float64) error {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return errors.Errorf("%s must be a finite number of minutes", name)
	}
	if minutes < 0 {
		return errors.Errorf("%s must not be negative, got %v", name, minutes)
	}
	return nil
}

func minutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}

func newDroneID() string {
	return fmt.Sprintf("DR-%d", rand.Intn(999)+100)
}
