package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/progression"
	"example.com/medifly/services/delivery/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	baseDeliveryCost       = 15.0
	emergencySurcharge     = 10.0
	costPerMedicine        = 5.0
	emergencyEstimatedTime = 10.0
	routineEstimatedTime   = 25.0
	// defaultEstimatedTime is the progression fallback when a stored
	// delivery carries no estimate of its own.
	defaultEstimatedTime = 15.0
	// minimumFlightTime is the floor on the in-flight window after the
	// preparation phase is carved out of the overall estimate.
	minimumFlightTime = 5.0
)

// scheduler is the slice of the progression scheduler this service drives.
type scheduler interface {
	Start(ctx context.Context, deliveryID, patientID, doctorID string, estimatedTime, preparationTime float64) error
	Cancel(deliveryID string)
	Get(ctx context.Context, deliveryID string) (*models.DeliveryProgression, error)
	ClearAll(ctx context.Context) error
}

// notifier announces request lifecycle events to the parties involved.
type notifier interface {
	OrderPlaced(ctx context.Context, delivery models.Delivery)
	OrderApproved(ctx context.Context, delivery models.Delivery, doctorName string)
	OrderDenied(ctx context.Context, delivery models.Delivery, reason string)
}

// Catalog resolves medicine ids against the catalog database.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*models.Medicine, error)
}

// DeliveryRequest is the input for creating a new delivery.
type DeliveryRequest struct {
	PatientID           string
	PatientName         string
	DoctorID            string
	RequestedBy         string
	Medicines           []models.MedicineOrder
	IsEmergency         bool
	UrgencyLevel        string
	SpecialInstructions string
	PrescriptionID      string
	Distance            string
}

// TrackingInfo is the combined view of a delivery and its progression
// returned to the tracking page.
type TrackingInfo struct {
	Delivery    models.Delivery             `json:"delivery"`
	Progression *models.DeliveryProgression `json:"progression,omitempty"`
	Snapshot    *progression.Snapshot       `json:"snapshot,omitempty"`
}

// DeliveryService handles delivery request business logic: creation,
// approval, denial, and tracking. Status transitions after approval are
// owned by the progression scheduler.
type DeliveryService struct {
	deliveries *repositories.DeliveryRepository
	scheduler  scheduler
	notifier   notifier
	catalog    Catalog
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDeliveryService creates a new delivery service. The catalog may be
// nil when no catalog database is configured; medicine names in requests
// are then used as given.
func NewDeliveryService(deliveries *repositories.DeliveryRepository, sched scheduler, n notifier, c Catalog, m *metrics.Metrics) *DeliveryService {
	return &DeliveryService{
		deliveries: deliveries,
		scheduler:  sched,
		notifier:   n,
		catalog:    c,
		metrics:    m,
		now:        time.Now,
	}
}

// CreateRequest builds and stores a new delivery from a request. Emergency
// requests are auto-approved and their progression starts immediately.
func (s *DeliveryService) CreateRequest(ctx context.Context, req DeliveryRequest) (*models.Delivery, error) {
	if req.PatientID == "" {
		return nil, errors.New("patient_id is required")
	}

	orders := s.resolveMedicines(ctx, req.Medicines)

	delivery := models.Delivery{
		ID:             generateDeliveryID(),
		MedicationName: medicationNames(orders),
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		DoctorID:       req.DoctorID,
		Status:         models.StatusPending,
		Priority:       priorityFromRequest(req),
		ApprovalStatus: models.ApprovalPending,
		RequestedAt:    s.now(),
		RequestedBy:    req.RequestedBy,
		EstimatedTime:  routineEstimatedTime,
		Distance:       req.Distance,
		Cost:           calculateCost(req),
		Quantity:       joinQuantities(orders),
		Dosage:         joinDosages(orders),
		Notes:          req.SpecialInstructions,
		PrescriptionID: req.PrescriptionID,
	}
	if req.IsEmergency {
		delivery.EstimatedTime = emergencyEstimatedTime
		delivery.ApprovalStatus = models.ApprovalAutoApproved
	}

	if err := s.deliveries.Save(ctx, delivery, models.PartitionPatient, req.PatientID); err != nil {
		return nil, errors.Wrap(err, "failed to save patient delivery")
	}
	// Patient requests also land in the assigned doctor's queue so the
	// doctor can review them.
	if req.DoctorID != "" {
		if err := s.deliveries.Save(ctx, delivery, models.PartitionDoctor, req.DoctorID); err != nil {
			return nil, errors.Wrap(err, "failed to save doctor delivery")
		}
	}

	s.notifier.OrderPlaced(ctx, delivery)
	s.metrics.IncrementCounter(metrics.CounterRequestsCreated)

	log.Info().
		Str("delivery_id", delivery.ID).
		Str("patient_id", delivery.PatientID).
		Str("priority", string(delivery.Priority)).
		Msg("Delivery request created")

	if req.IsEmergency {
		s.startProgression(ctx, delivery)
	}

	return &delivery, nil
}

// Approve records a doctor's approval and hands the delivery to the
// progression scheduler.
func (s *DeliveryService) Approve(ctx context.Context, deliveryID, doctorID, patientID string) error {
	delivery, err := s.find(ctx, deliveryID, doctorID, patientID)
	if err != nil {
		return err
	}

	approvedAt := s.now()
	approval := models.ApprovalApproved
	status := models.StatusPending
	update := models.DeliveryUpdate{
		ApprovalStatus: &approval,
		Status:         &status,
		ApprovedBy:     &doctorID,
		ApprovedAt:     &approvedAt,
	}
	s.updateBoth(ctx, deliveryID, update, patientID, doctorID)

	delivery.ApprovalStatus = approval
	delivery.ApprovedBy = doctorID
	s.notifier.OrderApproved(ctx, *delivery, doctorID)
	s.metrics.IncrementCounter(metrics.CounterRequestsApproved)

	s.startProgression(ctx, *delivery)
	return nil
}

// Deny records a doctor's denial and cancels any pending progression.
func (s *DeliveryService) Deny(ctx context.Context, deliveryID, doctorID, patientID, reason string) error {
	delivery, err := s.find(ctx, deliveryID, doctorID, patientID)
	if err != nil {
		return err
	}

	// Notify before the mutation so the message reflects the order as
	// the patient last saw it.
	s.notifier.OrderDenied(ctx, *delivery, reason)

	approvedAt := s.now()
	approval := models.ApprovalDenied
	status := models.StatusCancelled
	update := models.DeliveryUpdate{
		ApprovalStatus: &approval,
		Status:         &status,
		ApprovedBy:     &doctorID,
		ApprovedAt:     &approvedAt,
	}
	s.updateBoth(ctx, deliveryID, update, patientID, doctorID)

	s.scheduler.Cancel(deliveryID)
	s.metrics.IncrementCounter(metrics.CounterRequestsDenied)
	s.metrics.IncrementCounter(metrics.CounterProgressionsCancelled)
	return nil
}

// ListByPatient returns a patient's deliveries.
func (s *DeliveryService) ListByPatient(ctx context.Context, patientID string) ([]models.Delivery, error) {
	return s.deliveries.ListByPatient(ctx, patientID)
}

// ListByDoctor returns a doctor's deliveries.
func (s *DeliveryService) ListByDoctor(ctx context.Context, doctorID string) ([]models.Delivery, error) {
	return s.deliveries.ListByDoctor(ctx, doctorID)
}

// Track returns the delivery plus, when one is active, its progression
// and a computed snapshot of remaining time.
func (s *DeliveryService) Track(ctx context.Context, deliveryID string, partition models.Partition, ownerID string) (*TrackingInfo, error) {
	delivery, err := s.deliveries.Get(ctx, deliveryID, partition, ownerID)
	if err != nil {
		return nil, err
	}

	info := &TrackingInfo{Delivery: *delivery}

	p, err := s.scheduler.Get(ctx, deliveryID)
	if err != nil {
		log.Warn().Err(err).Str("delivery_id", deliveryID).Msg("Failed to load progression for tracking")
		return info, nil
	}
	if p != nil {
		snapshot := progression.Progress(*p, s.now())
		info.Progression = p
		info.Snapshot = &snapshot
	}
	return info, nil
}

// ResetDemo erases every active progression. Delivery partitions are left
// in place; only the simulated schedules are dropped.
func (s *DeliveryService) ResetDemo(ctx context.Context) error {
	return s.scheduler.ClearAll(ctx)
}

// startProgression derives the two phase durations from the delivery and
// starts the scheduler. Preparation depends on priority, and the in-flight
// window is what remains of the overall estimate, floored so routine
// deliveries never look instantaneous.
func (s *DeliveryService) startProgression(ctx context.Context, delivery models.Delivery) {
	preparationTime := preparationTimeFor(delivery.Priority)

	estimated := delivery.EstimatedTime
	if estimated <= 0 {
		estimated = defaultEstimatedTime
	}
	flightTime := math.Max(estimated-preparationTime, minimumFlightTime)

	log.Info().
		Str("delivery_id", delivery.ID).
		Float64("preparation_time", preparationTime).
		Float64("flight_time", flightTime).
		Msg("Starting delivery progression")

	if err := s.scheduler.Start(ctx, delivery.ID, delivery.PatientID, delivery.DoctorID, flightTime, preparationTime); err != nil {
		log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("Failed to start delivery progression")
	}
}

// find locates the delivery in whichever partition has a known owner.
func (s *DeliveryService) find(ctx context.Context, deliveryID, doctorID, patientID string) (*models.Delivery, error) {
	if doctorID != "" {
		if d, err := s.deliveries.Get(ctx, deliveryID, models.PartitionDoctor, doctorID); err == nil {
			return d, nil
		}
	}
	if patientID != "" {
		if d, err := s.deliveries.Get(ctx, deliveryID, models.PartitionPatient, patientID); err == nil {
			return d, nil
		}
	}
	return nil, repositories.ErrDeliveryNotFound
}

// updateBoth applies the update to both partitions when both owners are
// known. Missing copies are logged by the repository and skipped.
func (s *DeliveryService) updateBoth(ctx context.Context, deliveryID string, update models.DeliveryUpdate, patientID, doctorID string) {
	if patientID != "" {
		if err := s.deliveries.Update(ctx, deliveryID, update, models.PartitionPatient, patientID); err != nil {
			log.Warn().Err(err).Str("delivery_id", deliveryID).Msg("Failed to update patient delivery")
		}
	}
	if doctorID != "" {
		if err := s.deliveries.Update(ctx, deliveryID, update, models.PartitionDoctor, doctorID); err != nil {
			log.Warn().Err(err).Str("delivery_id", deliveryID).Msg("Failed to update doctor delivery")
		}
	}
}

// resolveMedicines fills in names for orders that reference the catalog
// by id only. Resolution is best-effort; an unknown id keeps whatever
// name the request carried.
func (s *DeliveryService) resolveMedicines(ctx context.Context, orders []models.MedicineOrder) []models.MedicineOrder {
	if s.catalog == nil {
		return orders
	}
	resolved := make([]models.MedicineOrder, len(orders))
	for i, o := range orders {
		if o.MedicineName == "" && o.MedicineID != "" {
			if m, err := s.catalog.GetByID(ctx, o.MedicineID); err == nil {
				o.MedicineName = m.Name
				if o.UnitType == "" {
					o.UnitType = m.UnitType
				}
			} else {
				log.Warn().Err(err).Str("medicine_id", o.MedicineID).Msg("Failed to resolve medicine from catalog")
			}
		}
		resolved[i] = o
	}
	return resolved
}

func preparationTimeFor(priority models.DeliveryPriority) float64 {
	switch priority {
	case models.PriorityEmergency:
		return 1
	case models.PriorityUrgent:
		return 2
	default:
		return 3
	}
}

func priorityFromRequest(req DeliveryRequest) models.DeliveryPriority {
	if req.IsEmergency || req.UrgencyLevel == string(models.PriorityEmergency) {
		return models.PriorityEmergency
	}
	if req.UrgencyLevel == string(models.PriorityUrgent) {
		return models.PriorityUrgent
	}
	return models.PriorityRoutine
}

func calculateCost(req DeliveryRequest) float64 {
	cost := baseDeliveryCost
	if req.IsEmergency {
		cost += emergencySurcharge
	}
	// An absent list bills a single item; an explicitly empty one bills none.
	count := 1
	if req.Medicines != nil {
		count = len(req.Medicines)
	}
	return cost + float64(count)*costPerMedicine
}

func medicationNames(orders []models.MedicineOrder) string {
	if len(orders) == 0 {
		return "Multiple medications"
	}
	names := make([]string, len(orders))
	for i, o := range orders {
		names[i] = o.MedicineName
	}
	return strings.Join(names, ", ")
}

func joinQuantities(orders []models.MedicineOrder) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = strconv.Itoa(o.Quantity) + " " + o.UnitType
	}
	return strings.Join(parts, ", ")
}

func joinDosages(orders []models.MedicineOrder) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = o.Dosage
	}
	return strings.Join(parts, ", ")
}

func generateDeliveryID() string {
	return fmt.Sprintf("DEL-%d-%s", time.Now().UnixMilli(), strconv.FormatInt(rand.Int63n(1<<45), 36))
}
