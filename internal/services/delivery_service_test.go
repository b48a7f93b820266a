package services

import (
	"context"
	"testing"
	"time"

	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Start(ctx context.Context, deliveryID, patientID, doctorID string, estimatedTime, preparationTime float64) error {
	args := m.Called(ctx, deliveryID, patientID, doctorID, estimatedTime, preparationTime)
	return args.Error(0)
}

func (m *mockScheduler) Cancel(deliveryID string) {
	m.Called(deliveryID)
}

func (m *mockScheduler) Get(ctx context.Context, deliveryID string) (*models.DeliveryProgression, error) {
	args := m.Called(ctx, deliveryID)
	var p *models.DeliveryProgression
	if args.Get(0) != nil {
		p = args.Get(0).(*models.DeliveryProgression)
	}
	return p, args.Error(1)
}

func (m *mockScheduler) ClearAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) OrderPlaced(ctx context.Context, delivery models.Delivery) {
	m.Called(ctx, delivery)
}

func (m *mockNotifier) OrderApproved(ctx context.Context, delivery models.Delivery, doctorName string) {
	m.Called(ctx, delivery, doctorName)
}

func (m *mockNotifier) OrderDenied(ctx context.Context, delivery models.Delivery, reason string) {
	m.Called(ctx, delivery, reason)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetByID(ctx context.Context, id string) (*models.Medicine, error) {
	args := m.Called(ctx, id)
	var medicine *models.Medicine
	if args.Get(0) != nil {
		medicine = args.Get(0).(*models.Medicine)
	}
	return medicine, args.Error(1)
}

type serviceFixture struct {
	service    *DeliveryService
	deliveries *repositories.DeliveryRepository
	scheduler  *mockScheduler
	notifier   *mockNotifier
}

func newServiceFixture(t *testing.T, catalog Catalog) *serviceFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	deliveries := repositories.NewDeliveryRepository(store.NewRedisStoreWithClient(client))
	sched := &mockScheduler{}
	n := &mockNotifier{}

	return &serviceFixture{
		service:    NewDeliveryService(deliveries, sched, n, catalog, metrics.NewMetrics()),
		deliveries: deliveries,
		scheduler:  sched,
		notifier:   n,
	}
}

func routineRequest() DeliveryRequest {
	return DeliveryRequest{
		PatientID:   "P1",
		PatientName: "Li Wei",
		DoctorID:    "DR1",
		RequestedBy: "patient",
		Medicines: []models.MedicineOrder{
			{MedicineID: "med-001", MedicineName: "Amoxicillin", Dosage: "500mg", Quantity: 21, UnitType: "tablets"},
			{MedicineID: "med-002", MedicineName: "Ibuprofen", Dosage: "400mg", Quantity: 30, UnitType: "tablets"},
		},
	}
}

func TestCreateRequestRoutine(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything).Once()

	delivery, err := f.service.CreateRequest(ctx, routineRequest())
	require.NoError(t, err)

	require.Equal(t, models.PriorityRoutine, delivery.Priority)
	require.Equal(t, models.StatusPending, delivery.Status)
	require.Equal(t, models.ApprovalPending, delivery.ApprovalStatus)
	require.Equal(t, routineEstimatedTime, delivery.EstimatedTime)
	require.Equal(t, "Amoxicillin, Ibuprofen", delivery.MedicationName)
	require.Equal(t, "21 tablets, 30 tablets", delivery.Quantity)
	require.Equal(t, "500mg, 400mg", delivery.Dosage)

	// Base cost plus two medicines.
	require.Equal(t, 25.0, delivery.Cost)

	// Written to both the patient's and the reviewing doctor's partition.
	patientCopy, err := f.deliveries.Get(ctx, delivery.ID, models.PartitionPatient, "P1")
	require.NoError(t, err)
	doctorCopy, err := f.deliveries.Get(ctx, delivery.ID, models.PartitionDoctor, "DR1")
	require.NoError(t, err)
	require.Equal(t, patientCopy.ID, doctorCopy.ID)

	// Routine requests wait for approval before any progression starts.
	f.scheduler.AssertNotCalled(t, "Start",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestCreateRequestEmergency(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything).Once()

	// Emergency: 1 minute preparation, flight window is the estimate minus
	// preparation, so 10 - 1 = 9.
	f.scheduler.On("Start", mock.Anything, mock.Anything, "P1", "DR1", 9.0, 1.0).Return(nil).Once()

	req := routineRequest()
	req.Medicines = req.Medicines[:1]
	req.IsEmergency = true

	delivery, err := f.service.CreateRequest(ctx, req)
	require.NoError(t, err)

	require.Equal(t, models.PriorityEmergency, delivery.Priority)
	require.Equal(t, models.ApprovalAutoApproved, delivery.ApprovalStatus)
	require.Equal(t, emergencyEstimatedTime, delivery.EstimatedTime)

	// Base cost plus emergency surcharge plus one medicine.
	require.Equal(t, 30.0, delivery.Cost)

	f.scheduler.AssertExpectations(t)
}

func TestCreateRequestUrgencyLevel(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)

	req := routineRequest()
	req.UrgencyLevel = "urgent"

	delivery, err := f.service.CreateRequest(ctx, req)
	require.NoError(t, err)

	// Urgent raises priority but does not auto-approve.
	require.Equal(t, models.PriorityUrgent, delivery.Priority)
	require.Equal(t, models.ApprovalPending, delivery.ApprovalStatus)
	f.scheduler.AssertNotCalled(t, "Start",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRequestRequiresPatientID(t *testing.T) {
	f := newServiceFixture(t, nil)

	req := routineRequest()
	req.PatientID = ""

	_, err := f.service.CreateRequest(context.Background(), req)
	require.Error(t, err)
}

func TestCreateRequestWithoutMedicines(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)

	req := routineRequest()
	req.Medicines = nil

	delivery, err := f.service.CreateRequest(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "Multiple medications", delivery.MedicationName)
	// An absent order list is billed as a single item.
	require.Equal(t, 20.0, delivery.Cost)

	// An explicitly empty list bills no medicines at all.
	req = routineRequest()
	req.Medicines = []models.MedicineOrder{}

	delivery, err = f.service.CreateRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 15.0, delivery.Cost)
}

func TestApproveFallbackEstimate(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderApproved", mock.Anything, mock.Anything, "DR1").Once()

	// A stored delivery with no estimate of its own.
	d := models.Delivery{
		ID:             "D1",
		MedicationName: "Amoxicillin",
		PatientID:      "P1",
		DoctorID:       "DR1",
		Status:         models.StatusPending,
		Priority:       models.PriorityRoutine,
		ApprovalStatus: models.ApprovalPending,
		RequestedAt:    time.Now(),
		RequestedBy:    "patient",
	}
	require.NoError(t, f.deliveries.Save(ctx, d, models.PartitionPatient, "P1"))
	require.NoError(t, f.deliveries.Save(ctx, d, models.PartitionDoctor, "DR1"))

	// The progression falls back to a 15 minute estimate: flight 15 - 3 = 12.
	f.scheduler.On("Start", mock.Anything, "D1", "P1", "DR1", 12.0, 3.0).Return(nil).Once()

	require.NoError(t, f.service.Approve(ctx, "D1", "DR1", "P1"))

	f.scheduler.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestCreateRequestResolvesMedicineNamesFromCatalog(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("GetByID", mock.Anything, "med-007").
		Return(&models.Medicine{ID: "med-007", Name: "Insulin", UnitType: "ml"}, nil)

	f := newServiceFixture(t, catalog)
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)

	req := DeliveryRequest{
		PatientID:   "P1",
		RequestedBy: "patient",
		Medicines: []models.MedicineOrder{
			{MedicineID: "med-007", Dosage: "10 units", Quantity: 2},
		},
	}

	delivery, err := f.service.CreateRequest(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "Insulin", delivery.MedicationName)
	require.Equal(t, "2 ml", delivery.Quantity)
	catalog.AssertExpectations(t)
}

func TestApproveStartsProgression(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)
	f.notifier.On("OrderApproved", mock.Anything, mock.Anything, "DR1").Once()

	delivery, err := f.service.CreateRequest(ctx, routineRequest())
	require.NoError(t, err)

	// Routine: 3 minutes preparation, flight window 25 - 3 = 22.
	f.scheduler.On("Start", mock.Anything, delivery.ID, "P1", "DR1", 22.0, 3.0).Return(nil).Once()

	require.NoError(t, f.service.Approve(ctx, delivery.ID, "DR1", "P1"))

	for _, probe := range []struct {
		partition models.Partition
		ownerID   string
	}{
		{models.PartitionPatient, "P1"},
		{models.PartitionDoctor, "DR1"},
	} {
		d, err := f.deliveries.Get(ctx, delivery.ID, probe.partition, probe.ownerID)
		require.NoError(t, err)
		require.Equal(t, models.ApprovalApproved, d.ApprovalStatus)
		require.Equal(t, models.StatusPending, d.Status)
		require.Equal(t, "DR1", d.ApprovedBy)
		require.NotNil(t, d.ApprovedAt)
	}

	f.scheduler.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestApproveUnknownDelivery(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.service.Approve(context.Background(), "D-MISSING", "DR1", "P1")
	require.ErrorIs(t, err, repositories.ErrDeliveryNotFound)
}

func TestDenyCancelsProgression(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)
	f.notifier.On("OrderDenied", mock.Anything, mock.Anything, "out of stock").Once()

	delivery, err := f.service.CreateRequest(ctx, routineRequest())
	require.NoError(t, err)

	f.scheduler.On("Cancel", delivery.ID).Once()

	require.NoError(t, f.service.Deny(ctx, delivery.ID, "DR1", "P1", "out of stock"))

	d, err := f.deliveries.Get(ctx, delivery.ID, models.PartitionPatient, "P1")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalDenied, d.ApprovalStatus)
	require.Equal(t, models.StatusCancelled, d.Status)

	f.scheduler.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestTrackIncludesProgressionSnapshot(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)

	delivery, err := f.service.CreateRequest(ctx, routineRequest())
	require.NoError(t, err)

	approvedAt := time.Now().Add(-2 * time.Minute)
	f.scheduler.On("Get", mock.Anything, delivery.ID).Return(&models.DeliveryProgression{
		DeliveryID:      delivery.ID,
		PatientID:       "P1",
		DoctorID:        "DR1",
		ApprovedAt:      approvedAt,
		PreparationTime: 1,
		EstimatedTime:   9,
	}, nil)

	info, err := f.service.Track(ctx, delivery.ID, models.PartitionPatient, "P1")
	require.NoError(t, err)
	require.Equal(t, delivery.ID, info.Delivery.ID)
	require.NotNil(t, info.Progression)
	require.NotNil(t, info.Snapshot)

	// Two minutes into a ten minute schedule, past preparation.
	require.InDelta(t, 2.0, info.Snapshot.ElapsedMinutes, 0.05)
	require.InDelta(t, 8.0, info.Snapshot.RemainingMinutes, 0.05)
	require.InDelta(t, 20.0, info.Snapshot.PercentComplete, 1)
}

func TestTrackWithoutProgression(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything)

	delivery, err := f.service.CreateRequest(ctx, routineRequest())
	require.NoError(t, err)

	f.scheduler.On("Get", mock.Anything, delivery.ID).Return(nil, nil)

	info, err := f.service.Track(ctx, delivery.ID, models.PartitionPatient, "P1")
	require.NoError(t, err)
	require.Nil(t, info.Progression)
	require.Nil(t, info.Snapshot)
}

func TestResetDemo(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.scheduler.On("ClearAll", mock.Anything).Return(nil).Once()

	require.NoError(t, f.service.ResetDemo(context.Background()))
	f.scheduler.AssertExpectations(t)
}
