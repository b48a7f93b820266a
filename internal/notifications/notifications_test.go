package notifications

import (
	"context"
	"fmt"
	"testing"

	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewService(store.NewRedisStoreWithClient(client))
}

func testDelivery(priority models.DeliveryPriority) models.Delivery {
	return models.Delivery{
		ID:             "D1",
		MedicationName: "Amoxicillin",
		PatientID:      "P1",
		PatientName:    "Li Wei",
		DoctorID:       "DR1",
		Priority:       priority,
	}
}

func TestOrderPlacedNotifiesDoctor(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.OrderPlaced(ctx, testDelivery(models.PriorityRoutine))

	feed, err := s.Feed(ctx, "DR1")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, TypeOrderPlaced, feed[0].Type)
	require.Equal(t, "medium", feed[0].Priority)
	require.Contains(t, feed[0].Message, "Li Wei")
	require.Contains(t, feed[0].Message, "Amoxicillin")
	require.NotEmpty(t, feed[0].ID)
	require.Equal(t, "D1", feed[0].Metadata["order_id"])

	// The patient is not notified about their own request.
	patientFeed, err := s.Feed(ctx, "P1")
	require.NoError(t, err)
	require.Empty(t, patientFeed)
}

func TestOrderPlacedPriorityMapping(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		delivery models.DeliveryPriority
		feed     string
	}{
		{models.PriorityEmergency, "urgent"},
		{models.PriorityUrgent, "high"},
		{models.PriorityRoutine, "medium"},
	}

	for _, tc := range cases {
		s.OrderPlaced(ctx, testDelivery(tc.delivery))
	}

	feed, err := s.Feed(ctx, "DR1")
	require.NoError(t, err)
	require.Len(t, feed, 3)

	// Newest first: the routine one is on top.
	require.Equal(t, "medium", feed[0].Priority)
	require.Equal(t, "high", feed[1].Priority)
	require.Equal(t, "urgent", feed[2].Priority)
}

func TestOrderApprovedAndDeniedNotifyPatient(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.OrderApproved(ctx, testDelivery(models.PriorityRoutine), "Dr. Zhang")
	s.OrderDenied(ctx, testDelivery(models.PriorityRoutine), "out of stock")

	feed, err := s.Feed(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, feed, 2)

	require.Equal(t, TypeOrderDenied, feed[0].Type)
	require.Equal(t, "high", feed[0].Priority)
	require.Contains(t, feed[0].Message, "out of stock")

	require.Equal(t, TypeOrderApproved, feed[1].Type)
	require.Contains(t, feed[1].Message, "Dr. Zhang")
}

func TestDeliveryTransitionNotifications(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.DeliveryDispatched(ctx, "D1", "P1", "DR-457")
	s.DeliveryCompleted(ctx, "D1", "P1", 10.3)

	feed, err := s.Feed(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, feed, 2)

	require.Equal(t, TypeDeliveryCompleted, feed[0].Type)
	require.Contains(t, feed[0].Message, "10.3 minutes")

	require.Equal(t, TypeDeliveryDispatched, feed[1].Type)
	require.Contains(t, feed[1].Message, "DR-457")
	require.Equal(t, "DR-457", feed[1].Metadata["drone_id"])
}

func TestPushWithoutRecipientIsNoOp(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	d := testDelivery(models.PriorityRoutine)
	d.DoctorID = ""
	s.OrderPlaced(ctx, d)

	feed, err := s.Feed(ctx, "")
	require.NoError(t, err)
	require.Empty(t, feed)
}

func TestFeedIsCapped(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for i := 0; i < feedLimit+10; i++ {
		s.DeliveryCompleted(ctx, fmt.Sprintf("D%d", i), "P1", float64(i))
	}

	feed, err := s.Feed(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, feed, feedLimit)

	// The newest entries survived the cap.
	require.Equal(t, fmt.Sprintf("D%d", feedLimit+9), feed[0].Metadata["order_id"])
}
