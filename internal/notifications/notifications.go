package notifications

import (
	"context"
	"fmt"
	"time"

	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// feedLimit caps each user's stored notification feed.
const feedLimit = 50

// Notification types emitted by the service.
const (
	TypeOrderPlaced        = "order_placed"
	TypeOrderApproved      = "order_approved"
	TypeOrderDenied        = "order_denied"
	TypeDeliveryDispatched = "delivery_dispatched"
	TypeDeliveryCompleted  = "delivery_completed"
)

// FeedKey generates the storage key for a user's notification feed
func FeedKey(userID string) string {
	return "medifly:notifications:" + userID
}

// Notification is one entry in a user's notification feed.
type Notification struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Priority  string            `json:"priority"`
	Timestamp time.Time         `json:"timestamp"`
	Read      bool              `json:"read"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Service emits notifications on delivery state transitions. Emission is
// fire-and-forget: failures are logged and never returned to the caller,
// so a broken feed can not stall a progression.
type Service struct {
	store *store.RedisStore
}

// NewService creates a new notification service
func NewService(s *store.RedisStore) *Service {
	return &Service{store: s}
}

// OrderPlaced announces a new delivery request to the assigned doctor.
func (s *Service) OrderPlaced(ctx context.Context, delivery models.Delivery) {
	priority := "medium"
	switch delivery.Priority {
	case models.PriorityEmergency:
		priority = "urgent"
	case models.PriorityUrgent:
		priority = "high"
	}

	s.push(ctx, delivery.DoctorID, Notification{
		Type:     TypeOrderPlaced,
		Title:    "New Order Placed",
		Message:  fmt.Sprintf("%s has requested %s", patientLabel(delivery), delivery.MedicationName),
		Priority: priority,
		Metadata: deliveryMetadata(delivery),
	})
}

// OrderApproved tells the patient their request was approved.
func (s *Service) OrderApproved(ctx context.Context, delivery models.Delivery, doctorName string) {
	if doctorName == "" {
		doctorName = "the doctor"
	}
	s.push(ctx, delivery.PatientID, Notification{
		Type:     TypeOrderApproved,
		Title:    "Order Approved",
		Message:  fmt.Sprintf("Your %s order has been approved by %s", delivery.MedicationName, doctorName),
		Priority: "medium",
		Metadata: deliveryMetadata(delivery),
	})
}

// OrderDenied tells the patient their request was denied.
func (s *Service) OrderDenied(ctx context.Context, delivery models.Delivery, reason string) {
	message := fmt.Sprintf("Your %s order has been denied", delivery.MedicationName)
	if reason != "" {
		message += ": " + reason
	}
	s.push(ctx, delivery.PatientID, Notification{
		Type:     TypeOrderDenied,
		Title:    "Order Denied",
		Message:  message,
		Priority: "high",
		Metadata: deliveryMetadata(delivery),
	})
}

// DeliveryDispatched announces that a drone is on its way.
func (s *Service) DeliveryDispatched(ctx context.Context, deliveryID, patientID, droneID string) {
	s.push(ctx, patientID, Notification{
		Type:     TypeDeliveryDispatched,
		Title:    "Delivery In Transit",
		Message:  fmt.Sprintf("Drone %s has been dispatched with your medication", droneID),
		Priority: "medium",
		Metadata: map[string]string{"order_id": deliveryID, "drone_id": droneID},
	})
}

// DeliveryCompleted announces that the medication has arrived.
func (s *Service) DeliveryCompleted(ctx context.Context, deliveryID, patientID string, actualTime float64) {
	s.push(ctx, patientID, Notification{
		Type:     TypeDeliveryCompleted,
		Title:    "Delivery Completed",
		Message:  fmt.Sprintf("Your medication arrived in %.1f minutes", actualTime),
		Priority: "medium",
		Metadata: map[string]string{"order_id": deliveryID},
	})
}

// Feed returns a user's stored notifications, newest first.
func (s *Service) Feed(ctx context.Context, userID string) ([]Notification, error) {
	var feed []Notification
	err := s.store.GetJSON(ctx, FeedKey(userID), &feed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		log.Warn().Err(err).Str("user_id", userID).Msg("Discarding unreadable notification feed")
		return nil, nil
	}
	return feed, nil
}

// push prepends a notification to the user's feed and broadcasts the
// change. An empty user id means there is nobody to notify.
func (s *Service) push(ctx context.Context, userID string, n Notification) {
	if userID == "" {
		return
	}

	n.ID = uuid.New().String()
	n.Timestamp = time.Now()

	feed, err := s.Feed(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to read notification feed")
		return
	}

	updated := append([]Notification{n}, feed...)
	if len(updated) > feedLimit {
		updated = updated[:feedLimit]
	}

	key := FeedKey(userID)
	if err := s.store.SetJSON(ctx, key, updated); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to store notification")
		return
	}
	if err := s.store.PublishChange(ctx, key); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish notification event")
	}

	log.Info().
		Str("user_id", userID).
		Str("type", n.Type).
		Str("title", n.Title).
		Msg("Notification sent")
}

func patientLabel(d models.Delivery) string {
	if d.PatientName != "" {
		return d.PatientName
	}
	return d.PatientID
}

func deliveryMetadata(d models.Delivery) map[string]string {
	return map[string]string{
		"order_id":        d.ID,
		"patient_id":      d.PatientID,
		"medication_name": d.MedicationName,
		"priority":        string(d.Priority),
	}
}
