package models

import (
	"time"
)

// DeliveryStatus is the visible lifecycle state of a delivery.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusInTransit DeliveryStatus = "in-transit"
	StatusDelivered DeliveryStatus = "delivered"
	StatusCancelled DeliveryStatus = "cancelled"
)

// DeliveryPriority determines preparation time and urgency handling.
type DeliveryPriority string

const (
	PriorityRoutine   DeliveryPriority = "routine"
	PriorityUrgent    DeliveryPriority = "urgent"
	PriorityEmergency DeliveryPriority = "emergency"
)

// ApprovalStatus tracks the doctor's decision on a delivery request.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalDenied       ApprovalStatus = "denied"
	ApprovalAutoApproved ApprovalStatus = "auto-approved"
)

// Partition selects which per-owner delivery list an operation targets.
// Patient and doctor copies of a delivery are stored independently and
// must be kept consistent by the callers that know both owners.
type Partition string

const (
	PartitionPatient Partition = "patient"
	PartitionDoctor  Partition = "doctor"
)

// Delivery is one medication delivery as seen by a patient or doctor
// dashboard. Durations are minutes; sub-minute fractions are valid so
// accelerated demos can run whole lifecycles in seconds.
type Delivery struct {
	ID             string           `json:"id"`
	MedicationName string           `json:"medication_name"`
	PatientID      string           `json:"patient_id"`
	PatientName    string           `json:"patient_name,omitempty"`
	DoctorID       string           `json:"doctor_id,omitempty"`
	Status         DeliveryStatus   `json:"status"`
	Priority       DeliveryPriority `json:"priority"`
	ApprovalStatus ApprovalStatus   `json:"approval_status"`
	RequestedAt    time.Time        `json:"requested_at"`
	RequestedBy    string           `json:"requested_by"`
	ApprovedBy     string           `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time       `json:"approved_at,omitempty"`
	DispatchedAt   *time.Time       `json:"dispatched_at,omitempty"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
	EstimatedTime  float64          `json:"estimated_time"`
	ActualTime     *float64         `json:"actual_time,omitempty"`
	DroneID        string           `json:"drone_id,omitempty"`
	Distance       string           `json:"distance,omitempty"`
	Cost           float64          `json:"cost"`
	Quantity       string           `json:"quantity,omitempty"`
	Dosage         string           `json:"dosage,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	PrescriptionID string           `json:"prescription_id,omitempty"`
	IsRecurring    bool             `json:"is_recurring,omitempty"`
	NextDelivery   *time.Time       `json:"next_delivery,omitempty"`
}

// DeliveryUpdate is a partial mutation applied to one delivery inside one
// partition. Nil fields are left untouched.
type DeliveryUpdate struct {
	Status         *DeliveryStatus
	ApprovalStatus *ApprovalStatus
	ApprovedBy     *string
	ApprovedAt     *time.Time
	DispatchedAt   *time.Time
	DeliveredAt    *time.Time
	ActualTime     *float64
	DroneID        *string
}

// Apply copies the non-nil fields of the update onto the delivery.
func (u DeliveryUpdate) Apply(d *Delivery) {
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.ApprovalStatus != nil {
		d.ApprovalStatus = *u.ApprovalStatus
	}
	if u.ApprovedBy != nil {
		d.ApprovedBy = *u.ApprovedBy
	}
	if u.ApprovedAt != nil {
		d.ApprovedAt = u.ApprovedAt
	}
	if u.DispatchedAt != nil {
		d.DispatchedAt = u.DispatchedAt
	}
	if u.DeliveredAt != nil {
		d.DeliveredAt = u.DeliveredAt
	}
	if u.ActualTime != nil {
		d.ActualTime = u.ActualTime
	}
	if u.DroneID != nil {
		d.DroneID = *u.DroneID
	}
}

// DeliveryProgression is the persisted schedule that drives a delivery
// through its phases. At most one active progression exists per delivery;
// starting a new one replaces any prior record for the same id.
type DeliveryProgression struct {
	DeliveryID string    `json:"delivery_id"`
	PatientID  string    `json:"patient_id"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
	// PreparationTime is minutes from ApprovedAt until dispatch.
	PreparationTime float64 `json:"preparation_time"`
	// EstimatedTime is minutes from the end of preparation until completion.
	EstimatedTime float64 `json:"estimated_time"`
}

// TotalTime is the full duration in minutes from approval to completion.
func (p DeliveryProgression) TotalTime() float64 {
	return p.PreparationTime + p.EstimatedTime
}

// MedicineOrder is one line item of a delivery request.
type MedicineOrder struct {
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage"`
	Quantity     int    `json:"quantity"`
	UnitType     string `json:"unit_type"`
	Instructions string `json:"instructions,omitempty"`
}
