package handlers

import (
	"net/http"

	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DeliveryHandler handles delivery-related HTTP requests
type DeliveryHandler struct {
	service *services.DeliveryService
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(service *services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

// RegisterRoutes registers the delivery routes
func (h *DeliveryHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/deliveries", h.CreateDelivery)
		api.GET("/deliveries/patient/:id", h.ListPatientDeliveries)
		api.GET("/deliveries/doctor/:id", h.ListDoctorDeliveries)
		api.POST("/deliveries/:id/approve", h.ApproveDelivery)
		api.POST("/deliveries/:id/deny", h.DenyDelivery)
		api.GET("/deliveries/:id/tracking", h.TrackDelivery)
		api.DELETE("/demo", h.ResetDemo)
	}
}

// MedicineOrderRequest is one line item of a delivery request payload.
type MedicineOrderRequest struct {
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage"`
	Quantity     int    `json:"quantity" binding:"omitempty,gt=0"`
	UnitType     string `json:"unit_type"`
	Instructions string `json:"instructions"`
}

// CreateDeliveryRequest is an incoming delivery request payload.
type CreateDeliveryRequest struct {
	PatientID           string                 `json:"patient_id" binding:"required"`
	PatientName         string                 `json:"patient_name"`
	DoctorID            string                 `json:"doctor_id"`
	RequestedBy         string                 `json:"requested_by" binding:"omitempty,oneof=patient doctor"`
	Medicines           []MedicineOrderRequest `json:"medicines"`
	IsEmergency         bool                   `json:"is_emergency"`
	UrgencyLevel        string                 `json:"urgency_level" binding:"urgency"`
	SpecialInstructions string                 `json:"special_instructions"`
	PrescriptionID      string                 `json:"prescription_id"`
	Distance            string                 `json:"distance"`
}

// CreateDelivery handles POST /api/deliveries
func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid delivery request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orders := make([]models.MedicineOrder, len(req.Medicines))
	for i, m := range req.Medicines {
		orders[i] = models.MedicineOrder{
			MedicineID:   m.MedicineID,
			MedicineName: m.MedicineName,
			Dosage:       m.Dosage,
			Quantity:     m.Quantity,
			UnitType:     m.UnitType,
			Instructions: m.Instructions,
		}
	}

	requestedBy := req.RequestedBy
	if requestedBy == "" {
		requestedBy = "patient"
	}

	delivery, err := h.service.CreateRequest(c, services.DeliveryRequest{
		PatientID:           req.PatientID,
		PatientName:         req.PatientName,
		DoctorID:            req.DoctorID,
		RequestedBy:         requestedBy,
		Medicines:           orders,
		IsEmergency:         req.IsEmergency,
		UrgencyLevel:        req.UrgencyLevel,
		SpecialInstructions: req.SpecialInstructions,
		PrescriptionID:      req.PrescriptionID,
		Distance:            req.Distance,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, delivery)
}

// ListPatientDeliveries handles GET /api/deliveries/patient/:id
func (h *DeliveryHandler) ListPatientDeliveries(c *gin.Context) {
	deliveries, err := h.service.ListByPatient(c, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// ListDoctorDeliveries handles GET /api/deliveries/doctor/:id
func (h *DeliveryHandler) ListDoctorDeliveries(c *gin.Context) {
	deliveries, err := h.service.ListByDoctor(c, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// ApprovalRequest identifies the parties in an approval or denial.
type ApprovalRequest struct {
	DoctorID  string `json:"doctor_id" binding:"required"`
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
}

// ApproveDelivery handles POST /api/deliveries/:id/approve
func (h *DeliveryHandler) ApproveDelivery(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Approve(c, c.Param("id"), req.DoctorID, req.PatientID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrDeliveryNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DenyDelivery handles POST /api/deliveries/:id/deny
func (h *DeliveryHandler) DenyDelivery(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Deny(c, c.Param("id"), req.DoctorID, req.PatientID, req.Reason); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrDeliveryNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TrackDelivery handles GET /api/deliveries/:id/tracking
func (h *DeliveryHandler) TrackDelivery(c *gin.Context) {
	partition := models.PartitionPatient
	if c.Query("type") == string(models.PartitionDoctor) {
		partition = models.PartitionDoctor
	}
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	info, err := h.service.Track(c, c.Param("id"), partition, ownerID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrDeliveryNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}

// ResetDemo handles DELETE /api/demo
func (h *DeliveryHandler) ResetDemo(c *gin.Context) {
	if err := h.service.ResetDemo(c); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
