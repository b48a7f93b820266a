package handlers

import (
	"net/http"

	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MedicineHandler handles medicine catalog HTTP requests
type MedicineHandler struct {
	medicines *repositories.MedicineRepository
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(medicines *repositories.MedicineRepository) *MedicineHandler {
	return &MedicineHandler{medicines: medicines}
}

// RegisterRoutes registers the medicine catalog routes
func (h *MedicineHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/medicines", h.ListMedicines)
		api.GET("/medicines/:id", h.GetMedicine)
		api.POST("/medicines", h.AddMedicine)
		api.DELETE("/medicines/:id", h.DeleteMedicine)
	}
}

// ListMedicines handles GET /api/medicines
func (h *MedicineHandler) ListMedicines(c *gin.Context) {
	medicines, err := h.medicines.List(c, c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"medicines": medicines})
}

// GetMedicine handles GET /api/medicines/:id
func (h *MedicineHandler) GetMedicine(c *gin.Context) {
	medicine, err := h.medicines.GetByID(c, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "medicine not found"})
		return
	}
	c.JSON(http.StatusOK, medicine)
}

// AddMedicineRequest is the payload for adding a catalog entry.
type AddMedicineRequest struct {
	Name                 string `json:"name" binding:"required"`
	Category             string `json:"category" binding:"required"`
	Description          string `json:"description"`
	DosageOptions        string `json:"dosage_options"`
	CommonQuantities     string `json:"common_quantities"`
	RequiresPrescription bool   `json:"requires_prescription"`
	UnitType             string `json:"unit_type" binding:"required,oneof=tablets ml mg doses units"`
	AddedBy              string `json:"added_by"`
}

// AddMedicine handles POST /api/medicines
func (h *MedicineHandler) AddMedicine(c *gin.Context) {
	var req AddMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addedBy := req.AddedBy
	if addedBy == "" {
		addedBy = "system"
	}

	medicine := models.Medicine{
		ID:                   "med-" + uuid.New().String(),
		Name:                 req.Name,
		Category:             req.Category,
		Description:          req.Description,
		DosageOptions:        req.DosageOptions,
		CommonQuantities:     req.CommonQuantities,
		RequiresPrescription: req.RequiresPrescription,
		UnitType:             req.UnitType,
		AddedBy:              addedBy,
	}

	if err := h.medicines.Create(c, &medicine); err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to add medicine")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, medicine)
}

// DeleteMedicine handles DELETE /api/medicines/:id
func (h *MedicineHandler) DeleteMedicine(c *gin.Context) {
	if err := h.medicines.Delete(c, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
