package repositories

import (
	"context"

	"example.com/medifly/services/delivery/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MedicineRepository provides access to the medicine catalog
type MedicineRepository struct {
	db *gorm.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *gorm.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// List returns the full catalog, optionally filtered by category.
func (r *MedicineRepository) List(ctx context.Context, category string) ([]models.Medicine, error) {
	var medicines []models.Medicine
	query := r.db.WithContext(ctx).Order("name asc")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Find(&medicines).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list medicines")
	}
	return medicines, nil
}

// GetByID gets a medicine by its catalog id
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*models.Medicine, error) {
	var medicine models.Medicine
	if err := r.db.WithContext(ctx).First(&medicine, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get medicine by ID")
	}
	return &medicine, nil
}

// Create adds a medicine to the catalog
func (r *MedicineRepository) Create(ctx context.Context, medicine *models.Medicine) error {
	if err := r.db.WithContext(ctx).Create(medicine).Error; err != nil {
		return errors.Wrap(err, "failed to create medicine")
	}
	return nil
}

// Delete removes a medicine from the catalog
func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&models.Medicine{}, "id = ?", id).Error; err != nil {
		return errors.Wrap(err, "failed to delete medicine")
	}
	return nil
}

// Seed upserts the demo catalog rows, keyed by id.
func (r *MedicineRepository) Seed(ctx context.Context, medicines []models.Medicine, hospitals []models.Hospital, doctors []models.Doctor) error {
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}

	if len(hospitals) > 0 {
		if err := r.db.WithContext(ctx).Clauses(upsert).Create(&hospitals).Error; err != nil {
			return errors.Wrap(err, "failed to seed hospitals")
		}
	}
	if len(doctors) > 0 {
		if err := r.db.WithContext(ctx).Clauses(upsert).Create(&doctors).Error; err != nil {
			return errors.Wrap(err, "failed to seed doctors")
		}
	}
	if len(medicines) > 0 {
		if err := r.db.WithContext(ctx).Clauses(upsert).Create(&medicines).Error; err != nil {
			return errors.Wrap(err, "failed to seed medicines")
		}
	}
	return nil
}
