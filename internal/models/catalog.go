package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Medicine is one catalog entry a patient or doctor can order.
type Medicine struct {
	ID                   string         `gorm:"primaryKey" json:"id"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
	Name                 string         `gorm:"not null;uniqueIndex" json:"name"`
	Category             string         `gorm:"not null" json:"category"`
	Description          string         `json:"description"`
	DosageOptions        string         `gorm:"type:text" json:"dosage_options"`
	CommonQuantities     string         `gorm:"type:text" json:"common_quantities"`
	RequiresPrescription bool           `gorm:"not null;default:false" json:"requires_prescription"`
	UnitType             string         `gorm:"not null" json:"unit_type"`
	AddedBy              string         `gorm:"not null;default:system" json:"added_by"`
}

// Hospital is a registered facility doctors belong to.
type Hospital struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Address     string         `gorm:"not null" json:"address"`
	Type        string         `gorm:"not null" json:"type"`
	Specialties string         `gorm:"type:text" json:"specialties"`
	Doctors     []Doctor       `gorm:"foreignKey:HospitalID" json:"-"`
}

// Doctor is a registered physician who can approve delivery requests.
type Doctor struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Name       string         `gorm:"not null" json:"name"`
	Specialty  string         `gorm:"not null" json:"specialty"`
	HospitalID string         `gorm:"not null" json:"hospital_id"`
	Experience int            `gorm:"not null;default:0" json:"experience"`
	Rating     float64        `gorm:"not null;default:0" json:"rating"`
	Patients   int            `gorm:"not null;default:0" json:"patients"`
	Hospital   Hospital       `gorm:"foreignKey:HospitalID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Medicine{},
		&Hospital{},
		&Doctor{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
