// Package types holds the persisted models.
package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Station is one generated clinical station. Payload is the full document
// after repair, validation and depth sanitization; Titulo and Especialidade
// are denormalized for listing without decoding the payload.
type Station struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Titulo        string         `gorm:"index;not null" json:"titulo"`
	Especialidade string         `gorm:"index" json:"especialidade"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	IsValid       bool           `gorm:"not null;default:false" json:"is_valid"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Station) TableName() string { return "station" }
