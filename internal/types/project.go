package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is owned by the project subsystem; this core only checks
// existence and reads the start date when projecting timelines.
type Project struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string         `gorm:"not null" json:"title"`
	StudentID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	TemplateID *uuid.UUID     `gorm:"type:uuid;index" json:"template_id,omitempty"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	Status     string         `gorm:"not null;default:'active'" json:"status"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "projects" }
