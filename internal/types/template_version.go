package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TemplateVersion is an immutable snapshot of a template. Rows are
// appended, never rewritten; revert mints a new row pointing back at
// the source version through RevertedToVersion.
type TemplateVersion struct {
	ID                uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID        uuid.UUID                          `gorm:"type:uuid;not null;index:idx_template_version,unique" json:"template_id"`
	Template          *Template                          `gorm:"constraint:OnDelete:CASCADE;foreignKey:TemplateID;references:ID" json:"template,omitempty"`
	Version           int                                `gorm:"not null;index:idx_template_version,unique" json:"version"`
	Name              string                             `gorm:"not null" json:"name"`
	Description       string                             `json:"description"`
	Specialization    string                             `json:"specialization"`
	ProjectType       string                             `json:"project_type"`
	Milestones        datatypes.JSONSlice[MilestoneItem] `json:"milestones"`
	Config            datatypes.JSONType[TemplateConfig] `json:"config"`
	Tags              datatypes.JSONSlice[string]        `json:"tags"`
	ChangeDescription string                             `json:"change_description"`
	ChangeDetails     datatypes.JSON                     `gorm:"type:jsonb" json:"change_details,omitempty"`
	RevertedToVersion *int                               `json:"reverted_to_version,omitempty"`
	IsActive          bool                               `gorm:"not null;default:false" json:"is_active"`
	IsDraft           bool                               `gorm:"not null;default:false" json:"is_draft"`
	CreatedBy         uuid.UUID                          `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt         time.Time                          `gorm:"not null" json:"created_at"`
}

func (TemplateVersion) TableName() string { return "template_versions" }
