package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MilestoneItem is one planned milestone inside a template. Stored as
// part of the template's JSON milestone list, never as its own row.
type MilestoneItem struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	DaysFromStart  int      `json:"days_from_start"`
	Priority       string   `json:"priority,omitempty"`
	EstimatedHours float64  `json:"estimated_hours"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// TemplateConfig bounds what projects built from the template may do.
type TemplateConfig struct {
	MinDurationWeeks       int      `json:"min_duration_weeks,omitempty"`
	MaxDurationWeeks       int      `json:"max_duration_weeks,omitempty"`
	EstimatedDurationWeeks int      `json:"estimated_duration_weeks"`
	RequiredMilestones     []string `json:"required_milestones,omitempty"`
	OptionalMilestones     []string `json:"optional_milestones,omitempty"`
}

type Template struct {
	ID             uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string                              `gorm:"not null;index" json:"name"`
	Description    string                              `json:"description"`
	Specialization string                              `gorm:"index" json:"specialization"`
	ProjectType    string                              `gorm:"index" json:"project_type"`
	Milestones     datatypes.JSONSlice[MilestoneItem]  `json:"milestones"`
	Config         datatypes.JSONType[TemplateConfig]  `json:"config"`
	IsActive       bool                                `gorm:"not null;default:true" json:"is_active"`
	IsDraft        bool                                `gorm:"not null;default:false" json:"is_draft"`
	IsArchived     bool                                `gorm:"not null;default:false" json:"is_archived"`
	UsageCount     int                                 `gorm:"not null;default:0" json:"usage_count"`
	AverageRating  float64                             `gorm:"not null;default:0" json:"average_rating"`
	RatingCount    int                                 `gorm:"not null;default:0" json:"rating_count"`
	Tags           datatypes.JSONSlice[string]         `json:"tags"`
	CreatedBy      uuid.UUID                           `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt      time.Time                           `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt                      `gorm:"index" json:"deleted_at,omitempty"`
}

func (Template) TableName() string { return "milestone_templates" }

// CloneMilestones returns a structurally independent copy of the live
// milestone list. Versions must never alias the template's containers.
func (t *Template) CloneMilestones() []MilestoneItem {
	return CloneMilestoneItems(t.Milestones)
}

func CloneMilestoneItems(items []MilestoneItem) []MilestoneItem {
	out := make([]MilestoneItem, len(items))
	for i, m := range items {
		c := m
		c.Dependencies = append([]string(nil), m.Dependencies...)
		c.Tags = append([]string(nil), m.Tags...)
		out[i] = c
	}
	return out
}

func CloneConfig(cfg TemplateConfig) TemplateConfig {
	c := cfg
	c.RequiredMilestones = append([]string(nil), cfg.RequiredMilestones...)
	c.OptionalMilestones = append([]string(nil), cfg.OptionalMilestones...)
	return c
}

// RequiredMilestones resolves the configured required-titles list
// against the live milestone list. With no configured list every
// milestone is required.
func (t *Template) RequiredMilestones() []MilestoneItem {
	cfg := t.Config.Data()
	if len(cfg.RequiredMilestones) == 0 {
		return CloneMilestoneItems(t.Milestones)
	}
	required := make(map[string]struct{}, len(cfg.RequiredMilestones))
	for _, title := range cfg.RequiredMilestones {
		required[title] = struct{}{}
	}
	out := []MilestoneItem{}
	for _, m := range t.Milestones {
		if _, ok := required[m.Title]; ok {
			out = append(out, m)
		}
	}
	return CloneMilestoneItems(out)
}

// EstimatedDurationDays converts the configured week count to days.
func (t *Template) EstimatedDurationDays() int {
	return t.Config.Data().EstimatedDurationWeeks * 7
}

// TotalEstimatedHours sums the per-milestone effort estimates.
func (t *Template) TotalEstimatedHours() float64 {
	var total float64
	for _, m := range t.Milestones {
		total += m.EstimatedHours
	}
	return total
}
