package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CompletionNotStarted = "not_started"
	CompletionInProgress = "in_progress"
	CompletionCompleted  = "completed"
	CompletionAbandoned  = "abandoned"
)

// MilestoneOutcome is one entry of the per-milestone ledger, keyed by
// milestone title within a record.
type MilestoneOutcome struct {
	Title         string     `json:"title"`
	EstimatedDays int        `json:"estimated_days"`
	ActualDays    *int       `json:"actual_days,omitempty"`
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type CustomizationEntry struct {
	Field        string    `json:"field"`
	OldValue     string    `json:"old_value,omitempty"`
	NewValue     string    `json:"new_value"`
	CustomizedAt time.Time `json:"customized_at"`
}

type DifficultyRatings struct {
	Overall  *int `json:"overall,omitempty"`
	Timeline *int `json:"timeline,omitempty"`
	Workload *int `json:"workload,omitempty"`
}

// EffectivenessRecord accumulates real outcomes of one project built
// from one template. It references the template by id only, so later
// template edits never rewrite history.
type EffectivenessRecord struct {
	ID                    uuid.UUID                                `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID            uuid.UUID                                `gorm:"type:uuid;not null;index:idx_template_project,unique" json:"template_id"`
	ProjectID             uuid.UUID                                `gorm:"type:uuid;not null;index:idx_template_project,unique" json:"project_id"`
	StudentID             uuid.UUID                                `gorm:"type:uuid;not null;index" json:"student_id"`
	CompletionStatus      string                                   `gorm:"not null;default:'not_started'" json:"completion_status"`
	TotalMilestones       int                                      `gorm:"not null;default:0" json:"total_milestones"`
	CompletedMilestones   int                                      `gorm:"not null;default:0" json:"completed_milestones"`
	OverdueMilestones     int                                      `gorm:"not null;default:0" json:"overdue_milestones"`
	CompletionPercentage  int                                      `gorm:"not null;default:0" json:"completion_percentage"`
	EstimatedDurationDays int                                      `gorm:"not null;default:0" json:"estimated_duration_days"`
	ActualDurationDays    *int                                     `json:"actual_duration_days,omitempty"`
	DurationVariance      *float64                                 `json:"duration_variance,omitempty"`
	EstimatedEffortHours  float64                                  `gorm:"not null;default:0" json:"estimated_effort_hours"`
	ActualEffortHours     *float64                                 `json:"actual_effort_hours,omitempty"`
	EffortVariance        *float64                                 `json:"effort_variance,omitempty"`
	MilestoneLedger       datatypes.JSONSlice[MilestoneOutcome]    `json:"milestone_ledger"`
	Customizations        datatypes.JSONSlice[CustomizationEntry]  `json:"customizations"`
	Suggestions           datatypes.JSONSlice[string]              `json:"suggestions"`
	Rating                *int                                     `json:"rating,omitempty"`
	Feedback              string                                   `json:"feedback,omitempty"`
	WouldRecommend        *bool                                    `json:"would_recommend,omitempty"`
	DifficultyRatings     datatypes.JSONType[DifficultyRatings]    `json:"difficulty_ratings"`
	StartedAt             *time.Time                               `json:"started_at,omitempty"`
	CompletedAt           *time.Time                               `json:"completed_at,omitempty"`
	LastActivityAt        *time.Time                               `json:"last_activity_at,omitempty"`
	CreatedAt             time.Time                                `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time                                `gorm:"not null" json:"updated_at"`
}

func (EffectivenessRecord) TableName() string { return "template_effectiveness" }
