package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventHoliday       = "holiday"
	EventBreak         = "break"
	EventExamPeriod    = "exam_period"
	EventSemesterStart = "semester_start"
	EventSemesterEnd   = "semester_end"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// CalendarEvent rows are owned by the administrative calendar
// workflow; this core only reads them.
type CalendarEvent struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title             string     `gorm:"not null" json:"title"`
	EventType         string     `gorm:"not null;index" json:"event_type"`
	StartDate         time.Time  `gorm:"not null;index" json:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	AcademicYear      string     `gorm:"not null;index:idx_year_semester" json:"academic_year"`
	Semester          string     `gorm:"not null;index:idx_year_semester" json:"semester"`
	Priority          string     `gorm:"not null;default:'medium'" json:"priority"`
	AffectsMilestones bool       `gorm:"not null;default:true" json:"affects_milestones"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (CalendarEvent) TableName() string { return "calendar_events" }

// Contains reports whether the event interval covers the given day.
// Events without an end date are single-day.
func (e *CalendarEvent) Contains(date time.Time) bool {
	day := date.Truncate(24 * time.Hour)
	start := e.StartDate.Truncate(24 * time.Hour)
	end := start
	if e.EndDate != nil {
		end = e.EndDate.Truncate(24 * time.Hour)
	}
	return !day.Before(start) && !day.After(end)
}

// PriorityRank orders priorities for conflict tie-breaks.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}
