package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/types"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email, role string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
		Role:      role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID uuid.UUID) *types.Project {
	tb.Helper()
	start := time.Now().UTC().AddDate(0, 0, -7)
	p := &types.Project{
		ID:        uuid.New(),
		Title:     "project",
		StudentID: studentID,
		StartDate: &start,
		Status:    "active",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedTemplate(tb testing.TB, ctx context.Context, tx *gorm.DB, createdBy uuid.UUID) *types.Template {
	tb.Helper()
	t := &types.Template{
		ID:             uuid.New(),
		Name:           "Thesis Plan",
		Specialization: "software_engineering",
		ProjectType:    "thesis",
		Milestones: datatypes.NewJSONSlice([]types.MilestoneItem{
			{Title: "Proposal", DaysFromStart: 14, Priority: "high", EstimatedHours: 20},
			{Title: "Literature Review", DaysFromStart: 45, Priority: "medium", EstimatedHours: 40},
			{Title: "Final Report", DaysFromStart: 120, Priority: "critical", EstimatedHours: 60},
		}),
		Config: datatypes.NewJSONType(types.TemplateConfig{
			EstimatedDurationWeeks: 20,
		}),
		IsActive:  true,
		CreatedBy: createdBy,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return t
}

func SeedCalendarEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, eventType, priority string, start time.Time, end *time.Time) *types.CalendarEvent {
	tb.Helper()
	return SeedSemesterEvent(tb, ctx, tx, eventType, priority, "fall", start, end)
}

func SeedSemesterEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, eventType, priority, semester string, start time.Time, end *time.Time) *types.CalendarEvent {
	tb.Helper()
	e := &types.CalendarEvent{
		ID:                uuid.New(),
		Title:             eventType,
		EventType:         eventType,
		StartDate:         start,
		EndDate:           end,
		AcademicYear:      "2023-2024",
		Semester:          semester,
		Priority:          priority,
		AffectsMilestones: true,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed calendar event: %v", err)
	}
	return e
}
