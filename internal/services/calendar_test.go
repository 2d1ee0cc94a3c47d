package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/repos/testutil"
	"github.com/projecthub/projecthub-backend/internal/types"
)

func newCalendarFixture(t *testing.T) (CalendarService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewCalendarService(db, log, repos.NewCalendarEventRepo(db, log))
	return svc, db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeadlineAdjustmentsNoConflict(t *testing.T) {
	svc, _ := newCalendarFixture(t)

	adj, err := svc.DeadlineAdjustments(context.Background(), day(2023, time.September, 1), "2023-2024", "fall")
	if err != nil {
		t.Fatalf("DeadlineAdjustments: %v", err)
	}
	if adj.Recommendation != RecommendationNoChange || adj.AdjustmentDays != 0 {
		t.Fatalf("expected no_change/0, got %q/%d", adj.Recommendation, adj.AdjustmentDays)
	}
	if !adj.AdjustedDate.Equal(adj.OriginalDate) {
		t.Fatalf("no_change must keep the original date")
	}
}

func TestDeadlineAdjustmentsExamPeriod(t *testing.T) {
	svc, db := newCalendarFixture(t)
	ctx := context.Background()

	end := day(2023, time.December, 15)
	testutil.SeedCalendarEvent(t, ctx, db, types.EventExamPeriod, types.PriorityHigh, day(2023, time.December, 6), &end)

	adj, err := svc.DeadlineAdjustments(ctx, day(2023, time.December, 8), "2023-2024", "fall")
	if err != nil {
		t.Fatalf("DeadlineAdjustments: %v", err)
	}
	if adj.Recommendation != RecommendationMovedBeforeExam {
		t.Fatalf("recommendation = %q, want moved_before_exam", adj.Recommendation)
	}
	// Three days before the exam starts lands on Sunday Dec 3; the
	// walk back must stop on Friday Dec 1.
	if want := day(2023, time.December, 1); !adj.AdjustedDate.Equal(want) {
		t.Fatalf("adjusted = %v, want %v", adj.AdjustedDate, want)
	}
	if adj.AdjustmentDays != -7 {
		t.Fatalf("adjustment days = %d, want -7", adj.AdjustmentDays)
	}
	if len(adj.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(adj.Conflicts))
	}

	// Resolving the already-adjusted date again must be stable.
	again, err := svc.DeadlineAdjustments(ctx, adj.AdjustedDate, "2023-2024", "fall")
	if err != nil {
		t.Fatalf("second DeadlineAdjustments: %v", err)
	}
	if again.Recommendation != RecommendationNoChange {
		t.Fatalf("adjusted date still conflicts: %q", again.Recommendation)
	}
}

func TestDeadlineAdjustmentsAfterBreak(t *testing.T) {
	svc, db := newCalendarFixture(t)
	ctx := context.Background()

	// Single-day holiday on Friday; one buffer day lands on Saturday,
	// so the walk forward must end on Monday.
	testutil.SeedCalendarEvent(t, ctx, db, types.EventHoliday, types.PriorityMedium, day(2023, time.October, 13), nil)

	adj, err := svc.DeadlineAdjustments(ctx, day(2023, time.October, 13), "2023-2024", "fall")
	if err != nil {
		t.Fatalf("DeadlineAdjustments: %v", err)
	}
	if adj.Recommendation != RecommendationMovedAfterBreak {
		t.Fatalf("recommendation = %q, want moved_after_break", adj.Recommendation)
	}
	if want := day(2023, time.October, 16); !adj.AdjustedDate.Equal(want) {
		t.Fatalf("adjusted = %v, want %v", adj.AdjustedDate, want)
	}
	if adj.AdjustmentDays != 3 {
		t.Fatalf("adjustment days = %d, want 3", adj.AdjustmentDays)
	}
}

func TestConflictingEventsOrdering(t *testing.T) {
	svc, db := newCalendarFixture(t)
	ctx := context.Background()

	target := day(2023, time.November, 15)
	examEnd := day(2023, time.November, 17)
	testutil.SeedCalendarEvent(t, ctx, db, types.EventHoliday, types.PriorityMedium, target, nil)
	exam := testutil.SeedCalendarEvent(t, ctx, db, types.EventExamPeriod, types.PriorityCritical, day(2023, time.November, 13), &examEnd)
	breakEnd := day(2023, time.November, 16)
	testutil.SeedCalendarEvent(t, ctx, db, types.EventBreak, types.PriorityMedium, day(2023, time.November, 14), &breakEnd)

	conflicts, err := svc.ConflictingEvents(ctx, target, "2023-2024", "fall")
	if err != nil {
		t.Fatalf("ConflictingEvents: %v", err)
	}
	if len(conflicts) != 3 {
		t.Fatalf("conflicts = %d, want 3", len(conflicts))
	}
	if conflicts[0].ID != exam.ID {
		t.Fatalf("highest priority conflict should lead, got %q", conflicts[0].Title)
	}
	// Equal priorities order by earliest start.
	if conflicts[1].EventType != types.EventBreak || conflicts[2].EventType != types.EventHoliday {
		t.Fatalf("tie-break by start date failed: %q then %q", conflicts[1].EventType, conflicts[2].EventType)
	}

	// The critical exam drives the resolution direction.
	adj, err := svc.DeadlineAdjustments(ctx, target, "2023-2024", "fall")
	if err != nil {
		t.Fatalf("DeadlineAdjustments: %v", err)
	}
	if adj.Recommendation != RecommendationMovedBeforeExam {
		t.Fatalf("recommendation = %q, want moved_before_exam", adj.Recommendation)
	}
	if want := day(2023, time.November, 10); !adj.AdjustedDate.Equal(want) {
		t.Fatalf("adjusted = %v, want %v", adj.AdjustedDate, want)
	}
}

func TestBusinessDayWalks(t *testing.T) {
	sat := day(2024, time.March, 9)
	if got := previousBusinessDay(sat); !got.Equal(day(2024, time.March, 8)) {
		t.Fatalf("previousBusinessDay(Sat) = %v", got)
	}
	sun := day(2024, time.March, 10)
	if got := nextBusinessDay(sun); !got.Equal(day(2024, time.March, 11)) {
		t.Fatalf("nextBusinessDay(Sun) = %v", got)
	}
	fri := day(2024, time.March, 8)
	if got := previousBusinessDay(fri); !got.Equal(fri) {
		t.Fatalf("previousBusinessDay(Fri) = %v", got)
	}
}
