package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/metrics"
	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/types"
)

const (
	RecommendationNoChange        = "no_change"
	RecommendationMovedBeforeExam = "moved_before_exam"
	RecommendationMovedAfterBreak = "moved_after_break"

	examBufferDays  = 3
	breakBufferDays = 1
)

// DeadlineAdjustment is the outcome of resolving one proposed date
// against the academic calendar.
type DeadlineAdjustment struct {
	OriginalDate   time.Time              `json:"original_date"`
	AdjustedDate   time.Time              `json:"adjusted_date"`
	AdjustmentDays int                    `json:"adjustment_days"`
	Conflicts      []*types.CalendarEvent `json:"conflicts"`
	Recommendation string                 `json:"recommendation"`
	Reason         string                 `json:"reason"`
}

type CalendarService interface {
	ConflictingEvents(ctx context.Context, date time.Time, academicYear, semester string) ([]*types.CalendarEvent, error)
	DeadlineAdjustments(ctx context.Context, originalDate time.Time, academicYear, semester string) (*DeadlineAdjustment, error)
}

type calendarService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.CalendarEventRepo
}

func NewCalendarService(db *gorm.DB, log *logger.Logger, repo repos.CalendarEventRepo) CalendarService {
	return &calendarService{
		db:   db,
		log:  log.With("service", "CalendarService"),
		repo: repo,
	}
}

// ConflictingEvents returns the milestone-affecting events covering
// the given date, highest priority first. Equal priorities break by
// earliest start, then id, so resolution is deterministic.
func (cs *calendarService) ConflictingEvents(ctx context.Context, date time.Time, academicYear, semester string) ([]*types.CalendarEvent, error) {
	events, err := cs.repo.ListMilestoneAffecting(dbctx.Context{Ctx: ctx}, academicYear, semester)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}

	conflicts := []*types.CalendarEvent{}
	for _, e := range events {
		if e.Contains(date) {
			conflicts = append(conflicts, e)
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		ri, rj := types.PriorityRank(conflicts[i].Priority), types.PriorityRank(conflicts[j].Priority)
		if ri != rj {
			return ri > rj
		}
		if !conflicts[i].StartDate.Equal(conflicts[j].StartDate) {
			return conflicts[i].StartDate.Before(conflicts[j].StartDate)
		}
		return conflicts[i].ID.String() < conflicts[j].ID.String()
	})
	return conflicts, nil
}

// DeadlineAdjustments resolves a proposed deadline. Only the single
// highest-priority conflict drives the direction; remaining conflicts
// are reported but not separately resolved.
func (cs *calendarService) DeadlineAdjustments(ctx context.Context, originalDate time.Time, academicYear, semester string) (*DeadlineAdjustment, error) {
	conflicts, err := cs.ConflictingEvents(ctx, originalDate, academicYear, semester)
	if err != nil {
		return nil, err
	}

	if len(conflicts) == 0 {
		metrics.DeadlineAdjustments.WithLabelValues(RecommendationNoChange).Inc()
		return &DeadlineAdjustment{
			OriginalDate:   originalDate,
			AdjustedDate:   originalDate,
			AdjustmentDays: 0,
			Conflicts:      conflicts,
			Recommendation: RecommendationNoChange,
			Reason:         "No conflicting academic events",
		}, nil
	}

	top := conflicts[0]
	var adjusted time.Time
	var recommendation, reason string

	if top.EventType == types.EventExamPeriod || top.Priority == types.PriorityCritical {
		// Land on a business day strictly before the conflict starts.
		adjusted = previousBusinessDay(top.StartDate.AddDate(0, 0, -examBufferDays))
		recommendation = RecommendationMovedBeforeExam
		reason = fmt.Sprintf("Moved before %q (%s) to keep the deadline clear of it", top.Title, top.EventType)
	} else {
		end := top.StartDate
		if top.EndDate != nil {
			end = *top.EndDate
		}
		adjusted = nextBusinessDay(end.AddDate(0, 0, breakBufferDays))
		recommendation = RecommendationMovedAfterBreak
		reason = fmt.Sprintf("Moved after %q (%s) ends", top.Title, top.EventType)
	}

	days := int(adjusted.Truncate(24*time.Hour).Sub(originalDate.Truncate(24*time.Hour)).Hours() / 24)
	metrics.DeadlineAdjustments.WithLabelValues(recommendation).Inc()
	return &DeadlineAdjustment{
		OriginalDate:   originalDate,
		AdjustedDate:   adjusted,
		AdjustmentDays: days,
		Conflicts:      conflicts,
		Recommendation: recommendation,
		Reason:         reason,
	}, nil
}

// The walks are iterative rather than closed-form so that multi-day
// weekend clusters are skipped correctly.

func previousBusinessDay(date time.Time) time.Time {
	for isWeekend(date) {
		date = date.AddDate(0, 0, -1)
	}
	return date
}

func nextBusinessDay(date time.Time) time.Time {
	for isWeekend(date) {
		date = date.AddDate(0, 0, 1)
	}
	return date
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
