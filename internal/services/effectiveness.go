package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/apperr"
	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/metrics"
	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/types"
)

const (
	MilestoneStatusPending   = "pending"
	MilestoneStatusCompleted = "completed"
	MilestoneStatusOverdue   = "overdue"
	MilestoneStatusSkipped   = "skipped"
)

type EffectivenessService interface {
	TrackUsage(ctx context.Context, templateID, projectID, studentID uuid.UUID) (*types.EffectivenessRecord, error)
	UpdateMilestoneProgress(ctx context.Context, projectID uuid.UUID, title, status string, actualDays *int) (*types.EffectivenessRecord, error)
	RecordStudentFeedback(ctx context.Context, projectID uuid.UUID, rating int, feedback string, wouldRecommend *bool, difficulty *types.DifficultyRatings) (*types.EffectivenessRecord, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) (*types.EffectivenessRecord, error)
	ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*types.EffectivenessRecord, error)
}

type effectivenessService struct {
	db           *gorm.DB
	log          *logger.Logger
	repo         repos.EffectivenessRepo
	templateRepo repos.TemplateRepo
	projectRepo  repos.ProjectRepo
	analytics    AnalyticsService
}

// NewEffectivenessService builds the tracking layer. analytics may be
// nil; cached rollups then age out on TTL alone.
func NewEffectivenessService(db *gorm.DB, log *logger.Logger, repo repos.EffectivenessRepo, templateRepo repos.TemplateRepo, projectRepo repos.ProjectRepo, analytics AnalyticsService) EffectivenessService {
	return &effectivenessService{
		db:           db,
		log:          log.With("service", "EffectivenessService"),
		repo:         repo,
		templateRepo: templateRepo,
		projectRepo:  projectRepo,
		analytics:    analytics,
	}
}

// TrackUsage opens the effectiveness record for a (template, project)
// pair. Calling it again for the same pair returns the existing
// record unchanged.
func (es *effectivenessService) TrackUsage(ctx context.Context, templateID, projectID, studentID uuid.UUID) (*types.EffectivenessRecord, error) {
	var out *types.EffectivenessRecord
	created := false
	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		existing, err := es.repo.GetByTemplateAndProject(dbc, templateID, projectID)
		if err != nil {
			return fmt.Errorf("error fetching record: %w", err)
		}
		if existing != nil {
			out = existing
			return nil
		}

		templates, err := es.templateRepo.GetByIDs(dbc, []uuid.UUID{templateID})
		if err != nil {
			return fmt.Errorf("error fetching template: %w", err)
		}
		if len(templates) == 0 || templates[0] == nil {
			return apperr.NotFound("template_not_found", "Template %s not found", templateID)
		}
		t := templates[0]

		project, err := es.projectRepo.GetByID(dbc, projectID)
		if err != nil {
			return fmt.Errorf("error fetching project: %w", err)
		}
		if project == nil {
			return apperr.NotFound("project_not_found", "Project %s not found", projectID)
		}

		now := time.Now().UTC()
		rec := &types.EffectivenessRecord{
			ID:                    uuid.New(),
			TemplateID:            templateID,
			ProjectID:             projectID,
			StudentID:             studentID,
			CompletionStatus:      types.CompletionNotStarted,
			TotalMilestones:       len(t.Milestones),
			EstimatedDurationDays: t.EstimatedDurationDays(),
			EstimatedEffortHours:  t.TotalEstimatedHours(),
			StartedAt:             &now,
		}
		if err := es.repo.Create(dbc, rec); err != nil {
			return fmt.Errorf("error creating record: %w", err)
		}

		t.UsageCount++
		if err := es.templateRepo.Save(dbc, t); err != nil {
			return fmt.Errorf("error updating usage count: %w", err)
		}
		out = rec
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		es.invalidateAnalytics(ctx, templateID)
	}
	return out, nil
}

// UpdateMilestoneProgress upserts a ledger entry and recomputes the
// record's counters. A progress event with no tracking record is a
// valid no-op: tracking may lag behind the first status change.
func (es *effectivenessService) UpdateMilestoneProgress(ctx context.Context, projectID uuid.UUID, title, status string, actualDays *int) (*types.EffectivenessRecord, error) {
	var out *types.EffectivenessRecord
	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		rec, err := es.repo.GetByProjectID(dbc, projectID)
		if err != nil {
			return fmt.Errorf("error fetching record: %w", err)
		}
		if rec == nil {
			metrics.OrphanProgressEvents.Inc()
			es.log.Debug("Progress event without tracking record", "project_id", projectID.String(), "milestone", title)
			return nil
		}

		now := time.Now().UTC()
		ledger := []types.MilestoneOutcome(rec.MilestoneLedger)
		found := false
		for i := range ledger {
			if ledger[i].Title == title {
				ledger[i].Status = status
				if actualDays != nil {
					ledger[i].ActualDays = actualDays
				}
				if status == MilestoneStatusCompleted {
					stamp := now
					ledger[i].CompletedAt = &stamp
				}
				found = true
				break
			}
		}
		if !found {
			entry := types.MilestoneOutcome{Title: title, Status: status, ActualDays: actualDays}
			if status == MilestoneStatusCompleted {
				stamp := now
				entry.CompletedAt = &stamp
			}
			ledger = append(ledger, entry)
		}
		rec.MilestoneLedger = ledger

		recomputeCounters(rec)

		switch {
		case rec.CompletionPercentage >= 100:
			rec.CompletionStatus = types.CompletionCompleted
			if rec.CompletedAt == nil {
				stamp := now
				rec.CompletedAt = &stamp
			}
			if rec.StartedAt != nil {
				actual := int(now.Sub(*rec.StartedAt).Hours() / 24)
				rec.ActualDurationDays = &actual
				if rec.EstimatedDurationDays > 0 {
					variance := round2(float64(actual) / float64(rec.EstimatedDurationDays))
					rec.DurationVariance = &variance
				}
			}
		case rec.CompletionPercentage == 0:
			rec.CompletionStatus = types.CompletionNotStarted
		default:
			rec.CompletionStatus = types.CompletionInProgress
		}
		rec.LastActivityAt = &now

		if err := es.repo.Save(dbc, rec); err != nil {
			return fmt.Errorf("error saving record: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		es.invalidateAnalytics(ctx, out.TemplateID)
	}
	return out, nil
}

func (es *effectivenessService) RecordStudentFeedback(ctx context.Context, projectID uuid.UUID, rating int, feedback string, wouldRecommend *bool, difficulty *types.DifficultyRatings) (*types.EffectivenessRecord, error) {
	var out *types.EffectivenessRecord
	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		rec, err := es.repo.GetByProjectID(dbc, projectID)
		if err != nil {
			return fmt.Errorf("error fetching record: %w", err)
		}
		if rec == nil {
			return apperr.NotFound("tracking_record_not_found", "No effectiveness record for project %s", projectID)
		}

		clamped := clampRating(rating)
		rec.Rating = &clamped
		rec.Feedback = feedback
		rec.WouldRecommend = wouldRecommend
		if difficulty != nil {
			rec.DifficultyRatings = datatypes.NewJSONType(*difficulty)
		}
		if err := es.repo.Save(dbc, rec); err != nil {
			return fmt.Errorf("error saving record: %w", err)
		}

		templates, err := es.templateRepo.GetByIDs(dbc, []uuid.UUID{rec.TemplateID})
		if err != nil {
			return fmt.Errorf("error fetching template: %w", err)
		}
		if len(templates) > 0 && templates[0] != nil {
			t := templates[0]
			t.AverageRating = updatedAverageRating(t.AverageRating, t.RatingCount, clamped)
			t.RatingCount++
			if err := es.templateRepo.Save(dbc, t); err != nil {
				return fmt.Errorf("error updating rating: %w", err)
			}
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	es.invalidateAnalytics(ctx, out.TemplateID)
	return out, nil
}

func (es *effectivenessService) GetByProject(ctx context.Context, projectID uuid.UUID) (*types.EffectivenessRecord, error) {
	rec, err := es.repo.GetByProjectID(dbctx.Context{Ctx: ctx}, projectID)
	if err != nil {
		return nil, fmt.Errorf("error fetching record: %w", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("tracking_record_not_found", "No effectiveness record for project %s", projectID)
	}
	return rec, nil
}

func (es *effectivenessService) ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*types.EffectivenessRecord, error) {
	return es.repo.ListByTemplateID(dbctx.Context{Ctx: ctx}, templateID)
}

func (es *effectivenessService) invalidateAnalytics(ctx context.Context, templateID uuid.UUID) {
	if es.analytics != nil {
		es.analytics.InvalidateTemplate(ctx, templateID)
	}
}

// recomputeCounters rescans the ledger; the counters are derived
// state, never incremented blindly.
func recomputeCounters(rec *types.EffectivenessRecord) {
	completed, overdue := 0, 0
	for _, entry := range rec.MilestoneLedger {
		switch entry.Status {
		case MilestoneStatusCompleted:
			completed++
		case MilestoneStatusOverdue:
			overdue++
		}
	}
	rec.CompletedMilestones = completed
	rec.OverdueMilestones = overdue

	total := rec.TotalMilestones
	if total == 0 {
		total = len(rec.MilestoneLedger)
	}
	if total > 0 {
		rec.CompletionPercentage = int(math.Round(float64(completed) / float64(total) * 100))
	} else {
		rec.CompletionPercentage = 0
	}
}

// EffectivenessScore is the weighted composite in [0, 100]. Factors
// without data are excluded and the weights renormalized over what
// remains; a record with no usable factor scores zero.
func EffectivenessScore(rec *types.EffectivenessRecord) float64 {
	var weighted, weights float64

	weighted += 0.4 * float64(rec.CompletionPercentage) / 100
	weights += 0.4

	if rec.ActualEffortHours != nil && rec.EstimatedEffortHours > 0 {
		weighted += 0.2 * clamp01(2 - *rec.ActualEffortHours/rec.EstimatedEffortHours)
		weights += 0.2
	}
	if rec.ActualDurationDays != nil && rec.EstimatedDurationDays > 0 {
		weighted += 0.2 * clamp01(2-float64(*rec.ActualDurationDays)/float64(rec.EstimatedDurationDays))
		weights += 0.2
	}
	if rec.Rating != nil {
		weighted += 0.2 * float64(clampRating(*rec.Rating)) / 5
		weights += 0.2
	}

	if weights == 0 {
		return 0
	}
	return round2(weighted / weights * 100)
}

// IsOnTrack compares actual progress against a linear schedule with a
// ten-point grace band. Only meaningful for in-progress records.
func IsOnTrack(rec *types.EffectivenessRecord, now time.Time) bool {
	if rec.CompletionStatus != types.CompletionInProgress {
		return rec.CompletionStatus == types.CompletionCompleted
	}
	if rec.StartedAt == nil || rec.EstimatedDurationDays <= 0 {
		return true
	}
	daysSinceStart := now.Sub(*rec.StartedAt).Hours() / 24
	expected := daysSinceStart / float64(rec.EstimatedDurationDays) * 100
	if expected > 100 {
		expected = 100
	}
	return float64(rec.CompletionPercentage) >= expected-10
}

func updatedAverageRating(avg float64, count, rating int) float64 {
	return round2((avg*float64(count) + float64(rating)) / float64(count+1))
}

func clampRating(rating int) int {
	if rating < 1 {
		return 1
	}
	if rating > 5 {
		return 5
	}
	return rating
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
