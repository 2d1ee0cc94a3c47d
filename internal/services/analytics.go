package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/apperr"
	redisclient "github.com/projecthub/projecthub-backend/internal/clients/redis"
	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/types"
)

const analyticsCacheTTL = 5 * time.Minute

// TemplateSummary aggregates one template's effectiveness history.
type TemplateSummary struct {
	TemplateID            uuid.UUID `json:"template_id"`
	Name                  string    `json:"name"`
	UsageCount            int       `json:"usage_count"`
	AverageRating         float64   `json:"average_rating"`
	RatingCount           int       `json:"rating_count"`
	TrackedProjects       int       `json:"tracked_projects"`
	CompletedProjects     int       `json:"completed_projects"`
	AbandonedProjects     int       `json:"abandoned_projects"`
	CompletionRate        float64   `json:"completion_rate"`
	AverageCompletion     float64   `json:"average_completion"`
	AverageScore          float64   `json:"average_score"`
	AverageDurationDays   *float64  `json:"average_duration_days,omitempty"`
	AverageDurationDelta  *float64  `json:"average_duration_delta,omitempty"`
	OnTrackProjects       int       `json:"on_track_projects"`
	InProgressProjects    int       `json:"in_progress_projects"`
	RatingDistribution    [5]int    `json:"rating_distribution"`
	CompletionBuckets     [4]int    `json:"completion_buckets"`
}

// UsageRank is one row of the most-used ranking.
type UsageRank struct {
	TemplateID     uuid.UUID `json:"template_id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	UsageCount     int       `json:"usage_count"`
	AverageRating  float64   `json:"average_rating"`
	AverageScore   float64   `json:"average_score"`
}

type Overview struct {
	TotalTemplates    int         `json:"total_templates"`
	ActiveTemplates   int         `json:"active_templates"`
	TotalUsage        int         `json:"total_usage"`
	AverageRating     float64     `json:"average_rating"`
	MostUsed          []UsageRank `json:"most_used"`
	TopRated          []UsageRank `json:"top_rated"`
	GeneratedAt       time.Time   `json:"generated_at"`
}

type AnalyticsService interface {
	TemplateSummary(ctx context.Context, templateID uuid.UUID) (*TemplateSummary, error)
	MostUsed(ctx context.Context, limit int) ([]UsageRank, error)
	Overview(ctx context.Context) (*Overview, error)
	InvalidateTemplate(ctx context.Context, templateID uuid.UUID)
}

type analyticsService struct {
	db           *gorm.DB
	log          *logger.Logger
	templateRepo repos.TemplateRepo
	effRepo      repos.EffectivenessRepo
	cache        redisclient.Cache
}

// NewAnalyticsService builds the analytics layer. cache may be nil;
// every read then goes straight to the database.
func NewAnalyticsService(db *gorm.DB, log *logger.Logger, templateRepo repos.TemplateRepo, effRepo repos.EffectivenessRepo, cache redisclient.Cache) AnalyticsService {
	return &analyticsService{
		db:           db,
		log:          log.With("service", "AnalyticsService"),
		templateRepo: templateRepo,
		effRepo:      effRepo,
		cache:        cache,
	}
}

func (as *analyticsService) TemplateSummary(ctx context.Context, templateID uuid.UUID) (*TemplateSummary, error) {
	key := fmt.Sprintf("analytics:template:%s", templateID)
	if cached, ok := as.cacheGet(ctx, key); ok {
		var summary TemplateSummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return &summary, nil
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	t, err := as.loadTemplate(dbc, templateID)
	if err != nil {
		return nil, err
	}
	records, err := as.effRepo.ListByTemplateID(dbc, templateID)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}

	summary := summarize(t, records, time.Now().UTC())
	as.cacheSet(ctx, key, summary)
	return summary, nil
}

func (as *analyticsService) MostUsed(ctx context.Context, limit int) ([]UsageRank, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	key := fmt.Sprintf("analytics:most_used:%d", limit)
	if cached, ok := as.cacheGet(ctx, key); ok {
		var ranks []UsageRank
		if err := json.Unmarshal(cached, &ranks); err == nil {
			return ranks, nil
		}
	}

	ranks, err := as.rankTemplates(ctx, limit, func(a, b UsageRank) bool {
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.Name < b.Name
	})
	if err != nil {
		return nil, err
	}
	as.cacheSet(ctx, key, ranks)
	return ranks, nil
}

func (as *analyticsService) Overview(ctx context.Context) (*Overview, error) {
	const key = "analytics:overview"
	if cached, ok := as.cacheGet(ctx, key); ok {
		var ov Overview
		if err := json.Unmarshal(cached, &ov); err == nil {
			return &ov, nil
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	templates, err := as.templateRepo.List(dbc, repos.TemplateFilter{IncludeArchived: true})
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}

	ov := &Overview{GeneratedAt: time.Now().UTC()}
	var ratingSum float64
	var rated int
	for _, t := range templates {
		ov.TotalTemplates++
		if t.IsActive && !t.IsArchived {
			ov.ActiveTemplates++
		}
		ov.TotalUsage += t.UsageCount
		if t.RatingCount > 0 {
			ratingSum += t.AverageRating
			rated++
		}
	}
	if rated > 0 {
		ov.AverageRating = round2(ratingSum / float64(rated))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error {
		ranks, err := as.rankFrom(gctx, templates, 5, func(a, b UsageRank) bool {
			if a.UsageCount != b.UsageCount {
				return a.UsageCount > b.UsageCount
			}
			return a.Name < b.Name
		})
		if err != nil {
			return err
		}
		ov.MostUsed = ranks
		return nil
	})
	g.Go(func() error {
		ranks, err := as.rankFrom(gctx, templates, 5, func(a, b UsageRank) bool {
			if a.AverageRating != b.AverageRating {
				return a.AverageRating > b.AverageRating
			}
			return a.Name < b.Name
		})
		if err != nil {
			return err
		}
		ov.TopRated = ranks
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	as.cacheSet(ctx, key, ov)
	return ov, nil
}

func (as *analyticsService) InvalidateTemplate(ctx context.Context, templateID uuid.UUID) {
	if as.cache == nil {
		return
	}
	as.cache.Invalidate(ctx, fmt.Sprintf("analytics:template:%s", templateID))
	as.cache.Invalidate(ctx, "analytics:most_used:*")
	as.cache.Invalidate(ctx, "analytics:overview")
}

func (as *analyticsService) rankTemplates(ctx context.Context, limit int, less func(a, b UsageRank) bool) ([]UsageRank, error) {
	dbc := dbctx.Context{Ctx: ctx}
	templates, err := as.templateRepo.List(dbc, repos.TemplateFilter{})
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	return as.rankFrom(ctx, templates, limit, less)
}

// rankFrom computes per-template scores concurrently before sorting.
// The limit on the group keeps the connection pool honest.
func (as *analyticsService) rankFrom(ctx context.Context, templates []*types.Template, limit int, less func(a, b UsageRank) bool) ([]UsageRank, error) {
	ranks := make([]UsageRank, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, t := range templates {
		i, t := i, t
		g.Go(func() error {
			records, err := as.effRepo.ListByTemplateID(dbctx.Context{Ctx: gctx}, t.ID)
			if err != nil {
				return fmt.Errorf("error listing records: %w", err)
			}
			ranks[i] = UsageRank{
				TemplateID:     t.ID,
				Name:           t.Name,
				Specialization: t.Specialization,
				UsageCount:     t.UsageCount,
				AverageRating:  t.AverageRating,
				AverageScore:   averageScore(records),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranks, func(i, j int) bool { return less(ranks[i], ranks[j]) })
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

func summarize(t *types.Template, records []*types.EffectivenessRecord, now time.Time) *TemplateSummary {
	summary := &TemplateSummary{
		TemplateID:      t.ID,
		Name:            t.Name,
		UsageCount:      t.UsageCount,
		AverageRating:   t.AverageRating,
		RatingCount:     t.RatingCount,
		TrackedProjects: len(records),
	}

	var completionSum, scoreSum float64
	var durationSum, deltaSum float64
	var durations int
	for _, rec := range records {
		completionSum += float64(rec.CompletionPercentage)
		scoreSum += EffectivenessScore(rec)

		switch rec.CompletionStatus {
		case types.CompletionCompleted:
			summary.CompletedProjects++
		case types.CompletionAbandoned:
			summary.AbandonedProjects++
		case types.CompletionInProgress:
			summary.InProgressProjects++
			if IsOnTrack(rec, now) {
				summary.OnTrackProjects++
			}
		}

		if rec.ActualDurationDays != nil {
			durationSum += float64(*rec.ActualDurationDays)
			deltaSum += float64(*rec.ActualDurationDays - rec.EstimatedDurationDays)
			durations++
		}
		if rec.Rating != nil && *rec.Rating >= 1 && *rec.Rating <= 5 {
			summary.RatingDistribution[*rec.Rating-1]++
		}
		summary.CompletionBuckets[completionBucket(rec.CompletionPercentage)]++
	}

	if len(records) > 0 {
		summary.AverageCompletion = round2(completionSum / float64(len(records)))
		summary.AverageScore = round2(scoreSum / float64(len(records)))
		summary.CompletionRate = round2(float64(summary.CompletedProjects) / float64(len(records)) * 100)
	}
	if durations > 0 {
		avgDur := round2(durationSum / float64(durations))
		avgDelta := round2(deltaSum / float64(durations))
		summary.AverageDurationDays = &avgDur
		summary.AverageDurationDelta = &avgDelta
	}
	return summary
}

func completionBucket(pct int) int {
	switch {
	case pct >= 100:
		return 3
	case pct >= 67:
		return 2
	case pct >= 34:
		return 1
	default:
		return 0
	}
}

func averageScore(records []*types.EffectivenessRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range records {
		sum += EffectivenessScore(rec)
	}
	return round2(sum / float64(len(records)))
}

func (as *analyticsService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if as.cache == nil {
		return nil, false
	}
	return as.cache.Get(ctx, key)
}

func (as *analyticsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if as.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		as.log.Warn("failed to marshal cache value", "key", key, "error", err)
		return
	}
	as.cache.Set(ctx, key, raw, analyticsCacheTTL)
}

func (as *analyticsService) loadTemplate(dbc dbctx.Context, templateID uuid.UUID) (*types.Template, error) {
	found, err := as.templateRepo.GetByIDs(dbc, []uuid.UUID{templateID})
	if err != nil {
		return nil, fmt.Errorf("error fetching template: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apperr.NotFound("template_not_found", "Template %s not found", templateID)
	}
	return found[0], nil
}
