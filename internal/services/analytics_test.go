package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/repos/testutil"
	"github.com/projecthub/projecthub-backend/internal/types"
)

func TestSummarize(t *testing.T) {
	tmpl := &types.Template{ID: uuid.New(), Name: "Thesis Plan", UsageCount: 4, AverageRating: 4.5, RatingCount: 2}
	started := time.Now().UTC().AddDate(0, 0, -10)
	dur := 130
	rating := 4

	records := []*types.EffectivenessRecord{
		{
			CompletionStatus:      types.CompletionCompleted,
			CompletionPercentage:  100,
			EstimatedDurationDays: 140,
			ActualDurationDays:    &dur,
			Rating:                &rating,
		},
		{
			CompletionStatus:      types.CompletionInProgress,
			CompletionPercentage:  50,
			EstimatedDurationDays: 140,
			StartedAt:             &started,
		},
		{
			CompletionStatus:     types.CompletionAbandoned,
			CompletionPercentage: 20,
		},
	}

	s := summarize(tmpl, records, time.Now().UTC())
	if s.TrackedProjects != 3 || s.CompletedProjects != 1 || s.AbandonedProjects != 1 || s.InProgressProjects != 1 {
		t.Fatalf("counts = %+v", s)
	}
	if s.CompletionRate != 33.33 {
		t.Fatalf("completion rate = %v, want 33.33", s.CompletionRate)
	}
	if s.AverageCompletion != 56.67 {
		t.Fatalf("average completion = %v, want 56.67", s.AverageCompletion)
	}
	// Ten days into a 140-day plan, 50% complete is comfortably ahead.
	if s.OnTrackProjects != 1 {
		t.Fatalf("on track = %d, want 1", s.OnTrackProjects)
	}
	if s.AverageDurationDays == nil || *s.AverageDurationDays != 130 {
		t.Fatalf("average duration = %+v, want 130", s.AverageDurationDays)
	}
	if s.AverageDurationDelta == nil || *s.AverageDurationDelta != -10 {
		t.Fatalf("duration delta = %+v, want -10", s.AverageDurationDelta)
	}
	if s.RatingDistribution[3] != 1 {
		t.Fatalf("rating distribution = %+v", s.RatingDistribution)
	}
	if s.CompletionBuckets != [4]int{1, 1, 0, 1} {
		t.Fatalf("completion buckets = %+v", s.CompletionBuckets)
	}
}

func TestAnalyticsService(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	templateRepo := repos.NewTemplateRepo(db, log)
	effRepo := repos.NewEffectivenessRepo(db, log)
	// nil cache: every call goes to the database.
	svc := NewAnalyticsService(db, log, templateRepo, effRepo, nil)

	admin := testutil.SeedUser(t, ctx, db, "admin@example.com", types.RoleAdmin)
	popular := testutil.SeedTemplate(t, ctx, db, admin.ID)
	popular.UsageCount = 9
	if err := db.Save(popular).Error; err != nil {
		t.Fatalf("bump usage: %v", err)
	}

	niche := &types.Template{
		ID:             uuid.New(),
		Name:           "Capstone Plan",
		Specialization: "data_science",
		ProjectType:    "capstone",
		Milestones: datatypes.NewJSONSlice([]types.MilestoneItem{
			{Title: "Kickoff", DaysFromStart: 7, EstimatedHours: 8},
		}),
		Config:     datatypes.NewJSONType(types.TemplateConfig{EstimatedDurationWeeks: 12}),
		IsActive:   true,
		UsageCount: 2,
		CreatedBy:  admin.ID,
	}
	if err := db.Create(niche).Error; err != nil {
		t.Fatalf("seed niche: %v", err)
	}

	rec := &types.EffectivenessRecord{
		ID:                   uuid.New(),
		TemplateID:           popular.ID,
		ProjectID:            uuid.New(),
		StudentID:            uuid.New(),
		CompletionStatus:     types.CompletionCompleted,
		CompletionPercentage: 100,
		TotalMilestones:      3,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	summary, err := svc.TemplateSummary(ctx, popular.ID)
	if err != nil {
		t.Fatalf("TemplateSummary: %v", err)
	}
	if summary.TrackedProjects != 1 || summary.CompletedProjects != 1 || summary.UsageCount != 9 {
		t.Fatalf("summary = %+v", summary)
	}

	ranks, err := svc.MostUsed(ctx, 10)
	if err != nil {
		t.Fatalf("MostUsed: %v", err)
	}
	if len(ranks) != 2 || ranks[0].TemplateID != popular.ID {
		t.Fatalf("most used order = %+v", ranks)
	}

	overview, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview.TotalTemplates != 2 || overview.ActiveTemplates != 2 || overview.TotalUsage != 11 {
		t.Fatalf("overview = %+v", overview)
	}
	if len(overview.MostUsed) != 2 || overview.MostUsed[0].TemplateID != popular.ID {
		t.Fatalf("overview most used = %+v", overview.MostUsed)
	}
}

// recordingCache captures invalidation patterns instead of talking to
// redis.
type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (c *recordingCache) Set(context.Context, string, []byte, time.Duration) {}

func (c *recordingCache) Close() error { return nil }

func (c *recordingCache) Invalidate(_ context.Context, pattern string) {
	c.invalidated = append(c.invalidated, pattern)
}

func (c *recordingCache) reset() { c.invalidated = nil }

func (c *recordingCache) has(pattern string) bool {
	for _, p := range c.invalidated {
		if p == pattern {
			return true
		}
	}
	return false
}

func TestAnalyticsInvalidationOnMutation(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	templateRepo := repos.NewTemplateRepo(db, log)
	effRepo := repos.NewEffectivenessRepo(db, log)
	userRepo := repos.NewUserRepo(db, log)
	projectRepo := repos.NewProjectRepo(db, log)

	cache := &recordingCache{}
	analyticsSvc := NewAnalyticsService(db, log, templateRepo, effRepo, cache)
	versionSvc := NewVersionService(db, log, templateRepo, repos.NewTemplateVersionRepo(db, log), userRepo)
	templateSvc := NewTemplateService(db, log, templateRepo, userRepo, versionSvc, NewLogAuditor(log), analyticsSvc)
	effSvc := NewEffectivenessService(db, log, effRepo, templateRepo, projectRepo, analyticsSvc)

	admin := testutil.SeedUser(t, ctx, db, "admin@example.com", types.RoleAdmin)
	student := testutil.SeedUser(t, ctx, db, "student@example.com", types.RoleStudent)
	tmpl := testutil.SeedTemplate(t, ctx, db, admin.ID)
	project := testutil.SeedProject(t, ctx, db, student.ID)

	name := "Thesis Plan v2"
	if _, err := templateSvc.Update(ctx, tmpl.ID, UpdateTemplateInput{Name: &name}, admin.ID, "rename", true); err != nil {
		t.Fatalf("Update: %v", err)
	}
	templateKey := "analytics:template:" + tmpl.ID.String()
	if !cache.has(templateKey) || !cache.has("analytics:most_used:*") || !cache.has("analytics:overview") {
		t.Fatalf("update did not drop cached rollups: %+v", cache.invalidated)
	}

	cache.reset()
	if _, err := effSvc.TrackUsage(ctx, tmpl.ID, project.ID, student.ID); err != nil {
		t.Fatalf("TrackUsage: %v", err)
	}
	if !cache.has(templateKey) {
		t.Fatalf("track usage did not drop cached rollups: %+v", cache.invalidated)
	}

	// Re-tracking the same pair changes nothing, so the cache is left
	// alone.
	cache.reset()
	if _, err := effSvc.TrackUsage(ctx, tmpl.ID, project.ID, student.ID); err != nil {
		t.Fatalf("TrackUsage again: %v", err)
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("idempotent track usage invalidated: %+v", cache.invalidated)
	}

	cache.reset()
	if _, err := effSvc.RecordStudentFeedback(ctx, project.ID, 4, "solid", nil, nil); err != nil {
		t.Fatalf("RecordStudentFeedback: %v", err)
	}
	if !cache.has(templateKey) {
		t.Fatalf("feedback did not drop cached rollups: %+v", cache.invalidated)
	}
}
