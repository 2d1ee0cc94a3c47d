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
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"

	CategoryTimeline   = "timeline"
	CategoryMilestones = "milestones"

	overdueRateThreshold    = 0.3
	lowCompletionThreshold  = 0.5
	calendarPersistDaysSpan = 7
)

// MilestoneAdjustment proposes moving one milestone's offset.
type MilestoneAdjustment struct {
	Title         string `json:"title"`
	Field         string `json:"field"`
	CurrentValue  int    `json:"current_value"`
	ProposedValue int    `json:"proposed_value"`
	Reason        string `json:"reason"`
}

// Opportunity is one ranked optimization finding. Complexity is an
// explicit enumerated field; the auto-apply boundary filters on it
// alone.
type Opportunity struct {
	Category            string               `json:"category"`
	Milestone           string               `json:"milestone"`
	Issue               string               `json:"issue"`
	Recommendation      string               `json:"recommendation"`
	ExpectedImprovement float64              `json:"expected_improvement"`
	Complexity          string               `json:"complexity"`
	Priority            string               `json:"priority"`
	Adjustment          *MilestoneAdjustment `json:"adjustment,omitempty"`
}

type ChangeSet struct {
	Adjustments []MilestoneAdjustment `json:"adjustments"`
	Additions   []types.MilestoneItem `json:"additions"`
	Removals    []string              `json:"removals"`
}

type PredictedOutcome struct {
	ScoreDelta        float64 `json:"score_delta"`
	CompletionDelta   float64 `json:"completion_delta"`
	TimeAccuracyDelta float64 `json:"time_accuracy_delta"`
}

type OptimizationRecommendations struct {
	TemplateID       uuid.UUID        `json:"template_id"`
	BasedOnRecords   int              `json:"based_on_records"`
	Opportunities    []Opportunity    `json:"opportunities"`
	Changes          ChangeSet        `json:"changes"`
	PredictedOutcome PredictedOutcome `json:"predicted_outcome"`
}

type CustomizationSuggestion struct {
	Type       string `json:"type"`
	Suggestion string `json:"suggestion"`
}

type CustomizationPreview struct {
	TemplateID           uuid.UUID                 `json:"template_id"`
	ProjectType          string                    `json:"project_type"`
	Specialization       string                    `json:"specialization"`
	Suggestions          []CustomizationSuggestion `json:"suggestions"`
	EstimatedImprovement float64                   `json:"estimated_improvement"`
	BasedOnRecords       int                       `json:"based_on_records"`
}

type AutomationOptions struct {
	AutoApplyLowRiskChanges bool `json:"auto_apply_low_risk_changes"`
	CreateNewVersion        bool `json:"create_new_version"`
}

type AutomationResult struct {
	TemplateID uuid.UUID     `json:"template_id"`
	Applied    []Opportunity `json:"applied"`
	Pending    []Opportunity `json:"pending"`
	NewVersion *int          `json:"new_version,omitempty"`
}

// TimelineEntry reports one milestone's calendar resolution.
type TimelineEntry struct {
	Title        string    `json:"title"`
	OriginalDate time.Time `json:"original_date"`
	AdjustedDate time.Time `json:"adjusted_date"`
	DaysShifted  int       `json:"days_shifted"`
	Reason       string    `json:"reason"`
}

type CalendarImpact struct {
	TotalDaysShifted   int  `json:"total_days_shifted"`
	MilestonesAffected int  `json:"milestones_affected"`
	CriticalPathMoved  bool `json:"critical_path_moved"`
}

type CalendarAdjustmentResult struct {
	TemplateID uuid.UUID       `json:"template_id"`
	StartDate  time.Time       `json:"start_date"`
	Timeline   []TimelineEntry `json:"timeline"`
	Impact     CalendarImpact  `json:"impact"`
	Persisted  bool            `json:"persisted"`
	NewVersion *int            `json:"new_version,omitempty"`
}

type OptimizerService interface {
	CustomizeForProjectType(ctx context.Context, templateID uuid.UUID, projectType, specialization string, userID uuid.UUID) (*CustomizationPreview, error)
	GenerateRecommendations(ctx context.Context, templateID uuid.UUID) (*OptimizationRecommendations, error)
	AutomateOptimization(ctx context.Context, templateID, userID uuid.UUID, opts AutomationOptions) (*AutomationResult, error)
	AdjustToAcademicCalendar(ctx context.Context, templateID uuid.UUID, academicYear string, startDate time.Time, userID uuid.UUID) (*CalendarAdjustmentResult, error)
}

type optimizerService struct {
	db           *gorm.DB
	log          *logger.Logger
	templateRepo repos.TemplateRepo
	effRepo      repos.EffectivenessRepo
	userRepo     repos.UserRepo
	versionSvc   VersionService
	calendarSvc  CalendarService
	audit        AuditLogger
}

func NewOptimizerService(db *gorm.DB, log *logger.Logger, templateRepo repos.TemplateRepo, effRepo repos.EffectivenessRepo, userRepo repos.UserRepo, versionSvc VersionService, calendarSvc CalendarService, audit AuditLogger) OptimizerService {
	return &optimizerService{
		db:           db,
		log:          log.With("service", "OptimizerService"),
		templateRepo: templateRepo,
		effRepo:      effRepo,
		userRepo:     userRepo,
		versionSvc:   versionSvc,
		calendarSvc:  calendarSvc,
		audit:        audit,
	}
}

// Customization rule tables. Each tag maps to its own suggestion
// generator; adding a tag is additive and touches nothing else.

var projectTypeRules = map[string]func(t *types.Template) []CustomizationSuggestion{
	"thesis": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Add a literature review checkpoint in the first quarter of the timeline"},
			{Type: "timeline", Suggestion: "Reserve the final two weeks exclusively for writing and revisions"},
		}
	},
	"capstone": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Schedule a mid-project demo with the industry partner"},
			{Type: "workload", Suggestion: "Balance implementation milestones evenly across team members"},
		}
	},
	"research": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Add an ethics/data-collection approval milestone before any field work"},
			{Type: "timeline", Suggestion: "Leave slack after data collection; analysis usually overruns"},
		}
	},
	"internship": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Align report milestones with the host organization's review cycle"},
		}
	},
}

var specializationRules = map[string]func(t *types.Template) []CustomizationSuggestion{
	"software_engineering": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Split implementation into an MVP milestone and an iteration milestone"},
			{Type: "quality", Suggestion: "Add a testing and code-review milestone before the final delivery"},
		}
	},
	"data_science": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Add a data acquisition and cleaning milestone ahead of modeling"},
			{Type: "quality", Suggestion: "Budget time for model validation against a held-out set"},
		}
	},
	"cybersecurity": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Include a threat-modeling milestone before implementation"},
		}
	},
	"design": func(t *types.Template) []CustomizationSuggestion {
		return []CustomizationSuggestion{
			{Type: "milestone", Suggestion: "Add user-testing rounds between prototype iterations"},
		}
	},
}

func (os *optimizerService) CustomizeForProjectType(ctx context.Context, templateID uuid.UUID, projectType, specialization string, userID uuid.UUID) (*CustomizationPreview, error) {
	dbc := dbctx.Context{Ctx: ctx}
	t, err := os.loadTemplate(dbc, templateID)
	if err != nil {
		return nil, err
	}
	records, err := os.effRepo.ListByTemplateID(dbc, templateID)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}

	suggestions := []CustomizationSuggestion{}
	if gen, ok := projectTypeRules[projectType]; ok {
		suggestions = append(suggestions, gen(t)...)
	}
	if gen, ok := specializationRules[specialization]; ok {
		suggestions = append(suggestions, gen(t)...)
	}

	// Headroom between historical completion and a perfect run bounds
	// how much a customization could plausibly recover.
	improvement := 0.0
	if len(records) > 0 {
		var sum float64
		for _, r := range records {
			sum += float64(r.CompletionPercentage)
		}
		avg := sum / float64(len(records))
		improvement = round2((100 - avg) * 0.2)
	}

	return &CustomizationPreview{
		TemplateID:           templateID,
		ProjectType:          projectType,
		Specialization:       specialization,
		Suggestions:          suggestions,
		EstimatedImprovement: improvement,
		BasedOnRecords:       len(records),
	}, nil
}

func (os *optimizerService) GenerateRecommendations(ctx context.Context, templateID uuid.UUID) (*OptimizationRecommendations, error) {
	dbc := dbctx.Context{Ctx: ctx}
	t, err := os.loadTemplate(dbc, templateID)
	if err != nil {
		return nil, err
	}
	records, err := os.effRepo.ListByTemplateID(dbc, templateID)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	if len(records) == 0 {
		return nil, apperr.Validation("no_effectiveness_data", "Cannot generate recommendations without effectiveness data")
	}

	opportunities := buildOpportunities(t, records)

	changes := ChangeSet{Adjustments: []MilestoneAdjustment{}, Additions: []types.MilestoneItem{}, Removals: []string{}}
	for _, opp := range opportunities {
		if opp.Adjustment != nil {
			changes.Adjustments = append(changes.Adjustments, *opp.Adjustment)
		}
	}

	return &OptimizationRecommendations{
		TemplateID:       templateID,
		BasedOnRecords:   len(records),
		Opportunities:    opportunities,
		Changes:          changes,
		PredictedOutcome: predictOutcome(opportunities),
	}, nil
}

func (os *optimizerService) AutomateOptimization(ctx context.Context, templateID, userID uuid.UUID, opts AutomationOptions) (*AutomationResult, error) {
	recs, err := os.GenerateRecommendations(ctx, templateID)
	if err != nil {
		return nil, err
	}

	result := &AutomationResult{TemplateID: templateID, Applied: []Opportunity{}, Pending: []Opportunity{}}

	lowRisk := []Opportunity{}
	for _, opp := range recs.Opportunities {
		if opp.Complexity == ComplexityLow {
			lowRisk = append(lowRisk, opp)
		} else {
			result.Pending = append(result.Pending, opp)
		}
	}

	if !opts.AutoApplyLowRiskChanges {
		result.Pending = append(lowRisk, result.Pending...)
		return result, nil
	}

	err = os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if err := os.requireManager(dbc, userID); err != nil {
			return err
		}
		t, err := os.loadTemplate(dbc, templateID)
		if err != nil {
			return err
		}

		applied := 0
		milestones := t.CloneMilestones()
		for _, opp := range lowRisk {
			if opp.Adjustment == nil {
				result.Pending = append(result.Pending, opp)
				continue
			}
			for i := range milestones {
				if milestones[i].Title == opp.Adjustment.Title {
					milestones[i].DaysFromStart = opp.Adjustment.ProposedValue
					applied++
					result.Applied = append(result.Applied, opp)
					break
				}
			}
		}
		if applied == 0 {
			return nil
		}
		t.Milestones = datatypes.NewJSONSlice(milestones)

		if err := validateTemplate(t.Name, t.Milestones, t.Config.Data()); err != nil {
			return err
		}
		if err := os.templateRepo.Save(dbc, t); err != nil {
			return fmt.Errorf("error saving template: %w", err)
		}
		metrics.OptimizationChangesApplied.Inc()

		if opts.CreateNewVersion {
			row, err := os.versionSvc.AppendVersion(dbc, t, VersionMeta{
				ChangeDescription: "Automated optimization: applied low-risk timeline adjustments",
				AuthorID:          userID,
			})
			if err != nil {
				return err
			}
			v := row.Version
			result.NewVersion = &v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result.Applied) > 0 {
		os.audit.Record(ctx, "update", "template", templateID, userID, map[string]interface{}{"automated": true, "applied": len(result.Applied)})
	}
	return result, nil
}

func (os *optimizerService) AdjustToAcademicCalendar(ctx context.Context, templateID uuid.UUID, academicYear string, startDate time.Time, userID uuid.UUID) (*CalendarAdjustmentResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	t, err := os.loadTemplate(dbc, templateID)
	if err != nil {
		return nil, err
	}

	result := &CalendarAdjustmentResult{
		TemplateID: templateID,
		StartDate:  startDate,
		Timeline:   []TimelineEntry{},
	}

	lastOffset := 0
	for _, m := range t.Milestones {
		if m.DaysFromStart > lastOffset {
			lastOffset = m.DaysFromStart
		}
	}

	adjustedOffsets := map[string]int{}
	for _, m := range t.Milestones {
		// A long template crosses semesters, so each deadline resolves
		// against the semester it actually lands in.
		original := startDate.AddDate(0, 0, m.DaysFromStart)
		adj, err := os.calendarSvc.DeadlineAdjustments(ctx, original, academicYear, semesterForDate(original))
		if err != nil {
			return nil, err
		}
		entry := TimelineEntry{
			Title:        m.Title,
			OriginalDate: original,
			AdjustedDate: adj.AdjustedDate,
			DaysShifted:  adj.AdjustmentDays,
			Reason:       adj.Reason,
		}
		if adj.AdjustmentDays != 0 {
			newOffset := m.DaysFromStart + adj.AdjustmentDays
			if newOffset < 0 {
				// The move would land before the project starts; keep
				// the original deadline and say so.
				entry.AdjustedDate = original
				entry.DaysShifted = 0
				entry.Reason += "; not applied: adjusted deadline would fall before the project start"
			} else {
				result.Impact.MilestonesAffected++
				result.Impact.TotalDaysShifted += abs(adj.AdjustmentDays)
				adjustedOffsets[m.Title] = newOffset
				if m.DaysFromStart == lastOffset {
					result.Impact.CriticalPathMoved = true
				}
			}
		}
		result.Timeline = append(result.Timeline, entry)
	}

	// Small shifts stay preview-only; only a material move is worth a
	// new version.
	if result.Impact.TotalDaysShifted <= calendarPersistDaysSpan {
		return result, nil
	}

	err = os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := os.requireManager(txc, userID); err != nil {
			return err
		}
		fresh, err := os.loadTemplate(txc, templateID)
		if err != nil {
			return err
		}
		milestones := fresh.CloneMilestones()
		for i := range milestones {
			if offset, ok := adjustedOffsets[milestones[i].Title]; ok {
				milestones[i].DaysFromStart = offset
			}
		}
		fresh.Milestones = datatypes.NewJSONSlice(milestones)
		if err := os.templateRepo.Save(txc, fresh); err != nil {
			return fmt.Errorf("error saving template: %w", err)
		}
		row, err := os.versionSvc.AppendVersion(txc, fresh, VersionMeta{
			ChangeDescription: fmt.Sprintf("Adjusted timeline to the %s academic calendar", academicYear),
			AuthorID:          userID,
		})
		if err != nil {
			return err
		}
		v := row.Version
		result.NewVersion = &v
		result.Persisted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Persisted {
		os.audit.Record(ctx, "update", "template", templateID, userID, map[string]interface{}{"calendar_adjustment": true, "days_shifted": result.Impact.TotalDaysShifted})
	}
	return result, nil
}

// buildOpportunities scans the per-milestone ledgers across all
// records for milestones that run overdue or stall.
func buildOpportunities(t *types.Template, records []*types.EffectivenessRecord) []Opportunity {
	type tally struct {
		seen      int
		overdue   int
		completed int
	}
	tallies := map[string]*tally{}
	for _, rec := range records {
		for _, entry := range rec.MilestoneLedger {
			tl, ok := tallies[entry.Title]
			if !ok {
				tl = &tally{}
				tallies[entry.Title] = tl
			}
			tl.seen++
			switch entry.Status {
			case MilestoneStatusOverdue:
				tl.overdue++
			case MilestoneStatusCompleted:
				tl.completed++
			}
		}
	}

	opportunities := []Opportunity{}
	for _, m := range t.Milestones {
		tl, ok := tallies[m.Title]
		if !ok || tl.seen == 0 {
			continue
		}
		overdueRate := float64(tl.overdue) / float64(tl.seen)
		completionRate := float64(tl.completed) / float64(tl.seen)

		if overdueRate > overdueRateThreshold {
			extension := int(math.Max(3, math.Round(overdueRate*14)))
			priority := types.PriorityMedium
			if overdueRate > 0.5 {
				priority = types.PriorityHigh
			}
			opportunities = append(opportunities, Opportunity{
				Category:            CategoryTimeline,
				Milestone:           m.Title,
				Issue:               fmt.Sprintf("%.0f%% of projects run overdue on %q", overdueRate*100, m.Title),
				Recommendation:      fmt.Sprintf("Extend the deadline for %q by %d days", m.Title, extension),
				ExpectedImprovement: round2(overdueRate * 20),
				Complexity:          ComplexityLow,
				Priority:            priority,
				Adjustment: &MilestoneAdjustment{
					Title:         m.Title,
					Field:         "days_from_start",
					CurrentValue:  m.DaysFromStart,
					ProposedValue: m.DaysFromStart + extension,
					Reason:        "Historical overdue rate above threshold",
				},
			})
		}

		if completionRate < lowCompletionThreshold {
			opportunities = append(opportunities, Opportunity{
				Category:            CategoryMilestones,
				Milestone:           m.Title,
				Issue:               fmt.Sprintf("Only %.0f%% of projects complete %q", completionRate*100, m.Title),
				Recommendation:      fmt.Sprintf("Break %q into smaller, independently verifiable steps", m.Title),
				ExpectedImprovement: round2((1 - completionRate) * 15),
				Complexity:          ComplexityMedium,
				Priority:            types.PriorityMedium,
			})
		}
	}
	return opportunities
}

// predictOutcome scales deltas by opportunity magnitude and count.
func predictOutcome(opportunities []Opportunity) PredictedOutcome {
	if len(opportunities) == 0 {
		return PredictedOutcome{}
	}
	var total, timeline float64
	for _, opp := range opportunities {
		total += opp.ExpectedImprovement
		if opp.Category == CategoryTimeline {
			timeline += opp.ExpectedImprovement
		}
	}
	count := float64(len(opportunities))
	return PredictedOutcome{
		ScoreDelta:        round2(math.Min(25, total/count+count)),
		CompletionDelta:   round2(math.Min(30, total*0.6)),
		TimeAccuracyDelta: round2(math.Min(20, timeline)),
	}
}

func (os *optimizerService) loadTemplate(dbc dbctx.Context, templateID uuid.UUID) (*types.Template, error) {
	found, err := os.templateRepo.GetByIDs(dbc, []uuid.UUID{templateID})
	if err != nil {
		return nil, fmt.Errorf("error fetching template: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apperr.NotFound("template_not_found", "Template %s not found", templateID)
	}
	return found[0], nil
}

func (os *optimizerService) requireManager(dbc dbctx.Context, userID uuid.UUID) error {
	u, err := os.userRepo.GetByID(dbc, userID)
	if err != nil {
		return fmt.Errorf("error fetching user: %w", err)
	}
	if u == nil {
		return apperr.NotFound("user_not_found", "User %s not found", userID)
	}
	if !u.CanManageTemplates() {
		return apperr.Permission("insufficient_role", "Only admins and supervisors may apply optimizations")
	}
	return nil
}

func semesterForDate(date time.Time) string {
	switch m := date.Month(); {
	case m >= time.August:
		return "fall"
	case m <= time.May:
		return "spring"
	default:
		return "summer"
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
