package services

import (
	"context"
	"fmt"
	"strings"
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

type CreateTemplateInput struct {
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Specialization string                `json:"specialization"`
	ProjectType    string                `json:"project_type"`
	Milestones     []types.MilestoneItem `json:"milestones"`
	Config         types.TemplateConfig  `json:"config"`
	Tags           []string              `json:"tags"`
	IsDraft        bool                  `json:"is_draft"`
}

// UpdateTemplateInput patches a template; nil fields are untouched.
type UpdateTemplateInput struct {
	Name           *string                `json:"name,omitempty"`
	Description    *string                `json:"description,omitempty"`
	Specialization *string                `json:"specialization,omitempty"`
	ProjectType    *string                `json:"project_type,omitempty"`
	Milestones     *[]types.MilestoneItem `json:"milestones,omitempty"`
	Config         *types.TemplateConfig  `json:"config,omitempty"`
	Tags           *[]string              `json:"tags,omitempty"`
	IsDraft        *bool                  `json:"is_draft,omitempty"`
}

type BulkItemOutcome struct {
	ID    uuid.UUID `json:"id"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

type BulkResult struct {
	Action    string            `json:"action"`
	Processed int               `json:"processed"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BulkItemOutcome `json:"items"`
}

type ExportDocument struct {
	Templates  []*types.Template `json:"templates"`
	ExportedAt time.Time         `json:"exportedAt"`
}

type ImportResult struct {
	Imported int               `json:"imported"`
	Failed   int               `json:"failed"`
	Items    []BulkItemOutcome `json:"items"`
}

type TemplateService interface {
	Create(ctx context.Context, input CreateTemplateInput, authorID uuid.UUID) (*types.Template, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdateTemplateInput, authorID uuid.UUID, changeDescription string, createNewVersion bool) (*types.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Template, error)
	List(ctx context.Context, filter repos.TemplateFilter) ([]*types.Template, error)
	Delete(ctx context.Context, id uuid.UUID, authorID uuid.UUID) error
	Bulk(ctx context.Context, action string, ids []uuid.UUID, authorID uuid.UUID) (*BulkResult, error)
	ExportJSON(ctx context.Context, filter repos.TemplateFilter) (*ExportDocument, error)
	ExportCSV(ctx context.Context, filter repos.TemplateFilter) (string, error)
	ImportJSON(ctx context.Context, doc ExportDocument, authorID uuid.UUID) (*ImportResult, error)
}

type templateService struct {
	db         *gorm.DB
	log        *logger.Logger
	repo       repos.TemplateRepo
	userRepo   repos.UserRepo
	versionSvc VersionService
	audit      AuditLogger
	analytics  AnalyticsService
}

// NewTemplateService builds the template layer. analytics may be nil;
// cached rollups then age out on TTL alone.
func NewTemplateService(db *gorm.DB, log *logger.Logger, repo repos.TemplateRepo, userRepo repos.UserRepo, versionSvc VersionService, audit AuditLogger, analytics AnalyticsService) TemplateService {
	return &templateService{
		db:         db,
		log:        log.With("service", "TemplateService"),
		repo:       repo,
		userRepo:   userRepo,
		versionSvc: versionSvc,
		audit:      audit,
		analytics:  analytics,
	}
}

func (ts *templateService) Create(ctx context.Context, input CreateTemplateInput, authorID uuid.UUID) (*types.Template, error) {
	var out *types.Template
	err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if err := ts.requireManager(dbc, authorID); err != nil {
			return err
		}
		if err := validateTemplate(input.Name, input.Milestones, input.Config); err != nil {
			return err
		}

		existing, err := ts.repo.FindActiveByNameAndSpecialization(dbc, strings.TrimSpace(input.Name), input.Specialization)
		if err != nil {
			return fmt.Errorf("error checking duplicates: %w", err)
		}
		if len(existing) > 0 {
			return apperr.Validation("duplicate_template_name", "An active template named %q already exists for %s", input.Name, input.Specialization)
		}

		t := &types.Template{
			ID:             uuid.New(),
			Name:           strings.TrimSpace(input.Name),
			Description:    input.Description,
			Specialization: input.Specialization,
			ProjectType:    input.ProjectType,
			Milestones:     datatypes.NewJSONSlice(types.CloneMilestoneItems(input.Milestones)),
			Config:         datatypes.NewJSONType(types.CloneConfig(input.Config)),
			IsActive:       !input.IsDraft,
			IsDraft:        input.IsDraft,
			Tags:           datatypes.NewJSONSlice(append([]string(nil), input.Tags...)),
			CreatedBy:      authorID,
		}
		if err := ts.repo.Create(dbc, t); err != nil {
			return fmt.Errorf("error creating template: %w", err)
		}

		if _, err := ts.versionSvc.AppendVersion(dbc, t, VersionMeta{
			ChangeDescription: "Initial version",
			AuthorID:          authorID,
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	ts.audit.Record(ctx, "create", "template", out.ID, authorID, map[string]interface{}{"name": out.Name})
	ts.invalidateAnalytics(ctx, out.ID)
	return out, nil
}

func (ts *templateService) Update(ctx context.Context, id uuid.UUID, patch UpdateTemplateInput, authorID uuid.UUID, changeDescription string, createNewVersion bool) (*types.Template, error) {
	var out *types.Template
	err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		t, err := ts.load(dbc, id)
		if err != nil {
			return err
		}
		if err := ts.requireAuthorOrAdmin(dbc, t, authorID); err != nil {
			return err
		}

		before := snapshotForDiff(t)
		applyPatch(t, patch)
		if err := validateTemplate(t.Name, t.Milestones, t.Config.Data()); err != nil {
			return err
		}
		if err := ts.repo.Save(dbc, t); err != nil {
			return fmt.Errorf("error saving template: %w", err)
		}

		if createNewVersion {
			if changeDescription == "" {
				changeDescription = "Template updated"
			}
			if _, err := ts.versionSvc.AppendVersion(dbc, t, VersionMeta{
				ChangeDescription: changeDescription,
				ChangeDetails:     fieldDiffTemplates(before, t),
				AuthorID:          authorID,
			}); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	ts.audit.Record(ctx, "update", "template", id, authorID, map[string]interface{}{"new_version": createNewVersion})
	ts.invalidateAnalytics(ctx, id)
	return out, nil
}

func (ts *templateService) Get(ctx context.Context, id uuid.UUID) (*types.Template, error) {
	return ts.load(dbctx.Context{Ctx: ctx}, id)
}

func (ts *templateService) List(ctx context.Context, filter repos.TemplateFilter) ([]*types.Template, error) {
	return ts.repo.List(dbctx.Context{Ctx: ctx}, filter)
}

func (ts *templateService) Delete(ctx context.Context, id uuid.UUID, authorID uuid.UUID) error {
	err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		t, err := ts.load(dbc, id)
		if err != nil {
			return err
		}
		if err := ts.requireAuthorOrAdmin(dbc, t, authorID); err != nil {
			return err
		}
		if t.UsageCount > 0 {
			return apperr.Validation("template_in_use", "Template %q has been used in %d projects and cannot be deleted; archive it instead", t.Name, t.UsageCount)
		}
		return ts.repo.SoftDeleteByIDs(dbc, []uuid.UUID{id})
	})
	if err != nil {
		return err
	}
	ts.audit.Record(ctx, "delete", "template", id, authorID, nil)
	ts.invalidateAnalytics(ctx, id)
	return nil
}

func (ts *templateService) Bulk(ctx context.Context, action string, ids []uuid.UUID, authorID uuid.UUID) (*BulkResult, error) {
	switch action {
	case "activate", "deactivate", "archive", "delete":
	default:
		return nil, apperr.Validation("invalid_bulk_action", "Unknown bulk action %q", action)
	}

	result := &BulkResult{Action: action, Items: []BulkItemOutcome{}}
	for _, id := range ids {
		result.Processed++
		err := ts.bulkOne(ctx, action, id, authorID)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, BulkItemOutcome{ID: id, Error: err.Error()})
			metrics.BulkOperationItems.WithLabelValues(action, "failed").Inc()
			continue
		}
		result.Succeeded++
		result.Items = append(result.Items, BulkItemOutcome{ID: id, OK: true})
		metrics.BulkOperationItems.WithLabelValues(action, "succeeded").Inc()
	}
	return result, nil
}

// bulkOne applies one bulk action in its own transaction, so one
// failing item never rolls back its siblings.
func (ts *templateService) bulkOne(ctx context.Context, action string, id uuid.UUID, authorID uuid.UUID) error {
	if action == "delete" {
		return ts.Delete(ctx, id, authorID)
	}
	err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		t, err := ts.load(dbc, id)
		if err != nil {
			return err
		}
		if err := ts.requireAuthorOrAdmin(dbc, t, authorID); err != nil {
			return err
		}
		switch action {
		case "activate":
			t.IsActive = true
			t.IsArchived = false
		case "deactivate":
			t.IsActive = false
		case "archive":
			t.IsActive = false
			t.IsArchived = true
		}
		return ts.repo.Save(dbc, t)
	})
	if err != nil {
		return err
	}
	ts.invalidateAnalytics(ctx, id)
	return nil
}

func (ts *templateService) ExportJSON(ctx context.Context, filter repos.TemplateFilter) (*ExportDocument, error) {
	rows, err := ts.repo.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	return &ExportDocument{Templates: rows, ExportedAt: time.Now().UTC()}, nil
}

func (ts *templateService) ExportCSV(ctx context.Context, filter repos.TemplateFilter) (string, error) {
	rows, err := ts.repo.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return "", fmt.Errorf("error listing templates: %w", err)
	}

	var b strings.Builder
	b.WriteString("ID,Name,Description,Specialization,ProjectType,EstimatedWeeks,Tags,IsActive\n")
	for _, t := range rows {
		b.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%s,%t\n",
			t.ID,
			csvQuote(t.Name),
			csvQuote(t.Description),
			t.Specialization,
			t.ProjectType,
			t.Config.Data().EstimatedDurationWeeks,
			csvQuote(strings.Join(t.Tags, ";")),
			t.IsActive,
		))
	}
	return b.String(), nil
}

func (ts *templateService) ImportJSON(ctx context.Context, doc ExportDocument, authorID uuid.UUID) (*ImportResult, error) {
	result := &ImportResult{Items: []BulkItemOutcome{}}
	for _, t := range doc.Templates {
		if t == nil {
			continue
		}
		created, err := ts.Create(ctx, CreateTemplateInput{
			Name:           t.Name,
			Description:    t.Description,
			Specialization: t.Specialization,
			ProjectType:    t.ProjectType,
			Milestones:     t.Milestones,
			Config:         t.Config.Data(),
			Tags:           t.Tags,
			IsDraft:        t.IsDraft,
		}, authorID)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, BulkItemOutcome{ID: t.ID, Error: err.Error()})
			continue
		}
		result.Imported++
		result.Items = append(result.Items, BulkItemOutcome{ID: created.ID, OK: true})
	}
	ts.audit.Record(ctx, "import", "template", uuid.Nil, authorID, map[string]interface{}{"imported": result.Imported, "failed": result.Failed})
	return result, nil
}

func (ts *templateService) invalidateAnalytics(ctx context.Context, id uuid.UUID) {
	if ts.analytics != nil {
		ts.analytics.InvalidateTemplate(ctx, id)
	}
}

func (ts *templateService) load(dbc dbctx.Context, id uuid.UUID) (*types.Template, error) {
	found, err := ts.repo.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("error fetching template: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apperr.NotFound("template_not_found", "Template %s not found", id)
	}
	return found[0], nil
}

func (ts *templateService) requireManager(dbc dbctx.Context, userID uuid.UUID) error {
	u, err := ts.userRepo.GetByID(dbc, userID)
	if err != nil {
		return fmt.Errorf("error fetching user: %w", err)
	}
	if u == nil {
		return apperr.NotFound("user_not_found", "User %s not found", userID)
	}
	if !u.CanManageTemplates() {
		return apperr.Permission("insufficient_role", "Only admins and supervisors may author templates")
	}
	return nil
}

func (ts *templateService) requireAuthorOrAdmin(dbc dbctx.Context, t *types.Template, userID uuid.UUID) error {
	u, err := ts.userRepo.GetByID(dbc, userID)
	if err != nil {
		return fmt.Errorf("error fetching user: %w", err)
	}
	if u == nil {
		return apperr.NotFound("user_not_found", "User %s not found", userID)
	}
	if u.Role != types.RoleAdmin && t.CreatedBy != userID {
		return apperr.Permission("not_template_author", "Only an admin or the original author may modify this template")
	}
	return nil
}

func applyPatch(t *types.Template, patch UpdateTemplateInput) {
	if patch.Name != nil {
		t.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Specialization != nil {
		t.Specialization = *patch.Specialization
	}
	if patch.ProjectType != nil {
		t.ProjectType = *patch.ProjectType
	}
	if patch.Milestones != nil {
		t.Milestones = datatypes.NewJSONSlice(types.CloneMilestoneItems(*patch.Milestones))
	}
	if patch.Config != nil {
		t.Config = datatypes.NewJSONType(types.CloneConfig(*patch.Config))
	}
	if patch.Tags != nil {
		t.Tags = datatypes.NewJSONSlice(append([]string(nil), (*patch.Tags)...))
	}
	if patch.IsDraft != nil {
		t.IsDraft = *patch.IsDraft
	}
}

// snapshotForDiff copies the fields the audit diff inspects.
func snapshotForDiff(t *types.Template) *types.Template {
	c := *t
	c.Milestones = datatypes.NewJSONSlice(t.CloneMilestones())
	c.Config = datatypes.NewJSONType(types.CloneConfig(t.Config.Data()))
	c.Tags = datatypes.NewJSONSlice(append([]string(nil), t.Tags...))
	return &c
}

func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
