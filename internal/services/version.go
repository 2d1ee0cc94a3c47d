package services

import (
	"context"
	"encoding/json"
	"fmt"
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

// VersionMeta describes the version row appended for a template write.
type VersionMeta struct {
	ChangeDescription string
	ChangeDetails     []FieldChange
	RevertedToVersion *int
	AuthorID          uuid.UUID
}

// FieldChange is one entry of the audit diff stored with a version.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// VersionDifference is one itemized difference between two versions.
type VersionDifference struct {
	Type      string      `json:"type"` // added | removed | modified | field
	Milestone string      `json:"milestone,omitempty"`
	Field     string      `json:"field,omitempty"`
	OldValue  interface{} `json:"old_value,omitempty"`
	NewValue  interface{} `json:"new_value,omitempty"`
}

type VersionComparison struct {
	TemplateID           uuid.UUID           `json:"template_id"`
	FromVersion          int                 `json:"from_version"`
	ToVersion            int                 `json:"to_version"`
	Differences          []VersionDifference `json:"differences"`
	CountsByType         map[string]int      `json:"counts_by_type"`
	ConfigurationChanged bool                `json:"configuration_changed"`
}

type VersionService interface {
	GetVersions(ctx context.Context, templateID uuid.UUID) ([]*types.TemplateVersion, error)
	GetVersion(ctx context.Context, templateID uuid.UUID, version int) (*types.TemplateVersion, error)
	RevertToVersion(ctx context.Context, templateID uuid.UUID, version int, authorID uuid.UUID) (*types.TemplateVersion, error)
	CompareVersions(ctx context.Context, templateID uuid.UUID, v1, v2 int) (*VersionComparison, error)

	// AppendVersion snapshots the template and activates the new row,
	// deactivating every prior active row first. It must run inside
	// the caller's transaction so the active pointer never points at
	// zero or two rows.
	AppendVersion(dbc dbctx.Context, t *types.Template, meta VersionMeta) (*types.TemplateVersion, error)
}

type versionService struct {
	db           *gorm.DB
	log          *logger.Logger
	templateRepo repos.TemplateRepo
	versionRepo  repos.TemplateVersionRepo
	userRepo     repos.UserRepo
}

func NewVersionService(db *gorm.DB, log *logger.Logger, templateRepo repos.TemplateRepo, versionRepo repos.TemplateVersionRepo, userRepo repos.UserRepo) VersionService {
	return &versionService{
		db:           db,
		log:          log.With("service", "VersionService"),
		templateRepo: templateRepo,
		versionRepo:  versionRepo,
		userRepo:     userRepo,
	}
}

func (vs *versionService) GetVersions(ctx context.Context, templateID uuid.UUID) ([]*types.TemplateVersion, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := vs.loadTemplate(dbc, templateID); err != nil {
		return nil, err
	}
	return vs.versionRepo.ListByTemplateID(dbc, templateID)
}

func (vs *versionService) GetVersion(ctx context.Context, templateID uuid.UUID, version int) (*types.TemplateVersion, error) {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := vs.versionRepo.GetByTemplateAndVersion(dbc, templateID, version)
	if err != nil {
		return nil, fmt.Errorf("error fetching version: %w", err)
	}
	if row == nil {
		return nil, apperr.NotFound("version_not_found", "Version %d of template %s not found", version, templateID)
	}
	return row, nil
}

func (vs *versionService) RevertToVersion(ctx context.Context, templateID uuid.UUID, version int, authorID uuid.UUID) (*types.TemplateVersion, error) {
	var out *types.TemplateVersion
	err := vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		t, err := vs.loadTemplate(dbc, templateID)
		if err != nil {
			return err
		}
		if err := vs.checkAuthor(dbc, t, authorID); err != nil {
			return err
		}

		target, err := vs.versionRepo.GetByTemplateAndVersion(dbc, templateID, version)
		if err != nil {
			return fmt.Errorf("error fetching version: %w", err)
		}
		if target == nil {
			return apperr.NotFound("version_not_found", "Version %d of template %s not found", version, templateID)
		}

		// Deep-copy the historical content onto the live template;
		// intervening versions are left untouched.
		t.Name = target.Name
		t.Description = target.Description
		t.Specialization = target.Specialization
		t.ProjectType = target.ProjectType
		t.Milestones = datatypes.NewJSONSlice(types.CloneMilestoneItems(target.Milestones))
		t.Config = datatypes.NewJSONType(types.CloneConfig(target.Config.Data()))
		t.Tags = datatypes.NewJSONSlice(append([]string(nil), target.Tags...))
		if err := vs.templateRepo.Save(dbc, t); err != nil {
			return fmt.Errorf("error saving template: %w", err)
		}

		reverted := version
		row, err := vs.AppendVersion(dbc, t, VersionMeta{
			ChangeDescription: fmt.Sprintf("Reverted to version %d", version),
			RevertedToVersion: &reverted,
			AuthorID:          authorID,
		})
		if err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vs *versionService) CompareVersions(ctx context.Context, templateID uuid.UUID, v1, v2 int) (*VersionComparison, error) {
	from, err := vs.GetVersion(ctx, templateID, v1)
	if err != nil {
		return nil, err
	}
	to, err := vs.GetVersion(ctx, templateID, v2)
	if err != nil {
		return nil, err
	}

	cmp := &VersionComparison{
		TemplateID:   templateID,
		FromVersion:  v1,
		ToVersion:    v2,
		Differences:  []VersionDifference{},
		CountsByType: map[string]int{},
	}

	fromByTitle := milestonesByTitle(from.Milestones)
	toByTitle := milestonesByTitle(to.Milestones)

	for _, m := range from.Milestones {
		if _, ok := toByTitle[m.Title]; !ok {
			cmp.add(VersionDifference{Type: "removed", Milestone: m.Title, OldValue: m})
		}
	}
	for _, m := range to.Milestones {
		old, ok := fromByTitle[m.Title]
		if !ok {
			cmp.add(VersionDifference{Type: "added", Milestone: m.Title, NewValue: m})
			continue
		}
		if !jsonEqual(old, m) {
			cmp.add(VersionDifference{Type: "modified", Milestone: m.Title, OldValue: old, NewValue: m})
		}
	}

	scalarDiffs := fieldDiffFromVersions(from, to)
	for _, fc := range scalarDiffs {
		cmp.add(VersionDifference{Type: "field", Field: fc.Field, OldValue: fc.OldValue, NewValue: fc.NewValue})
	}
	if !jsonEqual(from.Config.Data(), to.Config.Data()) {
		cmp.ConfigurationChanged = true
		cmp.add(VersionDifference{Type: "field", Field: "config", OldValue: from.Config.Data(), NewValue: to.Config.Data()})
	}
	return cmp, nil
}

func (vs *versionService) AppendVersion(dbc dbctx.Context, t *types.Template, meta VersionMeta) (*types.TemplateVersion, error) {
	latest, err := vs.versionRepo.LatestVersionNumber(dbc, t.ID)
	if err != nil {
		return nil, fmt.Errorf("error reading latest version: %w", err)
	}

	// Deactivate first, then create the single new active row.
	if err := vs.versionRepo.DeactivateAllForTemplate(dbc, t.ID); err != nil {
		return nil, fmt.Errorf("error deactivating versions: %w", err)
	}

	var details datatypes.JSON
	if len(meta.ChangeDetails) > 0 {
		raw, err := json.Marshal(meta.ChangeDetails)
		if err != nil {
			return nil, fmt.Errorf("error encoding change details: %w", err)
		}
		details = datatypes.JSON(raw)
	}

	row := &types.TemplateVersion{
		ID:                uuid.New(),
		TemplateID:        t.ID,
		Version:           latest + 1,
		Name:              t.Name,
		Description:       t.Description,
		Specialization:    t.Specialization,
		ProjectType:       t.ProjectType,
		Milestones:        datatypes.NewJSONSlice(t.CloneMilestones()),
		Config:            datatypes.NewJSONType(types.CloneConfig(t.Config.Data())),
		Tags:              datatypes.NewJSONSlice(append([]string(nil), t.Tags...)),
		ChangeDescription: meta.ChangeDescription,
		ChangeDetails:     details,
		RevertedToVersion: meta.RevertedToVersion,
		IsActive:          true,
		IsDraft:           t.IsDraft,
		CreatedBy:         meta.AuthorID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := vs.versionRepo.Create(dbc, row); err != nil {
		return nil, fmt.Errorf("error appending version: %w", err)
	}
	metrics.TemplateVersionsCreated.Inc()
	return row, nil
}

func (vs *versionService) loadTemplate(dbc dbctx.Context, templateID uuid.UUID) (*types.Template, error) {
	found, err := vs.templateRepo.GetByIDs(dbc, []uuid.UUID{templateID})
	if err != nil {
		return nil, fmt.Errorf("error fetching template: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apperr.NotFound("template_not_found", "Template %s not found", templateID)
	}
	return found[0], nil
}

func (vs *versionService) checkAuthor(dbc dbctx.Context, t *types.Template, authorID uuid.UUID) error {
	u, err := vs.userRepo.GetByID(dbc, authorID)
	if err != nil {
		return fmt.Errorf("error fetching user: %w", err)
	}
	if u == nil {
		return apperr.NotFound("user_not_found", "User %s not found", authorID)
	}
	if u.Role != types.RoleAdmin && t.CreatedBy != authorID {
		return apperr.Permission("not_template_author", "Only an admin or the original author may modify this template")
	}
	return nil
}

func (c *VersionComparison) add(d VersionDifference) {
	c.Differences = append(c.Differences, d)
	c.CountsByType[d.Type]++
}

func milestonesByTitle(items []types.MilestoneItem) map[string]types.MilestoneItem {
	out := make(map[string]types.MilestoneItem, len(items))
	for _, m := range items {
		out[m.Title] = m
	}
	return out
}

// jsonEqual compares values by their canonical JSON encodings, which
// sidesteps nil-versus-empty slice mismatches after storage round
// trips.
func jsonEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

// fieldDiffFromVersions diffs the scalar snapshot fields of two
// version rows.
func fieldDiffFromVersions(from, to *types.TemplateVersion) []FieldChange {
	out := []FieldChange{}
	if from.Name != to.Name {
		out = append(out, FieldChange{Field: "name", OldValue: from.Name, NewValue: to.Name})
	}
	if from.Description != to.Description {
		out = append(out, FieldChange{Field: "description", OldValue: from.Description, NewValue: to.Description})
	}
	if from.Specialization != to.Specialization {
		out = append(out, FieldChange{Field: "specialization", OldValue: from.Specialization, NewValue: to.Specialization})
	}
	if from.ProjectType != to.ProjectType {
		out = append(out, FieldChange{Field: "project_type", OldValue: from.ProjectType, NewValue: to.ProjectType})
	}
	if !jsonEqual([]string(from.Tags), []string(to.Tags)) {
		out = append(out, FieldChange{Field: "tags", OldValue: []string(from.Tags), NewValue: []string(to.Tags)})
	}
	return out
}

// fieldDiffTemplates computes the audit diff between the pre-update
// and post-update template states.
func fieldDiffTemplates(before, after *types.Template) []FieldChange {
	out := []FieldChange{}
	if before.Name != after.Name {
		out = append(out, FieldChange{Field: "name", OldValue: before.Name, NewValue: after.Name})
	}
	if before.Description != after.Description {
		out = append(out, FieldChange{Field: "description", OldValue: before.Description, NewValue: after.Description})
	}
	if before.Specialization != after.Specialization {
		out = append(out, FieldChange{Field: "specialization", OldValue: before.Specialization, NewValue: after.Specialization})
	}
	if before.ProjectType != after.ProjectType {
		out = append(out, FieldChange{Field: "project_type", OldValue: before.ProjectType, NewValue: after.ProjectType})
	}
	if !jsonEqual([]types.MilestoneItem(before.Milestones), []types.MilestoneItem(after.Milestones)) {
		out = append(out, FieldChange{Field: "milestones", OldValue: []types.MilestoneItem(before.Milestones), NewValue: []types.MilestoneItem(after.Milestones)})
	}
	if !jsonEqual(before.Config.Data(), after.Config.Data()) {
		out = append(out, FieldChange{Field: "config", OldValue: before.Config.Data(), NewValue: after.Config.Data()})
	}
	if !jsonEqual([]string(before.Tags), []string(after.Tags)) {
		out = append(out, FieldChange{Field: "tags", OldValue: []string(before.Tags), NewValue: []string(after.Tags)})
	}
	return out
}
