package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/apperr"
	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/repos/testutil"
	"github.com/projecthub/projecthub-backend/internal/types"
)

type templateFixture struct {
	db          *gorm.DB
	templateSvc TemplateService
	versionSvc  VersionService
	versionRepo repos.TemplateVersionRepo
	admin       *types.User
	supervisor  *types.User
	student     *types.User
}

func newTemplateFixture(t *testing.T) *templateFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	templateRepo := repos.NewTemplateRepo(db, log)
	versionRepo := repos.NewTemplateVersionRepo(db, log)
	userRepo := repos.NewUserRepo(db, log)

	versionSvc := NewVersionService(db, log, templateRepo, versionRepo, userRepo)
	templateSvc := NewTemplateService(db, log, templateRepo, userRepo, versionSvc, NewLogAuditor(log), nil)

	return &templateFixture{
		db:          db,
		templateSvc: templateSvc,
		versionSvc:  versionSvc,
		versionRepo: versionRepo,
		admin:       testutil.SeedUser(t, ctx, db, "admin@example.com", types.RoleAdmin),
		supervisor:  testutil.SeedUser(t, ctx, db, "supervisor@example.com", types.RoleSupervisor),
		student:     testutil.SeedUser(t, ctx, db, "student@example.com", types.RoleStudent),
	}
}

func validCreateInput(name string) CreateTemplateInput {
	return CreateTemplateInput{
		Name:           name,
		Specialization: "software_engineering",
		ProjectType:    "thesis",
		Milestones: []types.MilestoneItem{
			{Title: "Proposal", DaysFromStart: 14, Priority: "high", EstimatedHours: 20},
			{Title: "Final Report", DaysFromStart: 120, Priority: "critical", EstimatedHours: 60},
		},
		Config: types.TemplateConfig{EstimatedDurationWeeks: 20},
	}
}

func TestVersionLifecycle(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	tmpl, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	versions, err := fx.versionSvc.GetVersions(ctx, tmpl.ID)
	if err != nil || len(versions) != 1 {
		t.Fatalf("GetVersions after create: err=%v len=%d", err, len(versions))
	}
	if versions[0].Version != 1 || !versions[0].IsActive {
		t.Fatalf("initial version = %+v", versions[0])
	}

	newDesc := "now with a description"
	if _, err := fx.templateSvc.Update(ctx, tmpl.ID, UpdateTemplateInput{Description: &newDesc}, fx.supervisor.ID, "Described", true); err != nil {
		t.Fatalf("Update: %v", err)
	}

	versions, err = fx.versionSvc.GetVersions(ctx, tmpl.ID)
	if err != nil || len(versions) != 2 {
		t.Fatalf("GetVersions after update: err=%v len=%d", err, len(versions))
	}
	// Newest first, and exactly one active row.
	if versions[0].Version != 2 {
		t.Fatalf("newest-first ordering broken: %d", versions[0].Version)
	}
	active := 0
	for _, v := range versions {
		if v.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active versions = %d, want 1", active)
	}
	current, err := fx.versionRepo.GetActiveByTemplateID(dbctx.Context{Ctx: ctx}, tmpl.ID)
	if err != nil || current == nil || current.Version != 2 {
		t.Fatalf("GetActiveByTemplateID: err=%v row=%+v", err, current)
	}
}

func TestRevertToVersion(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	tmpl, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.admin.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	milestones := []types.MilestoneItem{
		{Title: "Proposal", DaysFromStart: 21, Priority: "high", EstimatedHours: 25},
		{Title: "Defense", DaysFromStart: 130, Priority: "critical", EstimatedHours: 10},
	}
	if _, err := fx.templateSvc.Update(ctx, tmpl.ID, UpdateTemplateInput{Milestones: &milestones}, fx.admin.ID, "Reworked timeline", true); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reverted, err := fx.versionSvc.RevertToVersion(ctx, tmpl.ID, 1, fx.admin.ID)
	if err != nil {
		t.Fatalf("RevertToVersion: %v", err)
	}
	if reverted.Version != 3 {
		t.Fatalf("revert version = %d, want 3", reverted.Version)
	}
	if reverted.RevertedToVersion == nil || *reverted.RevertedToVersion != 1 {
		t.Fatalf("RevertedToVersion = %+v, want 1", reverted.RevertedToVersion)
	}

	// The reverted snapshot must match version 1 content exactly.
	cmp, err := fx.versionSvc.CompareVersions(ctx, tmpl.ID, 1, 3)
	if err != nil {
		t.Fatalf("CompareVersions: %v", err)
	}
	if len(cmp.Differences) != 0 {
		t.Fatalf("revert should restore version 1 exactly, got %+v", cmp.Differences)
	}

	// The intermediate version stays in the ledger untouched.
	if _, err := fx.versionSvc.GetVersion(ctx, tmpl.ID, 2); err != nil {
		t.Fatalf("GetVersion(2): %v", err)
	}

	if _, err := fx.versionSvc.RevertToVersion(ctx, tmpl.ID, 99, fx.admin.ID); !apperr.IsNotFound(err) {
		t.Fatalf("revert to missing version: expected not found, got %v", err)
	}
}

func TestCompareVersions(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	tmpl, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	milestones := []types.MilestoneItem{
		{Title: "Proposal", DaysFromStart: 21, Priority: "high", EstimatedHours: 20},
		{Title: "Defense", DaysFromStart: 130, Priority: "critical", EstimatedHours: 10},
	}
	cfg := types.TemplateConfig{EstimatedDurationWeeks: 22}
	if _, err := fx.templateSvc.Update(ctx, tmpl.ID, UpdateTemplateInput{Milestones: &milestones, Config: &cfg}, fx.supervisor.ID, "Reworked", true); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cmp, err := fx.versionSvc.CompareVersions(ctx, tmpl.ID, 1, 2)
	if err != nil {
		t.Fatalf("CompareVersions: %v", err)
	}
	if cmp.CountsByType["removed"] != 1 {
		t.Fatalf("removed = %d, want 1 (Final Report)", cmp.CountsByType["removed"])
	}
	if cmp.CountsByType["added"] != 1 {
		t.Fatalf("added = %d, want 1 (Defense)", cmp.CountsByType["added"])
	}
	if cmp.CountsByType["modified"] != 1 {
		t.Fatalf("modified = %d, want 1 (Proposal)", cmp.CountsByType["modified"])
	}
	if !cmp.ConfigurationChanged {
		t.Fatalf("configuration change not detected")
	}
}

func TestVersionPermissions(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	tmpl, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.versionSvc.RevertToVersion(ctx, tmpl.ID, 1, fx.student.ID); !apperr.IsPermission(err) {
		t.Fatalf("student revert: expected permission error, got %v", err)
	}
	// Admins may revert templates they did not author.
	if _, err := fx.versionSvc.RevertToVersion(ctx, tmpl.ID, 1, fx.admin.ID); err != nil {
		t.Fatalf("admin revert: %v", err)
	}
}
