package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/apperr"
	"github.com/projecthub/projecthub-backend/internal/repos"
)

func TestCreateTemplate(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	if _, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.student.ID); !apperr.IsPermission(err) {
		t.Fatalf("student create: expected permission error, got %v", err)
	}

	tmpl, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !tmpl.IsActive || tmpl.IsDraft {
		t.Fatalf("new template flags: active=%v draft=%v", tmpl.IsActive, tmpl.IsDraft)
	}

	if _, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.supervisor.ID); !apperr.IsValidation(err) {
		t.Fatalf("duplicate create: expected validation error, got %v", err)
	}

	// The same name in a different specialization is allowed.
	other := validCreateInput("Thesis Plan")
	other.Specialization = "data_science"
	if _, err := fx.templateSvc.Create(ctx, other, fx.supervisor.ID); err != nil {
		t.Fatalf("create in other specialization: %v", err)
	}

	draft := validCreateInput("Draft Plan")
	draft.IsDraft = true
	created, err := fx.templateSvc.Create(ctx, draft, fx.supervisor.ID)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if created.IsActive || !created.IsDraft {
		t.Fatalf("draft flags: active=%v draft=%v", created.IsActive, created.IsDraft)
	}
}

func TestCreateTemplateDeepCopiesInput(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	input := validCreateInput("Thesis Plan")
	tmpl, err := fx.templateSvc.Create(ctx, input, fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Mutating the caller's slice must not leak into the stored
	// template.
	input.Milestones[0].Title = "Mutated"
	got, err := fx.templateSvc.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Milestones[0].Title != "Proposal" {
		t.Fatalf("stored milestone aliased caller input: %q", got.Milestones[0].Title)
	}
}

func TestDeleteTemplateInUse(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	tmpl, err := fx.templateSvc.Create(ctx, validCreateInput("Thesis Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tmpl.UsageCount = 3
	if err := fx.db.Save(tmpl).Error; err != nil {
		t.Fatalf("bump usage: %v", err)
	}

	err = fx.templateSvc.Delete(ctx, tmpl.ID, fx.supervisor.ID)
	if !apperr.IsValidation(err) {
		t.Fatalf("delete used template: expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "used in 3 projects") {
		t.Fatalf("error message = %q", err.Error())
	}

	// Archiving is the sanctioned path for used templates.
	result, err := fx.templateSvc.Bulk(ctx, "archive", []uuid.UUID{tmpl.ID}, fx.supervisor.ID)
	if err != nil || result.Succeeded != 1 {
		t.Fatalf("archive: err=%v result=%+v", err, result)
	}
	got, err := fx.templateSvc.Get(ctx, tmpl.ID)
	if err != nil || !got.IsArchived || got.IsActive {
		t.Fatalf("archive flags: err=%v archived=%v active=%v", err, got.IsArchived, got.IsActive)
	}
}

func TestBulkPartialFailure(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	used, err := fx.templateSvc.Create(ctx, validCreateInput("Used Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create used: %v", err)
	}
	used.UsageCount = 1
	if err := fx.db.Save(used).Error; err != nil {
		t.Fatalf("bump usage: %v", err)
	}
	fresh, err := fx.templateSvc.Create(ctx, validCreateInput("Fresh Plan"), fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Create fresh: %v", err)
	}

	result, err := fx.templateSvc.Bulk(ctx, "delete", []uuid.UUID{used.ID, fresh.ID}, fx.supervisor.ID)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("bulk result = %+v", result)
	}

	// The used template survives; the fresh one is gone.
	if _, err := fx.templateSvc.Get(ctx, used.ID); err != nil {
		t.Fatalf("used template should survive: %v", err)
	}
	if _, err := fx.templateSvc.Get(ctx, fresh.ID); !apperr.IsNotFound(err) {
		t.Fatalf("fresh template should be deleted, got %v", err)
	}

	if _, err := fx.templateSvc.Bulk(ctx, "explode", []uuid.UUID{used.ID}, fx.supervisor.ID); !apperr.IsValidation(err) {
		t.Fatalf("unknown action: expected validation error, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	fx := newTemplateFixture(t)
	ctx := context.Background()

	input := validCreateInput("Thesis Plan")
	input.Tags = []string{"thesis", "cs"}
	if _, err := fx.templateSvc.Create(ctx, input, fx.supervisor.ID); err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := fx.templateSvc.ExportJSON(ctx, repos.TemplateFilter{})
	if err != nil || len(doc.Templates) != 1 {
		t.Fatalf("ExportJSON: err=%v len=%d", err, len(doc.Templates))
	}

	csvBody, err := fx.templateSvc.ExportCSV(ctx, repos.TemplateFilter{})
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvBody), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1 row", len(lines))
	}
	if lines[0] != "ID,Name,Description,Specialization,ProjectType,EstimatedWeeks,Tags,IsActive" {
		t.Fatalf("csv header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"thesis;cs"`) {
		t.Fatalf("csv row missing joined tags: %q", lines[1])
	}

	// Importing the export into the same store collides on the name;
	// the duplicate is reported per item, not as a failure of the
	// whole import.
	result, err := fx.templateSvc.ImportJSON(ctx, *doc, fx.supervisor.ID)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if result.Imported != 0 || result.Failed != 1 {
		t.Fatalf("import result = %+v", result)
	}

	// Deactivate the original and the import goes through.
	if _, err := fx.templateSvc.Bulk(ctx, "deactivate", []uuid.UUID{doc.Templates[0].ID}, fx.supervisor.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	result, err = fx.templateSvc.ImportJSON(ctx, *doc, fx.supervisor.ID)
	if err != nil || result.Imported != 1 {
		t.Fatalf("second import: err=%v result=%+v", err, result)
	}
}
