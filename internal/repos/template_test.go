package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/repos/testutil"
	"github.com/projecthub/projecthub-backend/internal/types"
)

func TestTemplateRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewTemplateRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "templaterepo@example.com", types.RoleSupervisor)
	tmpl := testutil.SeedTemplate(t, ctx, tx, u.ID)

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{tmpl.ID}); err != nil || len(rows) != 1 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.GetByIDs(dbc, nil); err != nil || len(rows) != 0 {
		t.Fatalf("GetByIDs empty: err=%v len=%d", err, len(rows))
	}

	if rows, err := repo.List(dbc, TemplateFilter{Specialization: "software_engineering"}); err != nil || len(rows) != 1 {
		t.Fatalf("List by specialization: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.List(dbc, TemplateFilter{Specialization: "design"}); err != nil || len(rows) != 0 {
		t.Fatalf("List other specialization: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.List(dbc, TemplateFilter{Search: "hesis"}); err != nil || len(rows) != 1 {
		t.Fatalf("List by search: err=%v len=%d", err, len(rows))
	}

	if rows, err := repo.FindActiveByNameAndSpecialization(dbc, "Thesis Plan", "software_engineering"); err != nil || len(rows) != 1 {
		t.Fatalf("FindActiveByNameAndSpecialization: err=%v len=%d", err, len(rows))
	}

	tmpl.IsActive = false
	if err := repo.Save(dbc, tmpl); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rows, err := repo.FindActiveByNameAndSpecialization(dbc, "Thesis Plan", "software_engineering"); err != nil || len(rows) != 0 {
		t.Fatalf("FindActive after deactivate: err=%v len=%d", err, len(rows))
	}
	active := true
	if rows, err := repo.List(dbc, TemplateFilter{IsActive: &active}); err != nil || len(rows) != 0 {
		t.Fatalf("List active after deactivate: err=%v len=%d", err, len(rows))
	}

	tmpl.IsArchived = true
	if err := repo.Save(dbc, tmpl); err != nil {
		t.Fatalf("Save archived: %v", err)
	}
	if rows, err := repo.List(dbc, TemplateFilter{}); err != nil || len(rows) != 0 {
		t.Fatalf("List hides archived: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.List(dbc, TemplateFilter{IncludeArchived: true}); err != nil || len(rows) != 1 {
		t.Fatalf("List with archived: err=%v len=%d", err, len(rows))
	}

	if err := repo.SoftDeleteByIDs(dbc, []uuid.UUID{tmpl.ID}); err != nil {
		t.Fatalf("SoftDeleteByIDs: %v", err)
	}
	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{tmpl.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("GetByIDs after soft delete: err=%v len=%d", err, len(rows))
	}
}
