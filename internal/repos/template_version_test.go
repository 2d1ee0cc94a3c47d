package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/repos/testutil"
	"github.com/projecthub/projecthub-backend/internal/types"
)

func TestTemplateVersionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewTemplateVersionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "versionrepo@example.com", types.RoleSupervisor)
	tmpl := testutil.SeedTemplate(t, ctx, tx, u.ID)

	if latest, err := repo.LatestVersionNumber(dbc, tmpl.ID); err != nil || latest != 0 {
		t.Fatalf("LatestVersionNumber empty: err=%v latest=%d", err, latest)
	}

	mkVersion := func(version int, active bool) *types.TemplateVersion {
		return &types.TemplateVersion{
			ID:         uuid.New(),
			TemplateID: tmpl.ID,
			Version:    version,
			Name:       tmpl.Name,
			Milestones: datatypes.NewJSONSlice(tmpl.CloneMilestones()),
			Config:     datatypes.NewJSONType(tmpl.Config.Data()),
			IsActive:   active,
			CreatedBy:  u.ID,
		}
	}
	if err := repo.Create(dbc, mkVersion(1, false)); err != nil {
		t.Fatalf("Create v1: %v", err)
	}
	if err := repo.Create(dbc, mkVersion(2, true)); err != nil {
		t.Fatalf("Create v2: %v", err)
	}

	if latest, err := repo.LatestVersionNumber(dbc, tmpl.ID); err != nil || latest != 2 {
		t.Fatalf("LatestVersionNumber: err=%v latest=%d", err, latest)
	}

	rows, err := repo.ListByTemplateID(dbc, tmpl.ID)
	if err != nil || len(rows) != 2 || rows[0].Version != 2 {
		t.Fatalf("ListByTemplateID: err=%v rows=%+v", err, rows)
	}

	if row, err := repo.GetByTemplateAndVersion(dbc, tmpl.ID, 1); err != nil || row == nil || row.Version != 1 {
		t.Fatalf("GetByTemplateAndVersion: err=%v row=%+v", err, row)
	}
	if row, err := repo.GetByTemplateAndVersion(dbc, tmpl.ID, 99); err != nil || row != nil {
		t.Fatalf("GetByTemplateAndVersion missing: err=%v row=%+v", err, row)
	}

	if row, err := repo.GetActiveByTemplateID(dbc, tmpl.ID); err != nil || row == nil || row.Version != 2 {
		t.Fatalf("GetActiveByTemplateID: err=%v row=%+v", err, row)
	}

	if err := repo.DeactivateAllForTemplate(dbc, tmpl.ID); err != nil {
		t.Fatalf("DeactivateAllForTemplate: %v", err)
	}
	if row, err := repo.GetActiveByTemplateID(dbc, tmpl.ID); err != nil || row != nil {
		t.Fatalf("active after deactivate: err=%v row=%+v", err, row)
	}
}
