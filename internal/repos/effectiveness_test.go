package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/repos/testutil"
	"github.com/projecthub/projecthub-backend/internal/types"
)

func TestEffectivenessRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewEffectivenessRepo(db, testutil.Logger(t))

	supervisor := testutil.SeedUser(t, ctx, tx, "effrepo@example.com", types.RoleSupervisor)
	student := testutil.SeedUser(t, ctx, tx, "effrepo-student@example.com", types.RoleStudent)
	tmpl := testutil.SeedTemplate(t, ctx, tx, supervisor.ID)
	project := testutil.SeedProject(t, ctx, tx, student.ID)

	rec := &types.EffectivenessRecord{
		ID:              uuid.New(),
		TemplateID:      tmpl.ID,
		ProjectID:       project.ID,
		StudentID:       student.ID,
		TotalMilestones: 3,
	}
	if err := repo.Create(dbc, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if row, err := repo.GetByProjectID(dbc, project.ID); err != nil || row == nil || row.ID != rec.ID {
		t.Fatalf("GetByProjectID: err=%v row=%+v", err, row)
	}
	if row, err := repo.GetByProjectID(dbc, uuid.New()); err != nil || row != nil {
		t.Fatalf("GetByProjectID missing: err=%v row=%+v", err, row)
	}
	if row, err := repo.GetByTemplateAndProject(dbc, tmpl.ID, project.ID); err != nil || row == nil {
		t.Fatalf("GetByTemplateAndProject: err=%v row=%+v", err, row)
	}

	if rows, err := repo.ListByTemplateID(dbc, tmpl.ID); err != nil || len(rows) != 1 {
		t.Fatalf("ListByTemplateID: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListByStudentID(dbc, student.ID); err != nil || len(rows) != 1 {
		t.Fatalf("ListByStudentID: err=%v len=%d", err, len(rows))
	}
	if count, err := repo.CountByTemplateID(dbc, tmpl.ID); err != nil || count != 1 {
		t.Fatalf("CountByTemplateID: err=%v count=%d", err, count)
	}

	rec.CompletionPercentage = 66
	rec.CompletionStatus = types.CompletionInProgress
	if err := repo.Save(dbc, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	after, _ := repo.GetByProjectID(dbc, project.ID)
	if after == nil || after.CompletionPercentage != 66 || after.CompletionStatus != types.CompletionInProgress {
		t.Fatalf("Save verify: %+v", after)
	}
}
