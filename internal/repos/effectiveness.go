package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/types"
)

type EffectivenessRepo interface {
	Create(dbc dbctx.Context, row *types.EffectivenessRecord) error
	GetByProjectID(dbc dbctx.Context, projectID uuid.UUID) (*types.EffectivenessRecord, error)
	GetByTemplateAndProject(dbc dbctx.Context, templateID, projectID uuid.UUID) (*types.EffectivenessRecord, error)
	ListByTemplateID(dbc dbctx.Context, templateID uuid.UUID) ([]*types.EffectivenessRecord, error)
	ListByStudentID(dbc dbctx.Context, studentID uuid.UUID) ([]*types.EffectivenessRecord, error)
	CountByTemplateID(dbc dbctx.Context, templateID uuid.UUID) (int64, error)
	Save(dbc dbctx.Context, row *types.EffectivenessRecord) error
}

type effectivenessRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEffectivenessRepo(db *gorm.DB, baseLog *logger.Logger) EffectivenessRepo {
	return &effectivenessRepo{db: db, log: baseLog.With("repo", "EffectivenessRepo")}
}

func (r *effectivenessRepo) dbx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *effectivenessRepo) Create(dbc dbctx.Context, row *types.EffectivenessRecord) error {
	if row == nil {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return r.dbx(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *effectivenessRepo) GetByProjectID(dbc dbctx.Context, projectID uuid.UUID) (*types.EffectivenessRecord, error) {
	if projectID == uuid.Nil {
		return nil, nil
	}
	var row types.EffectivenessRecord
	err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *effectivenessRepo) GetByTemplateAndProject(dbc dbctx.Context, templateID, projectID uuid.UUID) (*types.EffectivenessRecord, error) {
	if templateID == uuid.Nil || projectID == uuid.Nil {
		return nil, nil
	}
	var row types.EffectivenessRecord
	err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("template_id = ? AND project_id = ?", templateID, projectID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *effectivenessRepo) ListByTemplateID(dbc dbctx.Context, templateID uuid.UUID) ([]*types.EffectivenessRecord, error) {
	out := []*types.EffectivenessRecord{}
	if templateID == uuid.Nil {
		return out, nil
	}
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("template_id = ?", templateID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *effectivenessRepo) ListByStudentID(dbc dbctx.Context, studentID uuid.UUID) ([]*types.EffectivenessRecord, error) {
	out := []*types.EffectivenessRecord{}
	if studentID == uuid.Nil {
		return out, nil
	}
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *effectivenessRepo) CountByTemplateID(dbc dbctx.Context, templateID uuid.UUID) (int64, error) {
	if templateID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Model(&types.EffectivenessRecord{}).
		Where("template_id = ?", templateID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *effectivenessRepo) Save(dbc dbctx.Context, row *types.EffectivenessRecord) error {
	if row == nil || row.ID == uuid.Nil {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return r.dbx(dbc).WithContext(dbc.Ctx).Save(row).Error
}
