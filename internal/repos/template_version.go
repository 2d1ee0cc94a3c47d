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

type TemplateVersionRepo interface {
	Create(dbc dbctx.Context, row *types.TemplateVersion) error
	ListByTemplateID(dbc dbctx.Context, templateID uuid.UUID) ([]*types.TemplateVersion, error)
	GetByTemplateAndVersion(dbc dbctx.Context, templateID uuid.UUID, version int) (*types.TemplateVersion, error)
	GetActiveByTemplateID(dbc dbctx.Context, templateID uuid.UUID) (*types.TemplateVersion, error)
	LatestVersionNumber(dbc dbctx.Context, templateID uuid.UUID) (int, error)
	DeactivateAllForTemplate(dbc dbctx.Context, templateID uuid.UUID) error
}

type templateVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateVersionRepo(db *gorm.DB, baseLog *logger.Logger) TemplateVersionRepo {
	return &templateVersionRepo{db: db, log: baseLog.With("repo", "TemplateVersionRepo")}
}

func (r *templateVersionRepo) dbx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *templateVersionRepo) Create(dbc dbctx.Context, row *types.TemplateVersion) error {
	if row == nil {
		return nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.dbx(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *templateVersionRepo) ListByTemplateID(dbc dbctx.Context, templateID uuid.UUID) ([]*types.TemplateVersion, error) {
	out := []*types.TemplateVersion{}
	if templateID == uuid.Nil {
		return out, nil
	}
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("template_id = ?", templateID).
		Order("version DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateVersionRepo) GetByTemplateAndVersion(dbc dbctx.Context, templateID uuid.UUID, version int) (*types.TemplateVersion, error) {
	if templateID == uuid.Nil {
		return nil, nil
	}
	var row types.TemplateVersion
	err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("template_id = ? AND version = ?", templateID, version).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *templateVersionRepo) GetActiveByTemplateID(dbc dbctx.Context, templateID uuid.UUID) (*types.TemplateVersion, error) {
	if templateID == uuid.Nil {
		return nil, nil
	}
	var row types.TemplateVersion
	err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("template_id = ? AND is_active = ?", templateID, true).
		Order("version DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *templateVersionRepo) LatestVersionNumber(dbc dbctx.Context, templateID uuid.UUID) (int, error) {
	if templateID == uuid.Nil {
		return 0, nil
	}
	var latest *int
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Model(&types.TemplateVersion{}).
		Where("template_id = ?", templateID).
		Select("MAX(version)").
		Scan(&latest).Error; err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return *latest, nil
}

func (r *templateVersionRepo) DeactivateAllForTemplate(dbc dbctx.Context, templateID uuid.UUID) error {
	if templateID == uuid.Nil {
		return nil
	}
	return r.dbx(dbc).WithContext(dbc.Ctx).
		Model(&types.TemplateVersion{}).
		Where("template_id = ? AND is_active = ?", templateID, true).
		Update("is_active", false).Error
}
