package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/types"
)

// TemplateFilter narrows List results. Nil pointer fields are
// ignored.
type TemplateFilter struct {
	Specialization  string
	ProjectType     string
	IsActive        *bool
	IncludeArchived bool
	Search          string
}

type TemplateRepo interface {
	Create(dbc dbctx.Context, row *types.Template) error
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Template, error)
	List(dbc dbctx.Context, filter TemplateFilter) ([]*types.Template, error)
	FindActiveByNameAndSpecialization(dbc dbctx.Context, name, specialization string) ([]*types.Template, error)
	Save(dbc dbctx.Context, row *types.Template) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, baseLog *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: baseLog.With("repo", "TemplateRepo")}
}

func (r *templateRepo) dbx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *templateRepo) Create(dbc dbctx.Context, row *types.Template) error {
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

func (r *templateRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Template, error) {
	out := []*types.Template{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) List(dbc dbctx.Context, filter TemplateFilter) ([]*types.Template, error) {
	out := []*types.Template{}
	q := r.dbx(dbc).WithContext(dbc.Ctx).Model(&types.Template{})
	if filter.Specialization != "" {
		q = q.Where("specialization = ?", filter.Specialization)
	}
	if filter.ProjectType != "" {
		q = q.Where("project_type = ?", filter.ProjectType)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if !filter.IncludeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if filter.Search != "" {
		q = q.Where("name LIKE ?", "%"+filter.Search+"%")
	}
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) FindActiveByNameAndSpecialization(dbc dbctx.Context, name, specialization string) ([]*types.Template, error) {
	out := []*types.Template{}
	if name == "" {
		return out, nil
	}
	if err := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("name = ? AND specialization = ? AND is_active = ?", name, specialization, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) Save(dbc dbctx.Context, row *types.Template) error {
	if row == nil || row.ID == uuid.Nil {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return r.dbx(dbc).WithContext(dbc.Ctx).Save(row).Error
}

func (r *templateRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.dbx(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Template{}).Error
}
