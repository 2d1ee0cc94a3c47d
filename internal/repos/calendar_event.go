package repos

import (
	"gorm.io/gorm"

	"github.com/projecthub/projecthub-backend/internal/dbctx"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/types"
)

type CalendarEventRepo interface {
	ListByYearAndSemester(dbc dbctx.Context, academicYear, semester string) ([]*types.CalendarEvent, error)
	ListMilestoneAffecting(dbc dbctx.Context, academicYear, semester string) ([]*types.CalendarEvent, error)
}

type calendarEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalendarEventRepo(db *gorm.DB, baseLog *logger.Logger) CalendarEventRepo {
	return &calendarEventRepo{db: db, log: baseLog.With("repo", "CalendarEventRepo")}
}

func (r *calendarEventRepo) dbx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *calendarEventRepo) ListByYearAndSemester(dbc dbctx.Context, academicYear, semester string) ([]*types.CalendarEvent, error) {
	out := []*types.CalendarEvent{}
	if academicYear == "" {
		return out, nil
	}
	q := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("academic_year = ?", academicYear)
	if semester != "" {
		q = q.Where("semester = ?", semester)
	}
	if err := q.Order("start_date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *calendarEventRepo) ListMilestoneAffecting(dbc dbctx.Context, academicYear, semester string) ([]*types.CalendarEvent, error) {
	out := []*types.CalendarEvent{}
	if academicYear == "" {
		return out, nil
	}
	q := r.dbx(dbc).WithContext(dbc.Ctx).
		Where("academic_year = ? AND affects_milestones = ?", academicYear, true)
	if semester != "" {
		q = q.Where("semester = ?", semester)
	}
	if err := q.Order("start_date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
