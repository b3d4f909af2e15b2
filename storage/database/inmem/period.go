package inmemdb

import (
	"context"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/period"
)

type periodRepository struct {
	db *table[period.ReportingPeriod]
}

var _ period.Repository = (*periodRepository)(nil)

func NewPeriodRepository(db *DB) period.Repository {
	return &periodRepository{db: db.period}
}

var periodComparators = comparators[period.ReportingPeriod]{
	"name":       func(a, b period.ReportingPeriod) int { return compareFold(a.Name, b.Name) },
	"start_date": func(a, b period.ReportingPeriod) int { return compareDate(a.StartDate, b.StartDate) },
	"end_date":   func(a, b period.ReportingPeriod) int { return compareDate(a.EndDate, b.EndDate) },
	"created_at": func(a, b period.ReportingPeriod) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *periodRepository) CreatePeriod(_ context.Context, p period.ReportingPeriod) (period.ReportingPeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = newID()
	repo.db.rows = append(repo.db.rows, p)
	return p, nil
}

func (repo *periodRepository) GetPeriod(_ context.Context, id string) (period.ReportingPeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if i := repo.db.find(func(p period.ReportingPeriod) bool { return p.ID == id }); i >= 0 {
		return repo.db.rows[i], nil
	}
	return period.ReportingPeriod{}, period.ErrNotFound
}

func (repo *periodRepository) QueryPeriods(_ context.Context, filter *period.QueryFilter, ordering []core.DBOrdering) ([]period.ReportingPeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	periods := repo.db.filter(func(p period.ReportingPeriod) bool {
		return filter == nil || filter.IsClosed == nil || p.IsClosed == *filter.IsClosed
	})
	orderBy(periods, ordering, periodComparators)
	return periods, nil
}

func (repo *periodRepository) UpdatePeriod(_ context.Context, p period.ReportingPeriod) (period.ReportingPeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	i := repo.db.find(func(rp period.ReportingPeriod) bool { return rp.ID == p.ID })
	if i < 0 {
		return period.ReportingPeriod{}, period.ErrNotFound
	}
	repo.db.rows[i] = p
	return p, nil
}
