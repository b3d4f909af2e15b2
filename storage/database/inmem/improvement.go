package inmemdb

import (
	"context"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/improvement"
)

type improvementRepository struct {
	periods  *table[improvement.Period]
	requests *table[improvement.Request]
}

var _ improvement.Repository = (*improvementRepository)(nil)

func NewImprovementRepository(db *DB) improvement.Repository {
	return &improvementRepository{periods: db.improvementPeriod, requests: db.improvementRequest}
}

var (
	improvementPeriodComparators = comparators[improvement.Period]{
		"start_date": func(a, b improvement.Period) int { return compareDate(a.StartDate, b.StartDate) },
		"end_date":   func(a, b improvement.Period) int { return compareDate(a.EndDate, b.EndDate) },
		"is_active":  func(a, b improvement.Period) int { return compareBool(a.IsActive, b.IsActive) },
		"created_at": func(a, b improvement.Period) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	}

	improvementRequestComparators = comparators[improvement.Request]{
		"status":     func(a, b improvement.Request) int { return compareFold(a.Status, b.Status) },
		"created_at": func(a, b improvement.Request) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	}
)

// overlapping reports whether an active period of the reporting period, other than exclID, shares a day with [start, end].
func (repo *improvementRepository) overlapping(reportingPeriodID string, start, end core.Date, exclID string) bool {
	return repo.periods.find(func(p improvement.Period) bool {
		return p.ID != exclID &&
			p.IsActive &&
			p.ReportingPeriodID == reportingPeriodID &&
			core.RangesOverlap(p.StartDate, p.EndDate, start, end)
	}) >= 0
}

func (repo *improvementRepository) CreatePeriod(_ context.Context, p improvement.Period) (improvement.Period, error) {
	repo.periods.mutex.Lock()
	defer repo.periods.mutex.Unlock()

	if p.IsActive && repo.overlapping(p.ReportingPeriodID, p.StartDate, p.EndDate, "") {
		return improvement.Period{}, improvement.ErrPeriodOverlaps
	}
	p.ID = newID()
	repo.periods.rows = append(repo.periods.rows, p)
	return p, nil
}

func (repo *improvementRepository) GetPeriod(_ context.Context, id string) (improvement.Period, error) {
	repo.periods.mutex.RLock()
	defer repo.periods.mutex.RUnlock()

	if i := repo.periods.find(func(p improvement.Period) bool { return p.ID == id }); i >= 0 {
		return repo.periods.rows[i], nil
	}
	return improvement.Period{}, improvement.ErrPeriodNotFound
}

func (repo *improvementRepository) QueryPeriods(_ context.Context, filter *improvement.PeriodFilter, ordering []core.DBOrdering) ([]improvement.Period, error) {
	repo.periods.mutex.RLock()
	defer repo.periods.mutex.RUnlock()

	periods := repo.periods.filter(func(p improvement.Period) bool {
		if filter == nil {
			return true
		}
		return (filter.ReportingPeriodID == "" || p.ReportingPeriodID == filter.ReportingPeriodID) &&
			(filter.IsActive == nil || p.IsActive == *filter.IsActive) &&
			(filter.OpenOn.IsZero() || p.IsOpenOn(filter.OpenOn))
	})
	orderBy(periods, ordering, improvementPeriodComparators)
	return periods, nil
}

func (repo *improvementRepository) UpdatePeriod(_ context.Context, p improvement.Period) (improvement.Period, error) {
	repo.periods.mutex.Lock()
	defer repo.periods.mutex.Unlock()

	i := repo.periods.find(func(o improvement.Period) bool { return o.ID == p.ID })
	if i < 0 {
		return improvement.Period{}, improvement.ErrPeriodNotFound
	}
	if p.IsActive && repo.overlapping(p.ReportingPeriodID, p.StartDate, p.EndDate, p.ID) {
		return improvement.Period{}, improvement.ErrPeriodOverlaps
	}
	repo.periods.rows[i] = p
	return p, nil
}

func (repo *improvementRepository) HasOverlappingPeriod(_ context.Context, reportingPeriodID string, start, end core.Date) (bool, error) {
	repo.periods.mutex.RLock()
	defer repo.periods.mutex.RUnlock()
	return repo.overlapping(reportingPeriodID, start, end, ""), nil
}

func (repo *improvementRepository) findRequest(periodID, studentID, subjectID string) int {
	return repo.requests.find(func(r improvement.Request) bool {
		return r.ImprovementPeriodID == periodID && r.StudentID == studentID && r.SubjectID == subjectID
	})
}

func (repo *improvementRepository) CreateRequest(_ context.Context, r improvement.Request) (improvement.Request, error) {
	repo.requests.mutex.Lock()
	defer repo.requests.mutex.Unlock()

	if repo.findRequest(r.ImprovementPeriodID, r.StudentID, r.SubjectID) >= 0 {
		return improvement.Request{}, improvement.ErrDuplicateRequest
	}
	r.ID = newID()
	repo.requests.rows = append(repo.requests.rows, r)
	return r, nil
}

func (repo *improvementRepository) GetRequest(_ context.Context, id string) (improvement.Request, error) {
	repo.requests.mutex.RLock()
	defer repo.requests.mutex.RUnlock()

	if i := repo.requests.find(func(r improvement.Request) bool { return r.ID == id }); i >= 0 {
		return repo.requests.rows[i], nil
	}
	return improvement.Request{}, improvement.ErrRequestNotFound
}

func (repo *improvementRepository) QueryRequests(_ context.Context, filter *improvement.RequestFilter, ordering []core.DBOrdering) ([]improvement.Request, error) {
	repo.requests.mutex.RLock()
	defer repo.requests.mutex.RUnlock()

	reqs := repo.requests.filter(func(r improvement.Request) bool {
		if filter == nil {
			return true
		}
		return (filter.ImprovementPeriodID == "" || r.ImprovementPeriodID == filter.ImprovementPeriodID) &&
			(filter.StudentID == "" || r.StudentID == filter.StudentID) &&
			(filter.SubjectID == "" || r.SubjectID == filter.SubjectID) &&
			(filter.Status == "" || r.Status == filter.Status)
	})
	orderBy(reqs, ordering, improvementRequestComparators)
	return reqs, nil
}

func (repo *improvementRepository) RequestExists(_ context.Context, periodID, studentID, subjectID string) (bool, error) {
	repo.requests.mutex.RLock()
	defer repo.requests.mutex.RUnlock()
	return repo.findRequest(periodID, studentID, subjectID) >= 0, nil
}

func (repo *improvementRepository) ResolveRequest(_ context.Context, r improvement.Request) (improvement.Request, error) {
	repo.requests.mutex.Lock()
	defer repo.requests.mutex.Unlock()

	i := repo.requests.find(func(o improvement.Request) bool { return o.ID == r.ID })
	if i < 0 {
		return improvement.Request{}, improvement.ErrRequestNotFound
	}
	stored := &repo.requests.rows[i]
	if !stored.IsPending() {
		return improvement.Request{}, improvement.ErrAlreadyResolved
	}
	stored.Status = r.Status
	stored.AdminComment = r.AdminComment
	stored.ReviewedBy = r.ReviewedBy
	stored.ReviewedAt = r.ReviewedAt
	return *stored, nil
}
