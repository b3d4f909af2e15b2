package inmemdb

import (
	"context"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/subject"
)

type subjectRepository struct {
	db *table[subject.Subject]
}

var _ subject.Repository = (*subjectRepository)(nil)

func NewSubjectRepository(db *DB) subject.Repository {
	return &subjectRepository{db: db.subject}
}

var subjectComparators = comparators[subject.Subject]{
	"code":       func(a, b subject.Subject) int { return compareFold(a.Code, b.Code) },
	"name":       func(a, b subject.Subject) int { return compareFold(a.Name, b.Name) },
	"created_at": func(a, b subject.Subject) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *subjectRepository) CreateSubject(_ context.Context, sub subject.Subject) (subject.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.db.find(func(s subject.Subject) bool { return s.Code == sub.Code }) >= 0 {
		return subject.Subject{}, subject.ErrCodeExists
	}
	sub.ID = newID()
	repo.db.rows = append(repo.db.rows, sub)
	return sub, nil
}

func (repo *subjectRepository) GetSubject(_ context.Context, id string) (subject.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if i := repo.db.find(func(s subject.Subject) bool { return s.ID == id }); i >= 0 {
		return repo.db.rows[i], nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) GetSubjectByCode(_ context.Context, code string) (subject.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if i := repo.db.find(func(s subject.Subject) bool { return s.Code == code }); i >= 0 {
		return repo.db.rows[i], nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) GetSubjectsByID(_ context.Context, ids ...string) ([]subject.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return repo.db.filter(func(s subject.Subject) bool {
		_, ok := wanted[s.ID]
		return ok
	}), nil
}

func (repo *subjectRepository) QuerySubjects(_ context.Context, filter *subject.QueryFilter, ordering []core.DBOrdering) ([]subject.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := repo.db.filter(func(s subject.Subject) bool {
		if filter == nil || filter.Search == "" {
			return true
		}
		return containsFold(s.Code, filter.Search) || containsFold(s.Name, filter.Search)
	})
	orderBy(subs, ordering, subjectComparators)
	return subs, nil
}
