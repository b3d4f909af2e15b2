package inmemdb

import (
	"context"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
)

type gradeRepository struct {
	components  *table[grade.Component]
	corrections *table[grade.Correction]
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{components: db.component, corrections: db.correction}
}

var componentComparators = comparators[grade.Component]{
	"component_type": func(a, b grade.Component) int { return compareFold(a.Type, b.Type) },
	"created_at":     func(a, b grade.Component) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	"updated_at":     func(a, b grade.Component) int { return compareTime(a.UpdatedAt, b.UpdatedAt) },
}

func sameSlot(a, b grade.Component) bool {
	return a.ReportingPeriodID == b.ReportingPeriodID &&
		a.StudentID == b.StudentID &&
		a.SubjectID == b.SubjectID &&
		a.Type == b.Type
}

func (repo *gradeRepository) CreateComponent(_ context.Context, c grade.Component) (grade.Component, error) {
	repo.components.mutex.Lock()
	defer repo.components.mutex.Unlock()

	if c.IsUnique() && repo.components.find(func(o grade.Component) bool { return sameSlot(o, c) }) >= 0 {
		return grade.Component{}, grade.ErrComponentExists
	}
	c.ID = newID()
	c.Value = copyValue(c.Value)
	repo.components.rows = append(repo.components.rows, c)
	return c, nil
}

func (repo *gradeRepository) GetComponent(_ context.Context, id string) (grade.Component, error) {
	repo.components.mutex.RLock()
	defer repo.components.mutex.RUnlock()

	if i := repo.components.find(func(c grade.Component) bool { return c.ID == id }); i >= 0 {
		return repo.components.rows[i], nil
	}
	return grade.Component{}, grade.ErrNotFound
}

func (repo *gradeRepository) QueryComponents(_ context.Context, filter *grade.QueryFilter, ordering []core.DBOrdering) ([]grade.Component, error) {
	repo.components.mutex.RLock()
	defer repo.components.mutex.RUnlock()

	comps := repo.components.filter(func(c grade.Component) bool {
		if filter == nil {
			return true
		}
		return (filter.ReportingPeriodID == "" || c.ReportingPeriodID == filter.ReportingPeriodID) &&
			(filter.StudentID == "" || c.StudentID == filter.StudentID) &&
			(filter.SubjectID == "" || c.SubjectID == filter.SubjectID) &&
			(filter.Type == "" || c.Type == filter.Type)
	})
	orderBy(comps, ordering, componentComparators)
	return comps, nil
}

func (repo *gradeRepository) UpdateComponent(_ context.Context, c grade.Component) (grade.Component, error) {
	repo.components.mutex.Lock()
	defer repo.components.mutex.Unlock()
	return repo.update(c)
}

func (repo *gradeRepository) update(c grade.Component) (grade.Component, error) {
	i := repo.components.find(func(o grade.Component) bool { return o.ID == c.ID })
	if i < 0 {
		return grade.Component{}, grade.ErrNotFound
	}
	c.Value = copyValue(c.Value)
	repo.components.rows[i] = c
	return c, nil
}

func (repo *gradeRepository) DeleteComponent(_ context.Context, id string) error {
	repo.components.mutex.Lock()
	defer repo.components.mutex.Unlock()

	i := repo.components.find(func(c grade.Component) bool { return c.ID == id })
	if i < 0 {
		return grade.ErrNotFound
	}
	repo.components.rows = append(repo.components.rows[:i], repo.components.rows[i+1:]...)
	return nil
}

func (repo *gradeRepository) CorrectComponent(_ context.Context, c grade.Component, corr grade.Correction) (grade.Component, grade.Correction, error) {
	repo.components.mutex.Lock()
	defer repo.components.mutex.Unlock()
	repo.corrections.mutex.Lock()
	defer repo.corrections.mutex.Unlock()

	c, err := repo.update(c)
	if err != nil {
		return grade.Component{}, grade.Correction{}, err
	}
	corr.ID = newID()
	corr.ComponentID = c.ID
	corr.OldValue = copyValue(corr.OldValue)
	corr.NewValue = copyValue(corr.NewValue)
	repo.corrections.rows = append(repo.corrections.rows, corr)
	return c, corr, nil
}

func (repo *gradeRepository) QueryCorrections(_ context.Context, componentID string) ([]grade.Correction, error) {
	repo.corrections.mutex.RLock()
	defer repo.corrections.mutex.RUnlock()

	return repo.corrections.filter(func(corr grade.Correction) bool {
		return corr.ComponentID == componentID
	}), nil
}
