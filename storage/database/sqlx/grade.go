package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
	"github.com/truonghoc/backend/storage/database"
)

const componentUniqueIndex = "grade_component_single_idx"

var (
	componentColumns = []string{
		"id", "reporting_period_id", "student_id", "subject_id", "component_type",
		"value", "entered_by", "created_at", "updated_at",
	}
	componentOrderings = map[string]string{
		"component_type": "component_type",
		"created_at":     "created_at",
		"updated_at":     "updated_at",
	}
	correctionColumns = []string{
		"id", "component_id", "old_value", "new_value", "reason", "corrected_by", "corrected_at",
	}
)

type componentRow struct {
	ID                string       `db:"id"`
	ReportingPeriodID string       `db:"reporting_period_id"`
	StudentID         string       `db:"student_id"`
	SubjectID         string       `db:"subject_id"`
	Type              string       `db:"component_type"`
	Value             null.Float64 `db:"value"`
	EnteredBy         null.String  `db:"entered_by"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func (row componentRow) component() grade.Component {
	return grade.Component{
		ID:                row.ID,
		ReportingPeriodID: row.ReportingPeriodID,
		StudentID:         row.StudentID,
		SubjectID:         row.SubjectID,
		Type:              row.Type,
		Value:             row.Value.Ptr(),
		EnteredBy:         row.EnteredBy.String,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

type correctionRow struct {
	ID          string       `db:"id"`
	ComponentID string       `db:"component_id"`
	OldValue    null.Float64 `db:"old_value"`
	NewValue    null.Float64 `db:"new_value"`
	Reason      string       `db:"reason"`
	CorrectedBy null.String  `db:"corrected_by"`
	CorrectedAt time.Time    `db:"corrected_at"`
}

func (row correctionRow) correction() grade.Correction {
	return grade.Correction{
		ID:          row.ID,
		ComponentID: row.ComponentID,
		OldValue:    row.OldValue.Ptr(),
		NewValue:    row.NewValue.Ptr(),
		Reason:      row.Reason,
		CorrectedBy: row.CorrectedBy.String,
		CorrectedAt: row.CorrectedAt,
	}
}

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateComponent(ctx context.Context, c grade.Component) (grade.Component, error) {
	c.ID = newID()
	q := psql.Insert("grade_component").Columns(componentColumns...).Values(
		c.ID, c.ReportingPeriodID, c.StudentID, c.SubjectID, c.Type,
		null.Float64FromPtr(c.Value), null.NewString(c.EnteredBy, c.EnteredBy != ""),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		if database.IsUniqueViolation(err, componentUniqueIndex) {
			return grade.Component{}, grade.ErrComponentExists
		}
		return grade.Component{}, errors.Wrap(err, "inserting grade component")
	}
	return c, nil
}

func (repo *gradeRepository) GetComponent(ctx context.Context, id string) (grade.Component, error) {
	var row componentRow
	q := psql.Select(componentColumns...).From("grade_component").Where(sq.Eq{"id": id})
	if err := getRow(ctx, repo.db, &row, q); err != nil {
		return grade.Component{}, trapNoRowsErr(err, grade.ErrNotFound, "getting grade component")
	}
	return row.component(), nil
}

func (repo *gradeRepository) QueryComponents(ctx context.Context, filter *grade.QueryFilter, ordering []core.DBOrdering) ([]grade.Component, error) {
	q := psql.Select(componentColumns...).From("grade_component")
	if filter != nil {
		where := sq.Eq{}
		if filter.ReportingPeriodID != "" {
			where["reporting_period_id"] = filter.ReportingPeriodID
		}
		if filter.StudentID != "" {
			where["student_id"] = filter.StudentID
		}
		if filter.SubjectID != "" {
			where["subject_id"] = filter.SubjectID
		}
		if filter.Type != "" {
			where["component_type"] = filter.Type
		}
		if len(where) > 0 {
			q = q.Where(where)
		}
	}
	q = orderBy(q, ordering, componentOrderings, "created_at ASC")

	var rows []componentRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying grade components")
	}
	comps := make([]grade.Component, 0, len(rows))
	for _, row := range rows {
		comps = append(comps, row.component())
	}
	return comps, nil
}

func (repo *gradeRepository) update(ctx context.Context, db sqlx.ExecerContext, c grade.Component) error {
	q := psql.Update("grade_component").
		Set("value", null.Float64FromPtr(c.Value)).
		Set("entered_by", null.NewString(c.EnteredBy, c.EnteredBy != "")).
		Set("updated_at", c.UpdatedAt.UTC()).
		Where(sq.Eq{"id": c.ID})
	return execOne(ctx, db, q, grade.ErrNotFound)
}

func (repo *gradeRepository) UpdateComponent(ctx context.Context, c grade.Component) (grade.Component, error) {
	if err := repo.update(ctx, repo.db, c); err != nil {
		if err == grade.ErrNotFound {
			return grade.Component{}, err
		}
		return grade.Component{}, errors.Wrap(err, "updating grade component")
	}
	return c, nil
}

func (repo *gradeRepository) DeleteComponent(ctx context.Context, id string) error {
	err := execOne(ctx, repo.db, psql.Delete("grade_component").Where(sq.Eq{"id": id}), grade.ErrNotFound)
	if err != nil && err != grade.ErrNotFound {
		return errors.Wrap(err, "deleting grade component")
	}
	return err
}

func (repo *gradeRepository) CorrectComponent(ctx context.Context, c grade.Component, corr grade.Correction) (grade.Component, grade.Correction, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return grade.Component{}, grade.Correction{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = repo.update(ctx, tx, c); err != nil {
		if err == grade.ErrNotFound {
			return grade.Component{}, grade.Correction{}, err
		}
		return grade.Component{}, grade.Correction{}, errors.Wrap(err, "updating grade component")
	}

	corr.ID = newID()
	corr.ComponentID = c.ID
	q := psql.Insert("grade_correction").Columns(correctionColumns...).Values(
		corr.ID, corr.ComponentID,
		null.Float64FromPtr(corr.OldValue), null.Float64FromPtr(corr.NewValue),
		corr.Reason, null.NewString(corr.CorrectedBy, corr.CorrectedBy != ""), corr.CorrectedAt.UTC(),
	)
	if _, err = exec(ctx, tx, q); err != nil {
		return grade.Component{}, grade.Correction{}, errors.Wrap(err, "inserting grade correction")
	}

	if err = tx.Commit(); err != nil {
		return grade.Component{}, grade.Correction{}, errors.Wrap(err, "committing correction")
	}
	return c, corr, nil
}

func (repo *gradeRepository) QueryCorrections(ctx context.Context, componentID string) ([]grade.Correction, error) {
	q := psql.Select(correctionColumns...).
		From("grade_correction").
		Where(sq.Eq{"component_id": componentID}).
		OrderBy("corrected_at ASC")

	var rows []correctionRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying grade corrections")
	}
	corrs := make([]grade.Correction, 0, len(rows))
	for _, row := range rows {
		corrs = append(corrs, row.correction())
	}
	return corrs, nil
}
