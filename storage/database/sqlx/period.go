package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/period"
)

var (
	periodColumns   = []string{"id", "name", "start_date", "end_date", "is_closed", "created_by", "created_at"}
	periodOrderings = map[string]string{
		"name":       "name",
		"start_date": "start_date",
		"end_date":   "end_date",
		"created_at": "created_at",
	}
)

type periodRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	StartDate core.Date   `db:"start_date"`
	EndDate   core.Date   `db:"end_date"`
	IsClosed  bool        `db:"is_closed"`
	CreatedBy null.String `db:"created_by"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row periodRow) period() period.ReportingPeriod {
	return period.ReportingPeriod{
		ID:        row.ID,
		Name:      row.Name,
		StartDate: row.StartDate,
		EndDate:   row.EndDate,
		IsClosed:  row.IsClosed,
		CreatedBy: row.CreatedBy.String,
		CreatedAt: row.CreatedAt,
	}
}

type periodRepository struct {
	db *sqlx.DB
}

var _ period.Repository = (*periodRepository)(nil)

func NewPeriodRepository(db *sqlx.DB) period.Repository {
	return &periodRepository{db: db}
}

func (repo *periodRepository) CreatePeriod(ctx context.Context, p period.ReportingPeriod) (period.ReportingPeriod, error) {
	p.ID = newID()
	q := psql.Insert("reporting_period").Columns(periodColumns...).Values(
		p.ID, p.Name, p.StartDate, p.EndDate, p.IsClosed,
		null.NewString(p.CreatedBy, p.CreatedBy != ""), p.CreatedAt.UTC(),
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		return period.ReportingPeriod{}, errors.Wrap(err, "inserting reporting period")
	}
	return p, nil
}

func (repo *periodRepository) GetPeriod(ctx context.Context, id string) (period.ReportingPeriod, error) {
	var row periodRow
	q := psql.Select(periodColumns...).From("reporting_period").Where(sq.Eq{"id": id})
	if err := getRow(ctx, repo.db, &row, q); err != nil {
		return period.ReportingPeriod{}, trapNoRowsErr(err, period.ErrNotFound, "getting reporting period")
	}
	return row.period(), nil
}

func (repo *periodRepository) QueryPeriods(ctx context.Context, filter *period.QueryFilter, ordering []core.DBOrdering) ([]period.ReportingPeriod, error) {
	q := psql.Select(periodColumns...).From("reporting_period")
	if filter != nil && filter.IsClosed != nil {
		q = q.Where(sq.Eq{"is_closed": *filter.IsClosed})
	}
	q = orderBy(q, ordering, periodOrderings, "start_date DESC")

	var rows []periodRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying reporting periods")
	}
	periods := make([]period.ReportingPeriod, 0, len(rows))
	for _, row := range rows {
		periods = append(periods, row.period())
	}
	return periods, nil
}

func (repo *periodRepository) UpdatePeriod(ctx context.Context, p period.ReportingPeriod) (period.ReportingPeriod, error) {
	q := psql.Update("reporting_period").
		Set("name", p.Name).
		Set("start_date", p.StartDate).
		Set("end_date", p.EndDate).
		Set("is_closed", p.IsClosed).
		Where(sq.Eq{"id": p.ID})
	if err := execOne(ctx, repo.db, q, period.ErrNotFound); err != nil {
		if err == period.ErrNotFound {
			return period.ReportingPeriod{}, err
		}
		return period.ReportingPeriod{}, errors.Wrap(err, "updating reporting period")
	}
	return p, nil
}
