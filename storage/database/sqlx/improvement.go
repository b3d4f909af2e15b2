package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/improvement"
	"github.com/truonghoc/backend/storage/database"
)

const (
	improvementPeriodTable  = "grade_improvement_period"
	improvementRequestTable = "grade_improvement_request"

	periodOverlapConstraint = "grade_improvement_period_no_overlap"
	requestUniqueConstraint = "grade_improvement_request_unique"
)

var (
	improvementPeriodColumns = []string{
		"id", "reporting_period_id", "start_date", "end_date", "is_active", "created_by", "created_at",
	}
	improvementPeriodOrderings = map[string]string{
		"start_date": "start_date",
		"end_date":   "end_date",
		"is_active":  "is_active",
		"created_at": "created_at",
	}

	improvementRequestColumns = []string{
		"id", "improvement_period_id", "student_id", "subject_id", "reason", "status",
		"admin_comment", "reviewed_by", "reviewed_at", "created_at",
	}
	improvementRequestOrderings = map[string]string{
		"status":     "status",
		"created_at": "created_at",
	}
)

type improvementPeriodRow struct {
	ID                string      `db:"id"`
	ReportingPeriodID string      `db:"reporting_period_id"`
	StartDate         core.Date   `db:"start_date"`
	EndDate           core.Date   `db:"end_date"`
	IsActive          bool        `db:"is_active"`
	CreatedBy         null.String `db:"created_by"`
	CreatedAt         time.Time   `db:"created_at"`
}

func (row improvementPeriodRow) period() improvement.Period {
	return improvement.Period{
		ID:                row.ID,
		ReportingPeriodID: row.ReportingPeriodID,
		StartDate:         row.StartDate,
		EndDate:           row.EndDate,
		IsActive:          row.IsActive,
		CreatedBy:         row.CreatedBy.String,
		CreatedAt:         row.CreatedAt,
	}
}

type improvementRequestRow struct {
	ID                  string      `db:"id"`
	ImprovementPeriodID string      `db:"improvement_period_id"`
	StudentID           string      `db:"student_id"`
	SubjectID           string      `db:"subject_id"`
	Reason              string      `db:"reason"`
	Status              string      `db:"status"`
	AdminComment        null.String `db:"admin_comment"`
	ReviewedBy          null.String `db:"reviewed_by"`
	ReviewedAt          null.Time   `db:"reviewed_at"`
	CreatedAt           time.Time   `db:"created_at"`
}

func (row improvementRequestRow) request() improvement.Request {
	return improvement.Request{
		ID:                  row.ID,
		ImprovementPeriodID: row.ImprovementPeriodID,
		StudentID:           row.StudentID,
		SubjectID:           row.SubjectID,
		Reason:              row.Reason,
		Status:              row.Status,
		AdminComment:        row.AdminComment.String,
		ReviewedBy:          row.ReviewedBy.String,
		ReviewedAt:          row.ReviewedAt.Ptr(),
		CreatedAt:           row.CreatedAt,
	}
}

type improvementRepository struct {
	db *sqlx.DB
}

var _ improvement.Repository = (*improvementRepository)(nil)

func NewImprovementRepository(db *sqlx.DB) improvement.Repository {
	return &improvementRepository{db: db}
}

func (repo *improvementRepository) CreatePeriod(ctx context.Context, p improvement.Period) (improvement.Period, error) {
	p.ID = newID()
	q := psql.Insert(improvementPeriodTable).Columns(improvementPeriodColumns...).Values(
		p.ID, p.ReportingPeriodID, p.StartDate, p.EndDate, p.IsActive,
		null.NewString(p.CreatedBy, p.CreatedBy != ""), p.CreatedAt.UTC(),
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		if database.IsExclusionViolation(err, periodOverlapConstraint) {
			return improvement.Period{}, improvement.ErrPeriodOverlaps
		}
		return improvement.Period{}, errors.Wrap(err, "inserting improvement period")
	}
	return p, nil
}

func (repo *improvementRepository) GetPeriod(ctx context.Context, id string) (improvement.Period, error) {
	var row improvementPeriodRow
	q := psql.Select(improvementPeriodColumns...).From(improvementPeriodTable).Where(sq.Eq{"id": id})
	if err := getRow(ctx, repo.db, &row, q); err != nil {
		return improvement.Period{}, trapNoRowsErr(err, improvement.ErrPeriodNotFound, "getting improvement period")
	}
	return row.period(), nil
}

func (repo *improvementRepository) QueryPeriods(ctx context.Context, filter *improvement.PeriodFilter, ordering []core.DBOrdering) ([]improvement.Period, error) {
	q := psql.Select(improvementPeriodColumns...).From(improvementPeriodTable)
	if filter != nil {
		if filter.ReportingPeriodID != "" {
			q = q.Where(sq.Eq{"reporting_period_id": filter.ReportingPeriodID})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.OpenOn.IsZero() {
			q = q.Where(sq.And{
				sq.Eq{"is_active": true},
				sq.LtOrEq{"start_date": filter.OpenOn},
				sq.GtOrEq{"end_date": filter.OpenOn},
			})
		}
	}
	q = orderBy(q, ordering, improvementPeriodOrderings, "start_date DESC")

	var rows []improvementPeriodRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying improvement periods")
	}
	periods := make([]improvement.Period, 0, len(rows))
	for _, row := range rows {
		periods = append(periods, row.period())
	}
	return periods, nil
}

func (repo *improvementRepository) UpdatePeriod(ctx context.Context, p improvement.Period) (improvement.Period, error) {
	q := psql.Update(improvementPeriodTable).
		Set("start_date", p.StartDate).
		Set("end_date", p.EndDate).
		Set("is_active", p.IsActive).
		Where(sq.Eq{"id": p.ID})
	if err := execOne(ctx, repo.db, q, improvement.ErrPeriodNotFound); err != nil {
		switch {
		case err == improvement.ErrPeriodNotFound:
			return improvement.Period{}, err
		case database.IsExclusionViolation(err, periodOverlapConstraint):
			return improvement.Period{}, improvement.ErrPeriodOverlaps
		}
		return improvement.Period{}, errors.Wrap(err, "updating improvement period")
	}
	return p, nil
}

func (repo *improvementRepository) HasOverlappingPeriod(ctx context.Context, reportingPeriodID string, start, end core.Date) (bool, error) {
	q := psql.Select("1").From(improvementPeriodTable).Where(sq.And{
		sq.Eq{"reporting_period_id": reportingPeriodID, "is_active": true},
		sq.LtOrEq{"start_date": end},
		sq.GtOrEq{"end_date": start},
	})
	found, err := exists(ctx, repo.db, q)
	if err != nil {
		return false, errors.Wrap(err, "checking overlapping improvement periods")
	}
	return found, nil
}

func (repo *improvementRepository) CreateRequest(ctx context.Context, r improvement.Request) (improvement.Request, error) {
	r.ID = newID()
	q := psql.Insert(improvementRequestTable).Columns(improvementRequestColumns...).Values(
		r.ID, r.ImprovementPeriodID, r.StudentID, r.SubjectID, r.Reason, r.Status,
		null.NewString(r.AdminComment, r.AdminComment != ""),
		null.NewString(r.ReviewedBy, r.ReviewedBy != ""),
		null.TimeFromPtr(r.ReviewedAt), r.CreatedAt.UTC(),
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		if database.IsUniqueViolation(err, requestUniqueConstraint) {
			return improvement.Request{}, improvement.ErrDuplicateRequest
		}
		return improvement.Request{}, errors.Wrap(err, "inserting improvement request")
	}
	return r, nil
}

func (repo *improvementRepository) GetRequest(ctx context.Context, id string) (improvement.Request, error) {
	var row improvementRequestRow
	q := psql.Select(improvementRequestColumns...).From(improvementRequestTable).Where(sq.Eq{"id": id})
	if err := getRow(ctx, repo.db, &row, q); err != nil {
		return improvement.Request{}, trapNoRowsErr(err, improvement.ErrRequestNotFound, "getting improvement request")
	}
	return row.request(), nil
}

func (repo *improvementRepository) QueryRequests(ctx context.Context, filter *improvement.RequestFilter, ordering []core.DBOrdering) ([]improvement.Request, error) {
	q := psql.Select(improvementRequestColumns...).From(improvementRequestTable)
	if filter != nil {
		where := sq.Eq{}
		if filter.ImprovementPeriodID != "" {
			where["improvement_period_id"] = filter.ImprovementPeriodID
		}
		if filter.StudentID != "" {
			where["student_id"] = filter.StudentID
		}
		if filter.SubjectID != "" {
			where["subject_id"] = filter.SubjectID
		}
		if filter.Status != "" {
			where["status"] = filter.Status
		}
		if len(where) > 0 {
			q = q.Where(where)
		}
	}
	q = orderBy(q, ordering, improvementRequestOrderings, "created_at DESC")

	var rows []improvementRequestRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying improvement requests")
	}
	reqs := make([]improvement.Request, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.request())
	}
	return reqs, nil
}

func (repo *improvementRepository) RequestExists(ctx context.Context, periodID, studentID, subjectID string) (bool, error) {
	q := psql.Select("1").From(improvementRequestTable).Where(sq.Eq{
		"improvement_period_id": periodID,
		"student_id":            studentID,
		"subject_id":            subjectID,
	})
	found, err := exists(ctx, repo.db, q)
	if err != nil {
		return false, errors.Wrap(err, "checking existing improvement requests")
	}
	return found, nil
}

// ResolveRequest only updates pending rows, so of two concurrent resolutions only one succeeds.
func (repo *improvementRepository) ResolveRequest(ctx context.Context, r improvement.Request) (improvement.Request, error) {
	q := psql.Update(improvementRequestTable).
		Set("status", r.Status).
		Set("admin_comment", null.NewString(r.AdminComment, r.AdminComment != "")).
		Set("reviewed_by", null.NewString(r.ReviewedBy, r.ReviewedBy != "")).
		Set("reviewed_at", null.TimeFromPtr(r.ReviewedAt)).
		Where(sq.Eq{"id": r.ID, "status": improvement.StatusPending})
	err := execOne(ctx, repo.db, q, improvement.ErrAlreadyResolved)
	if err == improvement.ErrAlreadyResolved {
		// tell "resolved meanwhile" from "never existed"
		if _, getErr := repo.GetRequest(ctx, r.ID); getErr != nil {
			return improvement.Request{}, getErr
		}
		return improvement.Request{}, err
	}
	if err != nil {
		return improvement.Request{}, errors.Wrap(err, "resolving improvement request")
	}
	return r, nil
}
