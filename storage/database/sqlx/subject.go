package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/storage/database"
)

var (
	subjectColumns   = []string{"id", "code", "name", "created_at"}
	subjectOrderings = map[string]string{
		"code":       "code",
		"name":       "name",
		"created_at": "created_at",
	}
)

type subjectRow struct {
	ID        string    `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (row subjectRow) subject() subject.Subject {
	return subject.Subject{ID: row.ID, Code: row.Code, Name: row.Name, CreatedAt: row.CreatedAt}
}

func subjectsFromRows(rows []subjectRow) []subject.Subject {
	subs := make([]subject.Subject, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.subject())
	}
	return subs
}

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil)

func NewSubjectRepository(db *sqlx.DB) subject.Repository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject) (subject.Subject, error) {
	sub.ID = newID()
	q := psql.Insert("subject").Columns(subjectColumns...).Values(sub.ID, sub.Code, sub.Name, sub.CreatedAt.UTC())
	if _, err := exec(ctx, repo.db, q); err != nil {
		if database.IsUniqueViolation(err, "subject_code_key") {
			return subject.Subject{}, subject.ErrCodeExists
		}
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo *subjectRepository) get(ctx context.Context, where sq.Sqlizer) (subject.Subject, error) {
	var row subjectRow
	q := psql.Select(subjectColumns...).From("subject").Where(where).Limit(1)
	if err := getRow(ctx, repo.db, &row, q); err != nil {
		return subject.Subject{}, trapNoRowsErr(err, subject.ErrNotFound, "getting subject")
	}
	return row.subject(), nil
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id string) (subject.Subject, error) {
	return repo.get(ctx, sq.Eq{"id": id})
}

func (repo *subjectRepository) GetSubjectByCode(ctx context.Context, code string) (subject.Subject, error) {
	return repo.get(ctx, sq.Eq{"code": code})
}

func (repo *subjectRepository) GetSubjectsByID(ctx context.Context, ids ...string) ([]subject.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []subjectRow
	q := psql.Select(subjectColumns...).From("subject").Where(sq.Eq{"id": ids})
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "getting subjects by ID")
	}
	return subjectsFromRows(rows), nil
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context, filter *subject.QueryFilter, ordering []core.DBOrdering) ([]subject.Subject, error) {
	q := psql.Select(subjectColumns...).From("subject")
	if filter != nil && filter.Search != "" {
		val := "%" + filter.Search + "%"
		q = q.Where(sq.Or{sq.ILike{"code": val}, sq.ILike{"name": val}})
	}
	q = orderBy(q, ordering, subjectOrderings, "name ASC")

	var rows []subjectRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjectsFromRows(rows), nil
}
