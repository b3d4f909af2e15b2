// Package sqlxrepos implements the repositories on postgres with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func newID() string {
	return uuid.New().String()
}

// orderBy appends the orderings whose field is in columns, falling back to def.
func orderBy(q sq.SelectBuilder, ordering []core.DBOrdering, columns map[string]string, def ...string) sq.SelectBuilder {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		clauses = def
	}
	return q.OrderBy(clauses...)
}

func selectRows(ctx context.Context, db sqlx.QueryerContext, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, db, dest, query, args...)
}

func getRow(ctx context.Context, db sqlx.QueryerContext, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, db, dest, query, args...)
}

func exec(ctx context.Context, db sqlx.ExecerContext, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return db.ExecContext(ctx, query, args...)
}

// execOne runs q and returns notFound unless it affected a row.
func execOne(ctx context.Context, db sqlx.ExecerContext, q sq.Sqlizer, notFound error) error {
	res, err := exec(ctx, db, q)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func exists(ctx context.Context, db sqlx.QueryerContext, q sq.SelectBuilder) (bool, error) {
	var found bool
	err := getRow(ctx, db, &found, q.Prefix("SELECT EXISTS (").Suffix(")"))
	return found, err
}
