// Package store holds the SQL for every table. Functions accept a db.DBTX so
// callers decide whether they run inside a transaction.
package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/posoja/internal/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// execAffected runs a built statement and reports how many rows it touched.
func execAffected(ctx context.Context, q db.DBTX, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func queryRows(ctx context.Context, q db.DBTX, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, query, args...)
}

func queryRow(ctx context.Context, q db.DBTX, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.QueryRowContext(ctx, query, args...), nil
}
