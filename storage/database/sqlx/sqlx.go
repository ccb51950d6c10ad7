package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bangkihwa/studylink/core"
)

const pgUniqueViolation = "23505"

// where accumulates AND-ed conditions; "IN (?)" conditions take a slice expanded by sqlx.In.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// selectIn expands slice args, rebinds for the driver and selects into dest.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	return exec.SelectContext(ctx, dest, exec.Rebind(q), args...)
}

func execIn(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	return exec.ExecContext(ctx, exec.Rebind(q), args...)
}

// insert runs an INSERT ... RETURNING id and returns the new id.
func insert(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := exec.QueryRowxContext(ctx, exec.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func inTx(ctx context.Context, db core.DB, fn func(tx core.DBExecutor) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// trapNoRowsErr maps "no rows" to the domain's not found error.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation recognizes unique constraint failures of every supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// checkAffected maps a write that touched no row to notFound.
func checkAffected(res sql.Result, err error, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
