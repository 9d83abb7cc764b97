// Package sqlrepo implements the store repositories over database/sql. The
// sqlite and postgres drivers share it and differ only in their Dialect.
package sqlrepo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/store"
)

// Dialect captures the driver specific parts of the SQL layer.
type Dialect struct {
	Name string

	// Numbered rewrites ? placeholders to $1, $2, ...
	Numbered bool

	IsUniqueViolation func(error) bool
	IsUnavailable     func(error) bool
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the non-migration part of a store.Store.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// SQL returns the underlying pool.
func (d *DB) SQL() *sql.DB { return d.db }

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Ping(ctx context.Context) error {
	return d.mapErr(d.db.PingContext(ctx))
}

func (d *DB) SigningKeys() store.SigningKeys         { return &signingKeysRepo{q: d.querier(d.db)} }
func (d *DB) APIKeys() store.APIKeys                 { return &apiKeysRepo{q: d.querier(d.db)} }
func (d *DB) PasswordHistory() store.PasswordHistory { return &passwordHistoryRepo{q: d.querier(d.db)} }

// WithTx runs fn in a transaction.
func (d *DB) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return d.mapErr(err)
	}
	defer func() {
		_ = sqlTx.Rollback() // no-op after commit
	}()

	if err := fn(&txStore{q: d.querier(sqlTx)}); err != nil {
		return err
	}
	return d.mapErr(sqlTx.Commit())
}

func (d *DB) querier(db DBTX) querier {
	return querier{db: db, d: d}
}

type txStore struct {
	q querier
}

func (t *txStore) SigningKeys() store.SigningKeys         { return &signingKeysRepo{q: t.q} }
func (t *txStore) APIKeys() store.APIKeys                 { return &apiKeysRepo{q: t.q} }
func (t *txStore) PasswordHistory() store.PasswordHistory { return &passwordHistoryRepo{q: t.q} }

// querier rebinds placeholders and maps errors for one DBTX.
type querier struct {
	db DBTX
	d  *DB
}

func (q querier) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.d.rebind(query), args...)
	return res, q.d.mapErr(err)
}

func (q querier) execAffected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return n, q.d.mapErr(err)
}

func (q querier) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.db.QueryContext(ctx, q.d.rebind(query), args...)
	return rows, q.d.mapErr(err)
}

// scanRow runs a single row query and scans it into dest.
func (q querier) scanRow(ctx context.Context, query string, args []any, dest ...any) error {
	return q.d.mapErr(q.db.QueryRowContext(ctx, q.d.rebind(query), args...).Scan(dest...))
}

func (d *DB) rebind(query string) string {
	if !d.dialect.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mapErr converts driver errors into store sentinels. Context cancellation
// by the caller is passed through untouched.
func (d *DB) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	case d.dialect.IsUnavailable != nil && d.dialect.IsUnavailable(err):
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	case d.dialect.IsUniqueViolation != nil && d.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
	default:
		return err
	}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}
