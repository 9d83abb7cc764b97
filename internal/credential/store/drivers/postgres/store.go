// Package postgres is the PostgreSQL store driver (pgx through database/sql).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/internal/credential/store/sqlrepo"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	*sqlrepo.DB
}

var _ store.Store = (*Store)(nil)

// Options tunes the connection pool. Zero values keep database/sql defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore connects to the postgres URL dsn.
func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: sqlrepo.New(db, Dialect)}, nil
}

// Dialect classifies pgx errors.
var Dialect = sqlrepo.Dialect{
	Name:     "postgres",
	Numbered: true,
	IsUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
	IsUnavailable: func(err error) bool {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// connection exceptions, insufficient resources, operator
			// intervention, serialization failure and deadlock
			return strings.HasPrefix(pgErr.Code, "08") ||
				strings.HasPrefix(pgErr.Code, "53") ||
				strings.HasPrefix(pgErr.Code, "57P") ||
				pgErr.Code == "40001" || pgErr.Code == "40P01"
		}
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) || pgconn.Timeout(err) {
			return true
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	},
}
