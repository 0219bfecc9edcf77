// services/billing-service/internal/store/sqlstore/db.sqlstore.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
)

// Dialect selects the DDL and locking clauses for a driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps the sqlx handle with the dialect it was opened with.
type DB struct {
	*sqlx.DB
	dialect Dialect
}

// Open connects and pings. SQLite is limited to one connection: every transaction then
// owns the whole database, which is how row locking is emulated there.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect := Dialect(driver)
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if dialect == SQLite {
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	return &DB{DB: conn, dialect: dialect}, nil
}

func (db *DB) Dialect() Dialect { return db.dialect }

// forUpdate is appended to SELECTs that must hold a row lock until commit.
func (db *DB) forUpdate() string {
	if db.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

type txKey struct{}

// conn returns the transaction carried in ctx, or the pool.
func (db *DB) conn(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.DB
}

// TxManager implements store.TransactionManager on top of DB.
type TxManager struct {
	db *DB
}

func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

func (tm *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	// Nested calls join the outer transaction.
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	var opts *sql.TxOptions
	if tm.db.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	tx, err := tm.db.BeginTxx(ctx, opts)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	// Ensure rollback on panic
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Inject tx into context
	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// isUniqueViolation reports a unique/primary key violation, optionally on a named constraint (PostgreSQL only).
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// classify marks lock and serialization failures as retryable so callers (and the webhook
// processor's redelivery) can try again.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return domainErr.Retryable(err)
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return domainErr.Retryable(err)
		}
	}
	return err
}

// rowErr maps sql.ErrNoRows to domain ErrNotFound and classifies everything else.
func rowErr(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", domainErr.ErrNotFound, what, id)
	}
	return classify(fmt.Errorf("db: %s fetch failed: %w", what, err))
}

// expectOne turns "no row touched" into domain ErrNotFound.
func expectOne(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v", domainErr.ErrNotFound, what, id)
	}
	return nil
}
