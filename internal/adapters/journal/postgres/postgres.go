// Package postgres implements a Postgres-backed report cycle journal.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/misc"
	"github.com/vshulcz/zbxreporter/internal/ports"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Journal persists cycle summaries in Postgres with retryable operations.
type Journal struct {
	db *sql.DB
}

var (
	_ ports.JournalReader = (*Journal)(nil)
	_ journal.Observer    = (*Journal)(nil)
)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

// New returns a Postgres-backed journal. Call Migrate first on a fresh database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

const insertCycle = `
INSERT INTO report_cycles (clock, host, records, keys, discovery, status, processed, failed, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''));`

// Notify stores one cycle summary.
func (j *Journal) Notify(ctx context.Context, c domain.Cycle) error {
	op := func() error {
		_, err := j.db.ExecContext(ctx, insertCycle,
			c.Clock, c.Host, c.Records, c.Keys, string(c.Discovery), string(c.Status),
			c.Processed, c.Failed, c.Error)
		return err
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

const selectRecent = `
SELECT clock, host, records, keys, discovery, status, processed, failed, COALESCE(error, '')
FROM report_cycles
ORDER BY id DESC
LIMIT $1;`

// Recent returns up to limit cycles, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Cycle, error) {
	if limit <= 0 {
		return nil, nil
	}
	return misc.RetryValue(ctx, misc.DefaultBackoff, isRetryablePG, func() ([]domain.Cycle, error) {
		return j.queryRecent(ctx, limit)
	})
}

func (j *Journal) queryRecent(ctx context.Context, limit int) ([]domain.Cycle, error) {
	rows, err := j.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	cycles := make([]domain.Cycle, 0, limit)
	for rows.Next() {
		var (
			c                 domain.Cycle
			discovery, status string
		)
		if err := rows.Scan(&c.Clock, &c.Host, &c.Records, &c.Keys, &discovery, &status,
			&c.Processed, &c.Failed, &c.Error); err != nil {
			return nil, err
		}
		c.Discovery = domain.DiscoveryOutcome(discovery)
		c.Status = domain.CycleStatus(status)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Ping verifies the database connection using a short-lived context.
func (j *Journal) Ping(ctx context.Context) error {
	if j.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return j.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	// connection exception and transaction rollback classes
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
