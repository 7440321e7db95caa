package otel

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DBConfig configures the shared SQLite database.
type DBConfig struct {
	Path string
	// BusyTimeout is how long a writer waits for the lock before failing
	// with SQLITE_BUSY. Zero keeps the driver default.
	BusyTimeout time.Duration
}

// OpenDB opens the SQLite database holding installations, hub bindings and
// the effect queue. Every statement is traced and pool statistics are
// exported as metrics.
//
// River polls its job table continuously, so per-row and session reset spans
// are dropped to keep traces readable.
func OpenDB(cfg DBConfig) (*sql.DB, error) {
	attrs := otelsql.WithAttributes(semconv.DBSystemSqlite)
	db, err := otelsql.Open("sqlite", cfg.Path, attrs,
		otelsql.WithSpanOptions(otelsql.SpanOptions{
			OmitConnResetSession: true,
			OmitRows:             true,
			DisableErrSkip:       true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}

	// One connection serialises the queue and the repository writes.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas(cfg) {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db, attrs); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}
	return db, nil
}

func pragmas(cfg DBConfig) []string {
	out := []string{
		"PRAGMA journal_mode=WAL",
		// WAL makes NORMAL durable across application crashes.
		"PRAGMA synchronous=NORMAL",
	}
	if cfg.BusyTimeout > 0 {
		out = append(out, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()))
	}
	return out
}
