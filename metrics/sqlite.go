package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/capmesh/core"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	specialist TEXT NOT NULL,
	tier TEXT NOT NULL,
	confidence REAL NOT NULL,
	rejected INTEGER NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	decision_id TEXT NOT NULL,
	success INTEGER NOT NULL,
	actual_cost REAL NOT NULL,
	actual_latency_ms INTEGER NOT NULL,
	reported_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_reported ON outcomes(reported_at);
`

// SQLiteRecorder persists routing decisions and outcomes to a SQLite
// database. The zero value is not usable; construct via OpenSQLite.
type SQLiteRecorder struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite recorder in dataDir and prepares
// the schema. Pass ":memory:" as dataDir for an in-memory database, which
// tests use.
func OpenSQLite(dataDir string) (*SQLiteRecorder, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "capmesh.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing schema: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

// RecordDecision inserts one routing decision row.
func (r *SQLiteRecorder) RecordDecision(decision core.RoutingDecision) error {
	_, err := r.db.Exec(
		`INSERT INTO decisions (id, category, specialist, tier, confidence, rejected, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID,
		string(decision.Intent.Category),
		string(decision.Specialist),
		string(decision.Tier.Name),
		decision.Intent.Confidence,
		boolToInt(decision.Rejected),
		decision.Reason,
		decision.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording decision %s: %w", decision.ID, err)
	}
	return nil
}

// RecordOutcome inserts one outcome row. Outcomes for unknown decision ids
// are stored anyway; reconciliation is a reporting concern.
func (r *SQLiteRecorder) RecordOutcome(outcome Outcome) error {
	reported := outcome.ReportedAt
	if reported.IsZero() {
		reported = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO outcomes (decision_id, success, actual_cost, actual_latency_ms, reported_at)
		 VALUES (?, ?, ?, ?, ?)`,
		outcome.DecisionID,
		boolToInt(outcome.Success),
		outcome.ActualCost,
		outcome.ActualLatency.Milliseconds(),
		reported.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", outcome.DecisionID, err)
	}
	return nil
}

// Summary rolls up one calendar day (UTC) of decisions and outcomes.
func (r *SQLiteRecorder) Summary(day time.Time) (DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	summary := DailySummary{Day: start.Format("2006-01-02")}

	row := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(rejected), 0) FROM decisions WHERE created_at >= ? AND created_at < ?`,
		start, end,
	)
	if err := row.Scan(&summary.Decisions, &summary.Rejected); err != nil {
		return DailySummary{}, fmt.Errorf("summarizing decisions: %w", err)
	}

	row = r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(success), 0), COALESCE(SUM(actual_cost), 0) FROM outcomes WHERE reported_at >= ? AND reported_at < ?`,
		start, end,
	)
	if err := row.Scan(&summary.Outcomes, &summary.Successes, &summary.TotalCost); err != nil {
		return DailySummary{}, fmt.Errorf("summarizing outcomes: %w", err)
	}

	return summary, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Recorder = (*SQLiteRecorder)(nil)
