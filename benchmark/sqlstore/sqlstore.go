// Package sqlstore implements benchmark.Driver against database/sql,
// sharing the Dialect abstraction from store/db so the same sqlite/postgres
// choice made for C1 extends to C2's result history without a second
// dialect concept.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/internal/herrors"
	"github.com/hrygo/hermes/store/db"
)

// SQLDriver implements benchmark.Driver.
type SQLDriver struct {
	sqlDB   *sql.DB
	dialect db.Dialect
}

// New wraps an already-open *sql.DB (the same one used for store/db) and
// ensures the benchmark_results table exists.
func New(ctx context.Context, sqlDB *sql.DB, dialect db.Dialect) (*SQLDriver, error) {
	d := &SQLDriver{sqlDB: sqlDB, dialect: dialect}
	if err := d.migrate(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SQLDriver) ph(n int) string { return d.dialect.Placeholder(n) }

func (d *SQLDriver) migrate(ctx context.Context) error {
	_, err := d.sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS benchmark_results (
		id TEXT PRIMARY KEY,
		prompt_id TEXT NOT NULL,
		version TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		suite_id TEXT NOT NULL,
		overall REAL NOT NULL,
		dimensions TEXT,
		model_id TEXT,
		model_version TEXT,
		execution_time_ms INTEGER,
		token_usage TEXT,
		baseline REAL,
		delta REAL,
		gate_passed INTEGER,
		gate_threshold REAL,
		is_regression INTEGER,
		executed_at INTEGER NOT NULL,
		executor_id TEXT,
		environment TEXT,
		error TEXT
	)`)
	if err != nil {
		return errors.Wrap(err, "migrate benchmark_results")
	}
	_, err = d.sqlDB.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_benchmark_results_prompt_time
			ON benchmark_results(prompt_id, executed_at DESC)`)
	return errors.Wrap(err, "create benchmark index")
}

func (d *SQLDriver) InsertResult(ctx context.Context, r *benchmark.Result) error {
	dims, err := json.Marshal(r.Dimensions)
	if err != nil {
		return err
	}
	usage, err := json.Marshal(r.TokenUsage)
	if err != nil {
		return err
	}
	q := `INSERT INTO benchmark_results
		(id, prompt_id, version, fingerprint, suite_id, overall, dimensions, model_id, model_version,
		 execution_time_ms, token_usage, baseline, delta, gate_passed, gate_threshold, is_regression,
		 executed_at, executor_id, environment, error)
		VALUES (` + phRange(d, 20) + `)`
	_, err = d.sqlDB.ExecContext(ctx, q,
		r.ID, r.PromptID, r.Version, r.Fingerprint, r.SuiteID, r.Overall, string(dims), r.ModelID, r.ModelVersion,
		r.ExecutionTimeMS, string(usage), nullFloat(r.Baseline), nullFloat(r.Delta), boolToInt(r.GatePassed), r.GateThreshold, boolToInt(r.IsRegression),
		r.ExecutedAt.Unix(), r.ExecutorID, r.Environment, r.Error,
	)
	return errors.Wrap(err, "insert benchmark result")
}

func phRange(d *SQLDriver, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += d.ph(i + 1)
	}
	return out
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const resultColumns = `id, prompt_id, version, fingerprint, suite_id, overall, dimensions, model_id, model_version,
	execution_time_ms, token_usage, baseline, delta, gate_passed, gate_threshold, is_regression,
	executed_at, executor_id, environment, error`

func scanResult(row interface{ Scan(...any) error }) (*benchmark.Result, error) {
	var r benchmark.Result
	var dims, usage string
	var baseline, delta sql.NullFloat64
	var gatePassed, isRegression int
	var executedAt int64
	var errText sql.NullString

	err := row.Scan(
		&r.ID, &r.PromptID, &r.Version, &r.Fingerprint, &r.SuiteID, &r.Overall, &dims, &r.ModelID, &r.ModelVersion,
		&r.ExecutionTimeMS, &usage, &baseline, &delta, &gatePassed, &r.GateThreshold, &isRegression,
		&executedAt, &r.ExecutorID, &r.Environment, &errText,
	)
	if err != nil {
		return nil, err
	}
	r.ExecutedAt = time.Unix(executedAt, 0).UTC()
	r.GatePassed = gatePassed != 0
	r.IsRegression = isRegression != 0
	r.Error = errText.String
	if baseline.Valid {
		b := baseline.Float64
		r.Baseline = &b
	}
	if delta.Valid {
		dl := delta.Float64
		r.Delta = &dl
	}
	if dims != "" {
		if err := json.Unmarshal([]byte(dims), &r.Dimensions); err != nil {
			return nil, err
		}
	}
	if usage != "" {
		if err := json.Unmarshal([]byte(usage), &r.TokenUsage); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (d *SQLDriver) query(ctx context.Context, q string, args ...any) ([]*benchmark.Result, error) {
	rows, err := d.sqlDB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*benchmark.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *SQLDriver) RecentResults(ctx context.Context, promptID string, n int, excludeSimulation bool) ([]*benchmark.Result, error) {
	q := `SELECT ` + resultColumns + ` FROM benchmark_results WHERE prompt_id = ` + d.ph(1)
	args := []any{promptID}
	if excludeSimulation {
		q += ` AND environment != 'simulation'`
	}
	q += ` ORDER BY executed_at DESC LIMIT ` + d.ph(2)
	args = append(args, n)
	return d.query(ctx, q, args...)
}

func (d *SQLDriver) History(ctx context.Context, promptID string, limit int) ([]*benchmark.Result, error) {
	return d.query(ctx,
		`SELECT `+resultColumns+` FROM benchmark_results WHERE prompt_id = `+d.ph(1)+` ORDER BY executed_at DESC LIMIT `+d.ph(2),
		promptID, limit)
}

func (d *SQLDriver) ResultsSince(ctx context.Context, promptID string, since int64) ([]*benchmark.Result, error) {
	return d.query(ctx,
		`SELECT `+resultColumns+` FROM benchmark_results WHERE prompt_id = `+d.ph(1)+` AND executed_at >= `+d.ph(2)+` ORDER BY executed_at ASC`,
		promptID, since)
}

func (d *SQLDriver) LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error) {
	rows, err := d.RecentResults(ctx, promptID, 1, false)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, herrors.NotFoundf("no benchmark result for prompt %s", promptID)
	}
	return rows[0], nil
}
