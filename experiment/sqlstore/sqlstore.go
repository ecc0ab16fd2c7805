// Package sqlstore implements experiment.Driver against database/sql,
// reusing the store/db Dialect abstraction so C1/C2/C4 persistence share
// one sqlite/postgres placeholder convention.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/hermes/experiment"
	"github.com/hrygo/hermes/store/db"
)

// SQLDriver implements experiment.Driver.
type SQLDriver struct {
	sqlDB   *sql.DB
	dialect db.Dialect
}

// New wraps an already-open *sql.DB and ensures experiment_events exists,
// with the index spec.md §6 names explicitly:
// experiment_events(experiment_id, variant_id).
func New(ctx context.Context, sqlDB *sql.DB, dialect db.Dialect) (*SQLDriver, error) {
	d := &SQLDriver{sqlDB: sqlDB, dialect: dialect}
	if err := d.migrate(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SQLDriver) ph(n int) string { return d.dialect.Placeholder(n) }

func (d *SQLDriver) migrate(ctx context.Context) error {
	_, err := d.sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS experiment_events (
		experiment_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		value REAL,
		metric_id TEXT,
		ts INTEGER NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "migrate experiment_events")
	}
	_, err = d.sqlDB.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_experiment_events_exp_variant
			ON experiment_events(experiment_id, variant_id)`)
	return errors.Wrap(err, "create experiment_events index")
}

func (d *SQLDriver) InsertEvent(ctx context.Context, e *experiment.ExperimentEvent) error {
	q := `INSERT INTO experiment_events (experiment_id, variant_id, user_id, event_type, value, metric_id, ts)
		VALUES (` + d.ph(1) + `,` + d.ph(2) + `,` + d.ph(3) + `,` + d.ph(4) + `,` + d.ph(5) + `,` + d.ph(6) + `,` + d.ph(7) + `)`
	_, err := d.sqlDB.ExecContext(ctx, q, e.ExperimentID, e.VariantID, e.UserID, string(e.EventType), e.Value, e.MetricID, e.Timestamp.Unix())
	return errors.Wrap(err, "insert experiment event")
}

func (d *SQLDriver) Events(ctx context.Context, experimentID string) ([]*experiment.ExperimentEvent, error) {
	q := `SELECT experiment_id, variant_id, user_id, event_type, value, metric_id, ts
		FROM experiment_events WHERE experiment_id = ` + d.ph(1) + ` ORDER BY ts ASC`
	rows, err := d.sqlDB.QueryContext(ctx, q, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*experiment.ExperimentEvent
	for rows.Next() {
		var e experiment.ExperimentEvent
		var eventType string
		var ts int64
		if err := rows.Scan(&e.ExperimentID, &e.VariantID, &e.UserID, &eventType, &e.Value, &e.MetricID, &ts); err != nil {
			return nil, err
		}
		e.EventType = experiment.EventType(eventType)
		e.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
