package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/hermes/internal/herrors"
	"github.com/hrygo/hermes/store"
)

// SQLDriver implements store.Driver against database/sql, for either
// sqlite or postgres depending on the Dialect it is constructed with.
// Grounded on store/db/{postgres,sqlite} in the teacher repo (see the
// package doc comment for why the logic is unified here).
type SQLDriver struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already-open *sql.DB with the matching Dialect.
// store/db/sqlite.Open and store/db/postgres.Open open the database and call
// New (and Migrate) themselves; callers that open their own *sql.DB pass it
// here directly.
func New(sqlDB *sql.DB, dialect Dialect) *SQLDriver {
	return &SQLDriver{db: sqlDB, dialect: dialect}
}

// Migrate creates the schema if it does not already exist. Column types
// are kept to the lowest common denominator (TEXT/INTEGER/REAL) so the
// same DDL works on both sqlite and postgres, matching spec.md §6's
// "relational schema with tables matching §3 entities" without
// prescribing a specific engine.
func (d *SQLDriver) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prompts (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			category TEXT,
			tags TEXT,
			content TEXT NOT NULL,
			variables TEXT,
			metadata TEXT,
			version TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			state TEXT NOT NULL,
			last_deploy_at INTEGER,
			owner_id TEXT,
			owner_kind TEXT,
			team_id TEXT,
			visibility TEXT,
			last_benchmark_score REAL,
			last_benchmark_at INTEGER,
			external_source_path TEXT,
			external_source_commit TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prompt_versions (
			prompt_id TEXT NOT NULL,
			version TEXT NOT NULL,
			content TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			diff TEXT,
			change_summary TEXT,
			author_id TEXT,
			variables TEXT,
			metadata TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (prompt_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prompt_versions_created
			ON prompt_versions(prompt_id, created_at DESC)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

func join(ss []string) string { return strings.Join(ss, ",") }

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON[T any](s string, out *T) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func (d *SQLDriver) ph(n int) string { return d.dialect.Placeholder(n) }

func (d *SQLDriver) InsertPrompt(ctx context.Context, p *store.Prompt, v *store.PromptVersion) error {
	tags, err := encodeJSON(p.Tags)
	if err != nil {
		return err
	}
	vars, err := encodeJSON(p.Variables)
	if err != nil {
		return err
	}
	meta, err := encodeJSON(p.Metadata)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO prompts
		(id, slug, name, kind, category, tags, content, variables, metadata,
		 version, fingerprint, state, owner_id, owner_kind, team_id, visibility,
		 created_at, updated_at)
		VALUES (` + join(phRange(d, 18)) + `)`
	_, err = tx.ExecContext(ctx, q,
		p.ID, p.Slug, p.Name, string(p.Kind), p.Category, tags, p.Content, vars, meta,
		p.Version, p.Fingerprint, string(p.State), p.OwnerID, string(p.OwnerKind), p.TeamID, string(p.Visibility),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "insert prompt")
	}

	if err := insertVersion(ctx, tx, d, v); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit insert prompt")
}

func phRange(d *SQLDriver, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = d.ph(i + 1)
	}
	return out
}

func insertVersion(ctx context.Context, tx *sql.Tx, d *SQLDriver, v *store.PromptVersion) error {
	vars, err := encodeJSON(v.Variables)
	if err != nil {
		return err
	}
	meta, err := encodeJSON(v.Metadata)
	if err != nil {
		return err
	}
	q := `INSERT INTO prompt_versions
		(prompt_id, version, content, fingerprint, diff, change_summary, author_id, variables, metadata, created_at)
		VALUES (` + join(phRange(d, 10)) + `)`
	_, err = tx.ExecContext(ctx, q,
		v.PromptID, v.Version, v.Content, v.Fingerprint, v.Diff, v.ChangeSummary, v.AuthorID, vars, meta, v.CreatedAt.Unix(),
	)
	return errors.Wrap(err, "insert prompt version")
}

const promptColumns = `id, slug, name, kind, category, tags, content, variables, metadata,
	version, fingerprint, state, last_deploy_at, owner_id, owner_kind, team_id, visibility,
	last_benchmark_score, last_benchmark_at, external_source_path, external_source_commit,
	created_at, updated_at`

func scanPrompt(row interface{ Scan(...any) error }) (*store.Prompt, error) {
	var p store.Prompt
	var tags, vars, meta string
	var lastDeployAt, lastBenchmarkAt sql.NullInt64
	var lastBenchmarkScore sql.NullFloat64
	var kind, state, ownerKind, visibility string
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &kind, &p.Category, &tags, &p.Content, &vars, &meta,
		&p.Version, &p.Fingerprint, &state, &lastDeployAt, &p.OwnerID, &ownerKind, &p.TeamID, &visibility,
		&lastBenchmarkScore, &lastBenchmarkAt, &p.ExternalSourcePath, &p.ExternalSourceCommit,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Kind = store.Kind(kind)
	p.State = store.State(state)
	p.OwnerKind = store.OwnerKind(ownerKind)
	p.Visibility = store.Visibility(visibility)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if lastDeployAt.Valid {
		t := time.Unix(lastDeployAt.Int64, 0).UTC()
		p.LastDeployAt = &t
	}
	if lastBenchmarkAt.Valid {
		t := time.Unix(lastBenchmarkAt.Int64, 0).UTC()
		p.LastBenchmarkAt = &t
	}
	if lastBenchmarkScore.Valid {
		s := lastBenchmarkScore.Float64
		p.LastBenchmarkScore = &s
	}
	if err := decodeJSON(tags, &p.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON(vars, &p.Variables); err != nil {
		return nil, err
	}
	if err := decodeJSON(meta, &p.Metadata); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *SQLDriver) GetPromptByID(ctx context.Context, id string) (*store.Prompt, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = `+d.ph(1), id)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, herrors.NotFoundf("prompt %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get prompt by id")
	}
	return p, nil
}

func (d *SQLDriver) GetPromptBySlug(ctx context.Context, slug string) (*store.Prompt, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+promptColumns+` FROM prompts WHERE slug = `+d.ph(1), slug)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, herrors.NotFoundf("prompt with slug %s not found", slug)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get prompt by slug")
	}
	return p, nil
}

func (d *SQLDriver) GetVersion(ctx context.Context, promptID, version string) (*store.PromptVersion, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT prompt_id, version, content, fingerprint, diff, change_summary, author_id, variables, metadata, created_at
		 FROM prompt_versions WHERE prompt_id = `+d.ph(1)+` AND version = `+d.ph(2),
		promptID, version)

	var v store.PromptVersion
	var diff, changeSummary, authorID sql.NullString
	var vars, meta string
	var createdAt int64
	err := row.Scan(&v.PromptID, &v.Version, &v.Content, &v.Fingerprint, &diff, &changeSummary, &authorID, &vars, &meta, &createdAt)
	if err == sql.ErrNoRows {
		return nil, herrors.NotFoundf("version %s of prompt %s not found", version, promptID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get version")
	}
	v.Diff = diff.String
	v.ChangeSummary = changeSummary.String
	v.AuthorID = authorID.String
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := decodeJSON(vars, &v.Variables); err != nil {
		return nil, err
	}
	if err := decodeJSON(meta, &v.Metadata); err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *SQLDriver) ListVersions(ctx context.Context, promptID string, limit, offset int) ([]*store.PromptVersion, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT prompt_id, version, content, fingerprint, diff, change_summary, author_id, variables, metadata, created_at
		 FROM prompt_versions WHERE prompt_id = `+d.ph(1)+`
		 ORDER BY created_at DESC LIMIT `+d.ph(2)+` OFFSET `+d.ph(3),
		promptID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list versions")
	}
	defer rows.Close()

	var out []*store.PromptVersion
	for rows.Next() {
		var v store.PromptVersion
		var diff, changeSummary, authorID sql.NullString
		var vars, meta string
		var createdAt int64
		if err := rows.Scan(&v.PromptID, &v.Version, &v.Content, &v.Fingerprint, &diff, &changeSummary, &authorID, &vars, &meta, &createdAt); err != nil {
			return nil, err
		}
		v.Diff = diff.String
		v.ChangeSummary = changeSummary.String
		v.AuthorID = authorID.String
		v.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := decodeJSON(vars, &v.Variables); err != nil {
			return nil, err
		}
		if err := decodeJSON(meta, &v.Metadata); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (d *SQLDriver) List(ctx context.Context, filter store.ListFilter) (store.ListResult, error) {
	where := []string{"1=1"}
	args := []any{}
	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, cond+d.ph(len(args)))
	}
	if filter.Kind != nil {
		add("kind = ", string(*filter.Kind))
	}
	if filter.State != nil {
		add("state = ", string(*filter.State))
	}
	if filter.Category != "" {
		add("category = ", filter.Category)
	}
	if filter.OwnerID != "" {
		add("owner_id = ", filter.OwnerID)
	}
	if filter.TeamID != "" {
		add("team_id = ", filter.TeamID)
	}
	if filter.Visibility != nil {
		add("visibility = ", string(*filter.Visibility))
	}
	if filter.TextSearch != "" {
		args = append(args, "%"+filter.TextSearch+"%")
		where = append(where, "(name LIKE "+d.ph(len(args))+" OR content LIKE "+d.ph(len(args))+")")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countRow := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompts WHERE `+whereClause, args...)
	if err := countRow.Scan(&total); err != nil {
		return store.ListResult{}, errors.Wrap(err, "count prompts")
	}

	limitArgs := append(append([]any{}, args...), filter.Limit, filter.Offset)
	q := `SELECT ` + promptColumns + ` FROM prompts WHERE ` + whereClause +
		` ORDER BY updated_at DESC LIMIT ` + d.ph(len(args)+1) + ` OFFSET ` + d.ph(len(args)+2)
	rows, err := d.db.QueryContext(ctx, q, limitArgs...)
	if err != nil {
		return store.ListResult{}, errors.Wrap(err, "list prompts")
	}
	defer rows.Close()

	var items []*store.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return store.ListResult{}, err
		}
		items = append(items, p)
	}
	return store.ListResult{Items: items, Total: total}, rows.Err()
}

func (d *SQLDriver) UpdatePromptHead(ctx context.Context, p *store.Prompt, newVersion *store.PromptVersion) error {
	tags, err := encodeJSON(p.Tags)
	if err != nil {
		return err
	}
	vars, err := encodeJSON(p.Variables)
	if err != nil {
		return err
	}
	meta, err := encodeJSON(p.Metadata)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	q := `UPDATE prompts SET
		name=` + d.ph(1) + `, category=` + d.ph(2) + `, tags=` + d.ph(3) + `, content=` + d.ph(4) +
		`, variables=` + d.ph(5) + `, metadata=` + d.ph(6) + `, version=` + d.ph(7) +
		`, fingerprint=` + d.ph(8) + `, state=` + d.ph(9) + `, last_deploy_at=` + d.ph(10) +
		`, visibility=` + d.ph(11) + `, updated_at=` + d.ph(12) +
		` WHERE id=` + d.ph(13)
	_, err = tx.ExecContext(ctx, q,
		p.Name, p.Category, tags, p.Content, vars, meta, p.Version, p.Fingerprint,
		string(p.State), nullableTime(p.LastDeployAt), string(p.Visibility), p.UpdatedAt.Unix(), p.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update prompt head")
	}

	if newVersion != nil {
		if err := insertVersion(ctx, tx, d, newVersion); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit update prompt head")
}

func (d *SQLDriver) DeletePrompt(ctx context.Context, id string, hard bool) error {
	if !hard {
		_, err := d.db.ExecContext(ctx, `UPDATE prompts SET state=`+d.ph(1)+` WHERE id=`+d.ph(2),
			string(store.StateArchived), id)
		return errors.Wrap(err, "archive prompt")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM prompt_versions WHERE prompt_id=`+d.ph(1), id); err != nil {
		return errors.Wrap(err, "cascade delete versions")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM prompts WHERE id=`+d.ph(1), id); err != nil {
		return errors.Wrap(err, "delete prompt")
	}
	return errors.Wrap(tx.Commit(), "commit hard delete")
}

func (d *SQLDriver) UpdateBenchmarkCache(ctx context.Context, promptID string, score float64, at int64) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE prompts SET last_benchmark_score=`+d.ph(1)+`, last_benchmark_at=`+d.ph(2)+` WHERE id=`+d.ph(3),
		score, at, promptID)
	return errors.Wrap(err, "update benchmark cache")
}
