package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// single-writer runs; the Postgres backend is the shared deployment path.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Batch transactions assume a single connection; SQLite serializes
	// writers anyway.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	jurisdiction_id TEXT,
	data            TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_jurisdiction ON entities(kind, jurisdiction_id);

CREATE TABLE IF NOT EXISTS import_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	jurisdiction TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	report       TEXT,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_import_runs_jurisdiction ON import_runs(jurisdiction, started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	return &sqliteTx{tx: tx}, nil
}

// --- run log ---

func (s *SQLiteStore) StartRun(ctx context.Context, jurisdiction string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (jurisdiction, status, started_at) VALUES (?, ?, ?)`,
		jurisdiction, RunRunning, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start run for %s", jurisdiction)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: run id")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id int64, report map[string]any) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run report")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, completed_at = ?, report = ? WHERE id = ?`,
		RunComplete, formatTime(time.Now().UTC()), string(reportJSON), id,
	)
	return eris.Wrapf(err, "sqlite: complete run %d", id)
}

func (s *SQLiteStore) FailRun(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		RunFailed, formatTime(time.Now().UTC()), errMsg, id,
	)
	return eris.Wrapf(err, "sqlite: fail run %d", id)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, jurisdiction, status, started_at, completed_at, report, error
		 FROM import_runs WHERE id = ?`, id)
	run, err := scanSQLiteRun(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "sqlite: run %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %d", id)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, jurisdiction, status, started_at, completed_at, report, error
		 FROM import_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		run, err := scanSQLiteRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func scanSQLiteRun(scan func(...any) error) (*ImportRun, error) {
	var (
		run        ImportRun
		started    string
		completed  sql.NullString
		reportJSON sql.NullString
		errMsg     sql.NullString
	)
	if err := scan(&run.ID, &run.Jurisdiction, &run.Status, &started, &completed, &reportJSON, &errMsg); err != nil {
		return nil, err
	}
	t, err := parseTime(started)
	if err != nil {
		return nil, err
	}
	run.StartedAt = t
	if completed.Valid {
		ct, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &ct
	}
	if reportJSON.Valid && reportJSON.String != "" {
		if err := json.Unmarshal([]byte(reportJSON.String), &run.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run report")
		}
	}
	run.Error = errMsg.String
	return &run, nil
}

// --- transaction ---

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit(context.Context) error {
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *sqliteTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if err != nil && !eris.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback")
	}
	return nil
}

func (t *sqliteTx) Insert(ctx context.Context, ent *Entity) error {
	data, err := json.Marshal(ent.Fields)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", ent.ID)
	}
	now := formatTime(time.Now().UTC())
	var jur any
	if ent.JurisdictionID != "" {
		jur = ent.JurisdictionID
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO entities (id, kind, jurisdiction_id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ent.ID, ent.Kind, jur, string(data), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert %s", ent.ID)
}

func (t *sqliteTx) Update(ctx context.Context, ent *Entity) error {
	data, err := json.Marshal(ent.Fields)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", ent.ID)
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE entities SET data = ?, updated_at = ? WHERE id = ?`,
		string(data), formatTime(time.Now().UTC()), ent.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s", ent.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: update %s: no such entity", ent.ID)
	}
	return nil
}

func (t *sqliteTx) Get(ctx context.Context, id string) (*Entity, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, kind, COALESCE(jurisdiction_id, ''), data, created_at, updated_at
		 FROM entities WHERE id = ?`, id)
	ent, err := scanSQLiteEntity(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get %s", id)
	}
	return ent, nil
}

func (t *sqliteTx) Find(ctx context.Context, kind, jurisdiction string, spec map[string]any) ([]*Entity, error) {
	where := []string{"kind = ?"}
	args := []any{kind}
	if jurisdiction != "" {
		where = append(where, "jurisdiction_id = ?")
		args = append(args, jurisdiction)
	}

	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := "json_extract(data, '$." + k + "')"
		switch v := spec[k].(type) {
		case nil:
			where = append(where, path+" IS NULL")
		case bool:
			where = append(where, path+" = ?")
			if v {
				args = append(args, 1)
			} else {
				args = append(args, 0)
			}
		default:
			where = append(where, path+" = ?")
			args = append(args, v)
		}
	}

	query := `SELECT id, kind, COALESCE(jurisdiction_id, ''), data, created_at, updated_at
	          FROM entities WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", kind)
	}
	defer rows.Close()
	return collectSQLiteEntities(rows)
}

func (t *sqliteTx) FindPersonsByName(ctx context.Context, jurisdiction string, names []string) ([]*Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}
	in := placeholders(len(names))
	query := fmt.Sprintf(
		`SELECT p.id, p.kind, COALESCE(p.jurisdiction_id, ''), p.data, p.created_at, p.updated_at
		 FROM entities p
		 WHERE p.kind = 'person'
		   AND (json_extract(p.data, '$.name') IN (%s)
		        OR EXISTS (
		            SELECT 1 FROM json_each(COALESCE(json_extract(p.data, '$.other_names'), '[]')) n
		            WHERE json_extract(n.value, '$.name') IN (%s)))
		   AND EXISTS (
		       SELECT 1 FROM entities m
		       WHERE m.kind = 'membership'
		         AND m.jurisdiction_id = ?
		         AND json_extract(m.data, '$.person_id') = p.id)
		 ORDER BY p.id`, in, in)

	args := make([]any, 0, 2*len(names)+1)
	for _, n := range names {
		args = append(args, n)
	}
	for _, n := range names {
		args = append(args, n)
	}
	args = append(args, jurisdiction)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find persons by name")
	}
	defer rows.Close()
	return collectSQLiteEntities(rows)
}

func (t *sqliteTx) ChildIDs(ctx context.Context, kind, field string, parents []string) ([]string, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT id FROM entities WHERE kind = ? AND json_extract(data, '$.%s') IN (%s) ORDER BY id`,
		field, placeholders(len(parents)))
	args := make([]any, 0, len(parents)+1)
	args = append(args, kind)
	for _, p := range parents {
		args = append(args, p)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: child ids of %s.%s", kind, field)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan child id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: child ids")
}

func (t *sqliteTx) ReferencedParents(ctx context.Context, kind, field string, parents []string) ([]string, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT DISTINCT json_extract(data, '$.%s') FROM entities
		 WHERE kind = ? AND json_extract(data, '$.%s') IN (%s) ORDER BY 1`,
		field, field, placeholders(len(parents)))
	args := make([]any, 0, len(parents)+1)
	args = append(args, kind)
	for _, p := range parents {
		args = append(args, p)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: referenced parents via %s.%s", kind, field)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parent id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: referenced parents")
}

func (t *sqliteTx) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`DELETE FROM entities WHERE id IN (%s)`, placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete entities")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func scanSQLiteEntity(scan func(...any) error) (*Entity, error) {
	var (
		ent     Entity
		data    string
		created string
		updated string
	)
	if err := scan(&ent.ID, &ent.Kind, &ent.JurisdictionID, &data, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &ent.Fields); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal entity %s", ent.ID)
	}
	var err error
	if ent.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if ent.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &ent, nil
}

func collectSQLiteEntities(rows *sql.Rows) ([]*Entity, error) {
	var ents []*Entity
	for rows.Next() {
		ent, err := scanSQLiteEntity(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		ents = append(ents, ent)
	}
	return ents, eris.Wrap(rows.Err(), "sqlite: iterate entities")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t, nil
}
