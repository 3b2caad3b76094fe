package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/opencivicdata/civic-import/internal/db"
)

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	jurisdiction_id TEXT,
	data            JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_jurisdiction ON entities(kind, jurisdiction_id);
CREATE INDEX IF NOT EXISTS idx_entities_data ON entities USING GIN (data jsonb_path_ops);

CREATE TABLE IF NOT EXISTS import_runs (
	id           BIGSERIAL PRIMARY KEY,
	jurisdiction TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	report       JSONB,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_import_runs_jurisdiction ON import_runs(jurisdiction, started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	return &postgresTx{tx: tx}, nil
}

// --- run log ---

func (s *PostgresStore) StartRun(ctx context.Context, jurisdiction string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO import_runs (jurisdiction, status, started_at) VALUES ($1, $2, $3) RETURNING id`,
		jurisdiction, RunRunning, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: start run for %s", jurisdiction)
	}
	return id, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, id int64, report map[string]any) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run report")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, completed_at = $2, report = $3 WHERE id = $4`,
		RunComplete, time.Now().UTC(), reportJSON, id,
	)
	return eris.Wrapf(err, "postgres: complete run %d", id)
}

func (s *PostgresStore) FailRun(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
		RunFailed, time.Now().UTC(), errMsg, id,
	)
	return eris.Wrapf(err, "postgres: fail run %d", id)
}

func (s *PostgresStore) GetRun(ctx context.Context, id int64) (*ImportRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, jurisdiction, status, started_at, completed_at, report, error
		 FROM import_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "postgres: run %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get run %d", id)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, jurisdiction, status, started_at, completed_at, report, error
		 FROM import_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func scanRun(row pgx.Row) (*ImportRun, error) {
	var (
		run        ImportRun
		completed  *time.Time
		reportJSON []byte
		errMsg     *string
	)
	if err := row.Scan(&run.ID, &run.Jurisdiction, &run.Status, &run.StartedAt, &completed, &reportJSON, &errMsg); err != nil {
		return nil, err
	}
	run.CompletedAt = completed
	if len(reportJSON) > 0 {
		if err := json.Unmarshal(reportJSON, &run.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run report")
		}
	}
	if errMsg != nil {
		run.Error = *errMsg
	}
	return &run, nil
}

// --- transaction ---

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return eris.Wrap(t.tx.Commit(ctx), "postgres: commit")
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback")
	}
	return nil
}

func (t *postgresTx) Insert(ctx context.Context, ent *Entity) error {
	data, err := json.Marshal(ent.Fields)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s", ent.ID)
	}
	now := time.Now().UTC()
	_, err = t.tx.Exec(ctx,
		`INSERT INTO entities (id, kind, jurisdiction_id, data, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $5)`,
		ent.ID, ent.Kind, ent.JurisdictionID, data, now,
	)
	return eris.Wrapf(err, "postgres: insert %s", ent.ID)
}

func (t *postgresTx) Update(ctx context.Context, ent *Entity) error {
	data, err := json.Marshal(ent.Fields)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s", ent.ID)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE entities SET data = $1, updated_at = $2 WHERE id = $3`,
		data, time.Now().UTC(), ent.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", ent.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: update %s: no such entity", ent.ID)
	}
	return nil
}

func (t *postgresTx) Get(ctx context.Context, id string) (*Entity, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, kind, COALESCE(jurisdiction_id, ''), data, created_at, updated_at
		 FROM entities WHERE id = $1`, id)
	ent, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get %s", id)
	}
	return ent, nil
}

func (t *postgresTx) Find(ctx context.Context, kind, jurisdiction string, spec map[string]any) ([]*Entity, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal lookup spec")
	}

	sql := `SELECT id, kind, COALESCE(jurisdiction_id, ''), data, created_at, updated_at
	        FROM entities WHERE kind = $1 AND data @> $2`
	args := []any{kind, specJSON}
	if jurisdiction != "" {
		sql += ` AND jurisdiction_id = $3`
		args = append(args, jurisdiction)
	}
	sql += ` ORDER BY id`

	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", kind)
	}
	defer rows.Close()
	return collectEntities(rows)
}

func (t *postgresTx) FindPersonsByName(ctx context.Context, jurisdiction string, names []string) ([]*Entity, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT p.id, p.kind, COALESCE(p.jurisdiction_id, ''), p.data, p.created_at, p.updated_at
		 FROM entities p
		 WHERE p.kind = 'person'
		   AND (p.data->>'name' = ANY($1)
		        OR EXISTS (
		            SELECT 1 FROM jsonb_array_elements(COALESCE(p.data->'other_names', '[]'::jsonb)) n
		            WHERE n->>'name' = ANY($1)))
		   AND EXISTS (
		       SELECT 1 FROM entities m
		       WHERE m.kind = 'membership'
		         AND m.jurisdiction_id = $2
		         AND m.data->>'person_id' = p.id)
		 ORDER BY p.id`,
		names, jurisdiction)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find persons by name")
	}
	defer rows.Close()
	return collectEntities(rows)
}

func (t *postgresTx) ChildIDs(ctx context.Context, kind, field string, parents []string) ([]string, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx,
		fmt.Sprintf(`SELECT id FROM entities WHERE kind = $1 AND data->>%s = ANY($2) ORDER BY id`,
			quoteLiteral(field)),
		kind, parents)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: child ids of %s.%s", kind, field)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan child id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: child ids")
}

func (t *postgresTx) ReferencedParents(ctx context.Context, kind, field string, parents []string) ([]string, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT data->>%s FROM entities
		             WHERE kind = $1 AND data->>%s = ANY($2) ORDER BY 1`,
			quoteLiteral(field), quoteLiteral(field)),
		kind, parents)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: referenced parents via %s.%s", kind, field)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan parent id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: referenced parents")
}

func (t *postgresTx) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM entities WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete entities")
	}
	return tag.RowsAffected(), nil
}

func scanEntity(row pgx.Row) (*Entity, error) {
	var (
		ent  Entity
		data []byte
	)
	if err := row.Scan(&ent.ID, &ent.Kind, &ent.JurisdictionID, &data, &ent.CreatedAt, &ent.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &ent.Fields); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal entity %s", ent.ID)
	}
	return &ent, nil
}

func collectEntities(rows pgx.Rows) ([]*Entity, error) {
	var ents []*Entity
	for rows.Next() {
		ent, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		ents = append(ents, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entities")
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })
	return ents, nil
}

// quoteLiteral single-quotes a JSON key for use inside a ->> expression.
// Keys come from engine-internal field names, never from input.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
