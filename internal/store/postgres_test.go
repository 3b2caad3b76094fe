package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	// Replace global logger with a no-op to avoid nil pointer panics in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entities").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StartRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO import_runs").
		WithArgs("ocd-jurisdiction/country:us/state:nc/government", RunRunning, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := st.StartRun(context.Background(), "ocd-jurisdiction/country:us/state:nc/government")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE import_runs SET status").
		WithArgs(RunComplete, pgxmock.AnyArg(), pgxmock.AnyArg(), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.CompleteRun(context.Background(), 7, map[string]any{
		"person": map[string]any{"insert": 2},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FailRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE import_runs SET status").
		WithArgs(RunFailed, pgxmock.AnyArg(), "bill batch failed", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.FailRun(context.Background(), 7, "bill batch failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockStore(t)

	started := time.Now().UTC()
	completed := started.Add(time.Minute)
	mock.ExpectQuery("SELECT id, jurisdiction, status").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "jurisdiction", "status", "started_at", "completed_at", "report", "error"},
		).AddRow(int64(7), "ocd-jurisdiction/x", RunComplete, started, &completed, []byte(`{"person":{"insert":2}}`), (*string)(nil)))

	run, err := st.GetRun(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, RunComplete, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, map[string]any{"person": map[string]any{"insert": float64(2)}}, run.Report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, jurisdiction, status").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "jurisdiction", "status", "started_at", "completed_at", "report", "error"},
		))

	_, err := st.GetRun(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPostgres_ListRuns(t *testing.T) {
	st, mock := newMockStore(t)

	started := time.Now().UTC()
	mock.ExpectQuery("SELECT id, jurisdiction, status").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "jurisdiction", "status", "started_at", "completed_at", "report", "error"},
		).
			AddRow(int64(2), "ocd-jurisdiction/x", RunRunning, started, (*time.Time)(nil), []byte(nil), (*string)(nil)).
			AddRow(int64(1), "ocd-jurisdiction/x", RunFailed, started.Add(-time.Hour), &started, []byte(nil), ptr("boom")))

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(2), runs[0].ID)
	assert.Equal(t, "boom", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTx_Insert(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO entities").
		WithArgs("ocd-person/1", "person", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	err = tx.Insert(ctx, &Entity{
		ID:     "ocd-person/1",
		Kind:   "person",
		Fields: map[string]any{"name": "Wanda"},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTx_UpdateMissingEntity(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE entities SET data").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "ocd-person/missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	err = tx.Update(ctx, &Entity{ID: "ocd-person/missing", Kind: "person", Fields: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such entity")
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTx_GetMissingIsNil(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, kind").
		WithArgs("ocd-person/none").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "kind", "jurisdiction_id", "data", "created_at", "updated_at"},
		))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	ent, err := tx.Get(ctx, "ocd-person/none")
	require.NoError(t, err)
	assert.Nil(t, ent)
	require.NoError(t, tx.Rollback(ctx))
}

func TestPostgresTx_FindScoped(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM entities WHERE kind = .* AND data @>").
		WithArgs("organization", []byte(`{"classification":"lower","name":"House"}`), "ocd-jurisdiction/x").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "kind", "jurisdiction_id", "data", "created_at", "updated_at"},
		).AddRow("ocd-organization/1", "organization", "ocd-jurisdiction/x",
			[]byte(`{"name":"House","classification":"lower"}`), now, now))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	ents, err := tx.Find(ctx, "organization", "ocd-jurisdiction/x",
		map[string]any{"name": "House", "classification": "lower"})
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "ocd-organization/1", ents[0].ID)
	assert.Equal(t, "House", ents[0].Fields["name"])
	require.NoError(t, tx.Rollback(ctx))
}

func TestPostgresTx_ShortCircuits(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	// Empty inputs never reach the database.
	ids, err := tx.ChildIDs(ctx, "vote_event", "bill_id", nil)
	require.NoError(t, err)
	assert.Nil(t, ids)

	parents, err := tx.ReferencedParents(ctx, "membership", "person_id", nil)
	require.NoError(t, err)
	assert.Nil(t, parents)

	n, err := tx.Delete(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
