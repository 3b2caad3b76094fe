package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

func kindIndex(t *testing.T, rounds [][]string) map[string]int {
	t.Helper()
	idx := make(map[string]int)
	for i, round := range rounds {
		for _, k := range round {
			idx[k] = i
		}
	}
	return idx
}

func TestDefaultGraphOrder(t *testing.T) {
	rounds, err := DefaultGraph().Sort()
	require.NoError(t, err)

	idx := kindIndex(t, rounds)
	assert.Len(t, idx, len(model.Kinds()))

	// Every referencing kind merges strictly after its referents.
	assert.Less(t, idx[model.KindJurisdiction], idx[model.KindOrganization])
	assert.Less(t, idx[model.KindOrganization], idx[model.KindPost])
	assert.Less(t, idx[model.KindPost], idx[model.KindMembership])
	assert.Less(t, idx[model.KindPerson], idx[model.KindMembership])
	assert.Less(t, idx[model.KindOrganization], idx[model.KindBill])
	assert.Less(t, idx[model.KindBill], idx[model.KindVoteEvent])
	assert.Less(t, idx[model.KindVoteEvent], idx[model.KindEvent])
	assert.Less(t, idx[model.KindEvent], idx[model.KindDisclosure])
}

func TestRunner_FullRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	jur := &model.Jurisdiction{
		Base:           model.Base{ID: "jur", Type: model.KindJurisdiction},
		Name:           "North Carolina",
		JurisdictionID: testJur,
		Classification: "government",
	}
	b := bill("b1", "hb1", "2021", model.ConcreteRef("o1"))
	batches := map[string][]model.Record{
		model.KindJurisdiction: {jur},
		model.KindOrganization: {org("o1", "House", "lower")},
		model.KindPerson:       {person("p1", "Rocky Balboa", "")},
		model.KindMembership:   {membership("m1", "p1", "o1")},
		model.KindBill:         {b},
		model.KindVoteEvent: {
			vote("v1", "passage", "2021-01-05", "2021", model.ConcreteRef("o1"), model.ConcreteRef("b1")),
		},
	}

	reports, err := NewRunner(st, testJur).Run(ctx, batches)
	require.NoError(t, err)

	for _, kind := range []string{
		model.KindJurisdiction, model.KindOrganization, model.KindPerson,
		model.KindMembership, model.KindBill, model.KindVoteEvent,
	} {
		require.Contains(t, reports, kind)
		assert.Equal(t, 1, reports[kind].Insert, kind)
	}
	// Kinds with no candidates still report.
	require.Contains(t, reports, model.KindEvent)
	assert.Zero(t, reports[model.KindEvent].Insert)

	// The run log records completion with per-kind counts.
	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunComplete, runs[0].Status)
	assert.Equal(t, testJur, runs[0].Jurisdiction)
	billCounts, ok := runs[0].Report[model.KindBill].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, billCounts["insert"])

	// Re-running the same batches is pure noops.
	b2 := bill("b1", "hb1", "2021", model.ConcreteRef("o1"))
	batches[model.KindBill] = []model.Record{b2}
	reports, err = NewRunner(st, testJur).Run(ctx, batches)
	require.NoError(t, err)
	assert.Equal(t, 1, reports[model.KindBill].Noop)
	assert.Zero(t, reports[model.KindBill].Insert)
}

func TestRunner_UnknownKindRejectedUpfront(t *testing.T) {
	st := newTestStore(t)

	_, err := NewRunner(st, testJur).Run(context.Background(), map[string][]model.Record{
		"committee_report": {},
	})
	require.Error(t, err)

	// Nothing ran, nothing was logged.
	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunner_SkippedKindLeavesChildrenAlone(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := NewRunner(st, testJur).Run(ctx, map[string][]model.Record{
		model.KindOrganization: {org("o1", "House", "lower")},
		model.KindBill:         {bill("b1", "HB 1", "2021", model.ConcreteRef("o1"))},
		model.KindVoteEvent: {
			vote("v1", "passage", "2021-01-05", "2021", model.ConcreteRef("o1"), model.ConcreteRef("b1")),
		},
	})
	require.NoError(t, err)

	// Reprocessing the bill with vote events deliberately excluded must not
	// run stale-vote cleanup against it.
	runner := NewRunner(st, testJur)
	runner.SkipKinds(model.KindVoteEvent)
	reports, err := runner.Run(ctx, map[string][]model.Record{
		model.KindOrganization: {org("o1", "House", "lower")},
		model.KindBill:         {bill("b1", "HB 1", "2021", model.ConcreteRef("o1"))},
	})
	require.NoError(t, err)
	assert.NotContains(t, reports, model.KindVoteEvent)
	assert.Len(t, findEntities(t, st, model.KindVoteEvent, testJur, map[string]any{}), 1)

	// Absent-but-not-skipped kinds still clean up.
	_, err = NewRunner(st, testJur).Run(ctx, map[string][]model.Record{
		model.KindOrganization: {org("o1", "House", "lower")},
		model.KindBill:         {bill("b1", "HB 1", "2021", model.ConcreteRef("o1"))},
	})
	require.NoError(t, err)
	assert.Empty(t, findEntities(t, st, model.KindVoteEvent, testJur, map[string]any{}))
}

func TestRunner_FailedBatchAbortsDependents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// The bill references an organization no batch provides, so the bill
	// batch fails after organizations have committed.
	batches := map[string][]model.Record{
		model.KindOrganization: {org("o1", "House", "lower")},
		model.KindBill: {
			bill("b1", "HB 1", "2021", model.ConcreteRef("never-scraped")),
		},
		model.KindVoteEvent: {
			vote("v1", "passage", "2021-01-05", "2021", model.ConcreteRef("o1"), model.ConcreteRef("b1")),
		},
	}

	reports, err := NewRunner(st, testJur).Run(ctx, batches)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	// The committed organization batch stays; dependents never ran.
	require.Contains(t, reports, model.KindOrganization)
	assert.NotContains(t, reports, model.KindBill)
	assert.NotContains(t, reports, model.KindVoteEvent)
	assert.Len(t, findEntities(t, st, model.KindOrganization, testJur, map[string]any{}), 1)
	assert.Empty(t, findEntities(t, st, model.KindBill, testJur, map[string]any{}))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "bill batch failed")
}
