package merge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/graph"
	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// DefaultGraph returns the dependency graph over the built-in entity kinds:
// an edge A -> B means B may reference A, so A merges first.
func DefaultGraph() *graph.Graph {
	g := graph.New()
	for _, k := range model.Kinds() {
		g.AddNode(k)
	}
	edges := [][2]string{
		{model.KindJurisdiction, model.KindOrganization},
		{model.KindOrganization, model.KindPost},
		{model.KindOrganization, model.KindMembership},
		{model.KindPerson, model.KindMembership},
		{model.KindPost, model.KindMembership},
		{model.KindOrganization, model.KindBill},
		{model.KindPerson, model.KindBill},
		{model.KindBill, model.KindVoteEvent},
		{model.KindOrganization, model.KindVoteEvent},
		{model.KindPerson, model.KindVoteEvent},
		{model.KindBill, model.KindEvent},
		{model.KindVoteEvent, model.KindEvent},
		{model.KindPerson, model.KindEvent},
		{model.KindOrganization, model.KindEvent},
		{model.KindOrganization, model.KindDisclosure},
		{model.KindPerson, model.KindDisclosure},
		{model.KindEvent, model.KindDisclosure},
	}
	for _, e := range edges {
		// Nodes were just registered; the only failure mode is a typo.
		if err := g.AddEdge(e[0], e[1]); err != nil {
			panic(err)
		}
	}
	return g
}

// Runner merges a full run: one batch per entity kind, in dependency order,
// sharing one resolver. Each kind's batch is its own transaction; a failed
// batch stops the run before any dependent kind is touched, leaving prior
// committed batches in place.
type Runner struct {
	engine       *Engine
	store        store.Store
	jurisdiction string
	skip         map[string]bool
}

// NewRunner creates a Runner for one jurisdiction's run.
func NewRunner(st store.Store, jurisdiction string) *Runner {
	return &Runner{
		engine:       New(st),
		store:        st,
		jurisdiction: jurisdiction,
		skip:         make(map[string]bool),
	}
}

// SkipKinds excludes kinds from the run entirely: no merge and no post-batch
// cleanup, so an excluded kind's persisted entities stay untouched even when
// their parents are reprocessed. A kind merely absent from the batches still
// runs empty, and its cleanup fires.
func (r *Runner) SkipKinds(kinds ...string) {
	for _, k := range kinds {
		r.skip[k] = true
	}
}

// Run merges every batch and records the run in the import run log. The
// returned map holds a report per kind merged before any failure.
func (r *Runner) Run(ctx context.Context, batches map[string][]model.Record) (map[string]*Report, error) {
	log := zap.L().With(
		zap.String("component", "merge.runner"),
		zap.String("jurisdiction", r.jurisdiction),
	)

	for kind := range batches {
		if _, err := ImporterFor(kind); err != nil {
			return nil, err
		}
	}

	rounds, err := DefaultGraph().Sort()
	if err != nil {
		return nil, err
	}

	runID, err := r.store.StartRun(ctx, r.jurisdiction)
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(r.jurisdiction)
	reports := make(map[string]*Report)

	for _, round := range rounds {
		for _, kind := range round {
			if r.skip[kind] {
				continue
			}
			recs := batches[kind]
			// Kinds with no candidates still run: their post-batch cleanup
			// may delete stale children of parents reprocessed this run.
			imp, _ := ImporterFor(kind)
			rep, err := r.engine.ImportBatch(ctx, resolver, imp, recs)
			if err != nil {
				err = eris.Wrapf(err, "run: %s batch failed", kind)
				if logErr := r.store.FailRun(ctx, runID, err.Error()); logErr != nil {
					log.Error("failed to record run failure", zap.Error(logErr))
				}
				return reports, err
			}
			reports[kind] = rep
		}
	}

	if err := r.store.CompleteRun(ctx, runID, runReport(reports)); err != nil {
		return reports, err
	}
	log.Info("run complete", zap.Int64("run_id", runID))
	return reports, nil
}

func runReport(reports map[string]*Report) map[string]any {
	out := make(map[string]any, len(reports))
	for kind, rep := range reports {
		out[kind] = map[string]any{
			"insert":  rep.Insert,
			"update":  rep.Update,
			"noop":    rep.Noop,
			"deleted": rep.Deleted,
		}
	}
	return out
}
