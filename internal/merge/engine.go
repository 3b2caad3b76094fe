package merge

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/hash"
	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// Report is the outcome of one batch: counts plus the map from each
// candidate's transient id to its final persisted id.
type Report struct {
	Insert  int               `json:"insert"`
	Update  int               `json:"update"`
	Noop    int               `json:"noop"`
	Deleted int               `json:"deleted"`
	IDMap   map[string]string `json:"-"`
}

// Importer supplies the type-specific identity heuristics and reshaping the
// engine delegates to. One Importer instance serves exactly one batch: it
// may carry per-batch state.
type Importer interface {
	Kind() string

	// Prepare resolves every reference field and applies identifier
	// normalization before matching. It runs once per unique candidate, in
	// batch order, so earlier candidates are resolvable by later ones.
	Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error

	// Match returns the persisted ids the candidate denotes: zero means
	// insert, one means update-or-noop, more means ambiguity.
	Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error)

	// NaturalKey returns the candidate's business key, used to detect
	// batch-internal collisions. Called before Prepare, so it must work
	// from the raw record.
	NaturalKey(rec model.Record) string

	// NewID mints the persisted id for an insert. Generated once, never
	// changed.
	NewID(rec model.Record) string

	// JurisdictionFor returns the jurisdiction column value for the row,
	// empty for entities shared across jurisdictions.
	JurisdictionFor(r *Resolver, rec model.Record) string

	// OrderedFields names the fields whose sequences are a chronological
	// narrative and must be compared order-preserving.
	OrderedFields() map[string]bool

	// DeferredFields names the fields written only by post-batch passes.
	// Candidates never carry meaningful values for them, so updates keep the
	// persisted value and leave them out of the change diff.
	DeferredFields() map[string]bool

	// PostBatch runs once after every candidate is persisted, with the
	// whole batch known: late reference resolution and scoped stale-child
	// deletion happen here.
	PostBatch(ctx context.Context, tx store.Tx, r *Resolver, recs []model.Record, rep *Report) error
}

// Engine merges candidate batches into the store.
type Engine struct {
	store store.Store
}

// New creates an Engine over the given store.
func New(st store.Store) *Engine {
	return &Engine{store: st}
}

// ImportBatch merges one batch of candidates of one type inside a single
// transaction; either all of the batch's writes commit or none do. The
// resolver is the run's identifier map, shared across this run's batches.
func (e *Engine) ImportBatch(ctx context.Context, resolver *Resolver, imp Importer, recs []model.Record) (*Report, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rep, err := e.importInTx(ctx, tx, resolver, imp, recs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rep, nil
}

func (e *Engine) importInTx(ctx context.Context, tx store.Tx, resolver *Resolver, imp Importer, recs []model.Record) (*Report, error) {
	log := zap.L().With(
		zap.String("component", "merge.engine"),
		zap.String("kind", imp.Kind()),
	)

	rep := &Report{IDMap: make(map[string]string, len(recs))}

	unique, aliases, err := collapseDuplicates(imp, recs)
	if err != nil {
		return nil, err
	}

	for _, rec := range unique {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if err := imp.Prepare(ctx, tx, resolver, rec); err != nil {
			return nil, eris.Wrapf(err, "merge: prepare %s %s", imp.Kind(), rec.TransientID())
		}

		matches, err := imp.Match(ctx, tx, resolver, rec)
		if err != nil {
			return nil, eris.Wrapf(err, "merge: match %s %s", imp.Kind(), rec.TransientID())
		}

		fields, err := model.Canonical(rec)
		if err != nil {
			return nil, err
		}

		var finalID string
		switch len(matches) {
		case 0:
			finalID = imp.NewID(rec)
			ent := &store.Entity{
				ID:             finalID,
				Kind:           imp.Kind(),
				JurisdictionID: imp.JurisdictionFor(resolver, rec),
				Fields:         fields,
			}
			if err := tx.Insert(ctx, ent); err != nil {
				return nil, err
			}
			resolver.MarkInserted(imp.Kind(), finalID)
			rep.Insert++

		case 1:
			finalID = matches[0]
			changed, err := e.applyUpdate(ctx, tx, imp, finalID, fields)
			if err != nil {
				return nil, err
			}
			resolver.MarkProcessed(imp.Kind(), finalID)
			if changed {
				rep.Update++
			} else {
				rep.Noop++
			}

		default:
			return nil, eris.Wrapf(ErrAmbiguous,
				"merge: %s %s (key %s) matched %d persisted entities",
				imp.Kind(), rec.TransientID(), imp.NaturalKey(rec), len(matches))
		}

		resolver.Bind(rec.TransientID(), finalID)
		rep.IDMap[rec.TransientID()] = finalID
		for _, alias := range aliases[rec.TransientID()] {
			resolver.Bind(alias, finalID)
			rep.IDMap[alias] = finalID
		}
	}

	if err := imp.PostBatch(ctx, tx, resolver, unique, rep); err != nil {
		return nil, eris.Wrapf(err, "merge: post-batch %s", imp.Kind())
	}

	log.Info("batch merged",
		zap.Int("candidates", len(recs)),
		zap.Int("insert", rep.Insert),
		zap.Int("update", rep.Update),
		zap.Int("noop", rep.Noop),
		zap.Int("deleted", rep.Deleted),
	)
	return rep, nil
}

// collapseDuplicates drops candidates whose full field tree hashes equal to
// an earlier one (the later transient id becomes an alias of the earlier),
// and rejects candidates that share a natural key with different content.
func collapseDuplicates(imp Importer, recs []model.Record) ([]model.Record, map[string][]string, error) {
	var unique []model.Record
	aliases := make(map[string][]string)
	byHash := make(map[uint64]string)  // content hash -> first transient id
	keyHash := make(map[string]uint64) // natural key -> content hash

	for _, rec := range recs {
		fields, err := model.Canonical(rec)
		if err != nil {
			return nil, nil, err
		}
		h := hash.Sum(fields)

		if first, ok := byHash[h]; ok {
			aliases[first] = append(aliases[first], rec.TransientID())
			continue
		}

		key := imp.NaturalKey(rec)
		if prev, ok := keyHash[key]; ok && prev != h {
			return nil, nil, eris.Wrapf(ErrBatchCollision,
				"merge: %s candidates share key %q with different content", imp.Kind(), key)
		}
		keyHash[key] = h
		byHash[h] = rec.TransientID()
		unique = append(unique, rec)
	}
	return unique, aliases, nil
}

// applyUpdate diffs the candidate fields against the persisted entity using
// unordered structural equality (order-preserving for fields the importer
// declares so), keeps persisted values for locked and post-batch-owned
// fields, grows the locked-field set monotonically, and writes only when
// something differs.
func (e *Engine) applyUpdate(ctx context.Context, tx store.Tx, imp Importer, id string, candidate map[string]any) (bool, error) {
	ent, err := tx.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if ent == nil {
		return false, eris.Errorf("merge: matched %s %s vanished mid-batch", imp.Kind(), id)
	}

	locked := lockedSet(ent.Fields["locked_fields"])
	ordered := imp.OrderedFields()
	deferred := imp.DeferredFields()

	changed := false
	merged := make(map[string]any, len(ent.Fields))
	for k, v := range ent.Fields {
		merged[k] = v
	}

	keys := make([]string, 0, len(candidate))
	for k := range candidate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "locked_fields" {
			continue
		}
		if locked[k] {
			continue // ratchet: persisted value is immune
		}
		if deferred[k] {
			continue // owned by the post-batch pass, not the candidate
		}
		cv := candidate[k]
		pv := ent.Fields[k]
		var same bool
		if ordered[k] {
			same = hash.Ordered(cv) == hash.Ordered(pv)
		} else {
			same = hash.Sum(cv) == hash.Sum(pv)
		}
		if !same {
			merged[k] = cv
			changed = true
		}
	}

	// The locked-field set only ever grows.
	grew := false
	for f := range lockedSet(candidate["locked_fields"]) {
		if !locked[f] {
			locked[f] = true
			grew = true
		}
	}
	if grew {
		names := make([]string, 0, len(locked))
		for f := range locked {
			names = append(names, f)
		}
		sort.Strings(names)
		lockedList := make([]any, len(names))
		for i, n := range names {
			lockedList[i] = n
		}
		merged["locked_fields"] = lockedList
		changed = true
	}

	if !changed {
		return false, nil
	}

	ent.Fields = merged
	if err := tx.Update(ctx, ent); err != nil {
		return false, err
	}
	return true, nil
}

func lockedSet(v any) map[string]bool {
	set := make(map[string]bool)
	switch list := v.(type) {
	case []any:
		for _, f := range list {
			if s, ok := f.(string); ok {
				set[s] = true
			}
		}
	case []string:
		for _, f := range list {
			set[f] = true
		}
	}
	return set
}
