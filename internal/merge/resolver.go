package merge

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// Resolver is the in-run identifier map. It is scoped to one run and passed
// through it, never process-global: it binds producer transient ids to
// persisted ids as batches commit, resolves pseudo-identifiers against the
// store, and tracks which entities each batch touched so post-batch cleanup
// can scope itself to parents actually reprocessed this run.
type Resolver struct {
	jurisdiction string

	ids       map[string]string          // transient id -> persisted id
	lookups   map[string]string          // resolved pseudo-identifier cache
	processed map[string]map[string]bool // kind -> persisted ids seen this run
	inserted  map[string]map[string]bool // kind -> persisted ids inserted this run
}

// NewResolver creates a resolver for one run over the given jurisdiction.
func NewResolver(jurisdiction string) *Resolver {
	return &Resolver{
		jurisdiction: jurisdiction,
		ids:          make(map[string]string),
		lookups:      make(map[string]string),
		processed:    make(map[string]map[string]bool),
		inserted:     make(map[string]map[string]bool),
	}
}

// Jurisdiction returns the run's jurisdiction id.
func (r *Resolver) Jurisdiction() string { return r.jurisdiction }

// Bind maps a producer transient id to its persisted id.
func (r *Resolver) Bind(transientID, persistedID string) {
	r.ids[transientID] = persistedID
}

// MarkProcessed records that a persisted entity was insert/update/noop'd
// this run.
func (r *Resolver) MarkProcessed(kind, id string) {
	if r.processed[kind] == nil {
		r.processed[kind] = make(map[string]bool)
	}
	r.processed[kind][id] = true
}

// MarkInserted records a fresh insert (also marks it processed).
func (r *Resolver) MarkInserted(kind, id string) {
	if r.inserted[kind] == nil {
		r.inserted[kind] = make(map[string]bool)
	}
	r.inserted[kind][id] = true
	r.MarkProcessed(kind, id)
}

// ProcessedIDs returns the sorted persisted ids of kind touched this run.
func (r *Resolver) ProcessedIDs(kind string) []string {
	return sortedKeys(r.processed[kind])
}

// InsertedIDs returns the sorted persisted ids of kind inserted this run.
func (r *Resolver) InsertedIDs(kind string) []string {
	return sortedKeys(r.inserted[kind])
}

// WasProcessed reports whether the persisted id was touched this run.
func (r *Resolver) WasProcessed(kind, id string) bool {
	return r.processed[kind][id]
}

// Resolve turns a reference into a persisted id.
//
// Concrete ids known to the run's identifier map resolve directly; persisted
// "ocd-" ids pass through once the store confirms an entity of the right
// kind exists under them. A pseudo-identifier is resolved by a scoped store
// lookup: organization lookups default to the run's jurisdiction unless the
// classification is jurisdiction-independent, person lookups are confined to
// people with a relationship in the run's jurisdiction, and other kinds are
// confined to the jurisdiction's rows.
// Exactly one match resolves; zero or many is an error unless optional, in
// which case zero matches resolves to empty.
func (r *Resolver) Resolve(ctx context.Context, tx store.Tx, kind string, ref model.Ref, optional bool) (string, error) {
	if ref.IsZero() {
		return "", nil
	}

	if !ref.IsLookup() {
		if id, ok := r.ids[ref.ID]; ok {
			return id, nil
		}
		if strings.HasPrefix(ref.ID, "ocd-") {
			ent, err := tx.Get(ctx, ref.ID)
			if err != nil {
				return "", err
			}
			if ent == nil || ent.Kind != kind {
				if optional {
					return "", nil
				}
				return "", eris.Wrapf(ErrNotFound, "resolver: %s id %q not on file", kind, ref.ID)
			}
			r.ids[ref.ID] = ref.ID
			return ref.ID, nil
		}
		return "", eris.Wrapf(ErrNotFound, "resolver: %s id %q unknown to this run", kind, ref.ID)
	}

	cacheKey := kind + "\x00" + ref.String()
	if id, ok := r.lookups[cacheKey]; ok {
		return id, nil
	}

	matches, err := r.query(ctx, tx, kind, ref)
	if err != nil {
		return "", err
	}

	switch len(matches) {
	case 1:
		r.lookups[cacheKey] = matches[0]
		return matches[0], nil
	case 0:
		if optional {
			return "", nil
		}
		return "", eris.Wrapf(ErrNotFound, "resolver: %s %s matched nothing", kind, ref)
	default:
		return "", eris.Wrapf(ErrAmbiguous, "resolver: %s %s matched %d entities", kind, ref, len(matches))
	}
}

func (r *Resolver) query(ctx context.Context, tx store.Tx, kind string, ref model.Ref) ([]string, error) {
	// Person lookups are confined to people holding a relationship in the
	// run's jurisdiction, whatever attributes the lookup carries.
	if kind == model.KindPerson {
		return r.queryPersons(ctx, tx, ref)
	}

	spec := make(map[string]any, len(ref.Lookup))
	for k, v := range ref.Lookup {
		spec[k] = v
	}

	jurisdiction := r.jurisdiction
	if kind == model.KindOrganization && model.JurisdictionlessClassifications[ref.Lookup["classification"]] {
		jurisdiction = ""
	}
	if kind == model.KindJurisdiction {
		jurisdiction = ""
	}

	ents, err := tx.Find(ctx, kind, jurisdiction, spec)
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (r *Resolver) queryPersons(ctx context.Context, tx store.Tx, ref model.Ref) ([]string, error) {
	if name, ok := ref.Lookup["name"]; ok {
		ents, err := tx.FindPersonsByName(ctx, r.jurisdiction, []string{NormalizeName(name)})
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, e := range ents {
			if personAttrsMatch(e, ref.Lookup) {
				ids = append(ids, e.ID)
			}
		}
		return ids, nil
	}

	spec := make(map[string]any, len(ref.Lookup))
	for k, v := range ref.Lookup {
		spec[k] = v
	}
	ents, err := tx.Find(ctx, model.KindPerson, "", spec)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range ents {
		held, err := tx.Find(ctx, model.KindMembership, r.jurisdiction, map[string]any{"person_id": e.ID})
		if err != nil {
			return nil, err
		}
		if len(held) > 0 {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// personAttrsMatch checks the non-name lookup attributes against a person's
// fields. The name itself was already matched against current and former
// names by the scoped name search.
func personAttrsMatch(e *store.Entity, attrs map[string]string) bool {
	for k, v := range attrs {
		if k == "name" {
			continue
		}
		if fv, _ := e.Fields[k].(string); fv != v {
			return false
		}
	}
	return true
}

func entityIDs(ents []*store.Entity) []string {
	ids := make([]string, len(ents))
	for i, e := range ents {
		ids[i] = e.ID
	}
	return ids
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
