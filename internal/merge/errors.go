// Package merge implements the import/merge engine: batch deduplication,
// identity resolution against persisted data, pseudo-identifier reference
// resolution, and post-batch cleanup, all inside per-batch transactions.
package merge

import "github.com/rotisserie/eris"

// Sentinel error kinds. Callers distinguish them with eris.Is; every variant
// aborts the current batch.
var (
	// ErrNotFound: a required reference resolved to zero rows.
	ErrNotFound = eris.New("reference not found")
	// ErrAmbiguous: a lookup resolved to more than one row. Ambiguity is
	// never silently broken.
	ErrAmbiguous = eris.New("ambiguous match")
	// ErrBatchCollision: two candidates in one batch share a natural key
	// but differ in content.
	ErrBatchCollision = eris.New("batch natural-key collision")
	// ErrSameName: multiple same-named people with no birth-date
	// disambiguator.
	ErrSameName = eris.New("same-name people cannot be disambiguated")
	// ErrOrphanPerson: a person inserted this run ended with no membership
	// anywhere.
	ErrOrphanPerson = eris.New("person has no memberships")
)
