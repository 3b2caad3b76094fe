// Package store persists merged civic entities. Two backends implement the
// same interface: Postgres (pgx, JSONB) for shared deployments and SQLite
// (modernc) for local runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrRunNotFound is returned by GetRun when no run has the given id.
var ErrRunNotFound = eris.New("store: run not found")

// Entity is a persisted record: identity columns plus the canonical field
// tree the merge engine hashes and diffs.
type Entity struct {
	ID             string
	Kind           string
	JurisdictionID string // empty for entities shared across jurisdictions
	Fields         map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ImportRun is one recorded engine run over a jurisdiction's batches.
type ImportRun struct {
	ID           int64          `json:"id"`
	Jurisdiction string         `json:"jurisdiction"`
	Status       string         `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Report       map[string]any `json:"report,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Run statuses recorded in the import run log.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Tx is one batch transaction. All reads a batch performs see its own
// uncommitted writes; Commit makes the batch's effects visible atomically.
type Tx interface {
	Insert(ctx context.Context, ent *Entity) error
	Update(ctx context.Context, ent *Entity) error
	Get(ctx context.Context, id string) (*Entity, error)

	// Find returns entities of kind whose top-level fields equal spec.
	// A non-empty jurisdiction confines the match to that jurisdiction's
	// rows; empty means no jurisdiction filter.
	Find(ctx context.Context, kind, jurisdiction string, spec map[string]any) ([]*Entity, error)

	// FindPersonsByName returns persons whose current or recorded former
	// name is one of names, restricted to persons holding at least one
	// membership in the given jurisdiction.
	FindPersonsByName(ctx context.Context, jurisdiction string, names []string) ([]*Entity, error)

	// ChildIDs returns ids of kind entities whose reference field holds one
	// of the parent ids.
	ChildIDs(ctx context.Context, kind, field string, parents []string) ([]string, error)

	// ReferencedParents returns the subset of parent ids that at least one
	// kind entity's reference field points at.
	ReferencedParents(ctx context.Context, kind, field string, parents []string) ([]string, error)

	Delete(ctx context.Context, ids []string) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens batch transactions and owns the import run log.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	StartRun(ctx context.Context, jurisdiction string) (int64, error)
	CompleteRun(ctx context.Context, id int64, report map[string]any) error
	FailRun(ctx context.Context, id int64, errMsg string) error
	GetRun(ctx context.Context, id int64) (*ImportRun, error)
	ListRuns(ctx context.Context, limit int) ([]ImportRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
