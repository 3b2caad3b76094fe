// Package model defines the candidate record types produced by collectors
// and consumed by the merge engine, plus the reference and link helpers the
// record shape depends on.
package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Entity kinds, in the order they appear in the built-in dependency graph.
const (
	KindJurisdiction = "jurisdiction"
	KindOrganization = "organization"
	KindPerson       = "person"
	KindPost         = "post"
	KindMembership   = "membership"
	KindBill         = "bill"
	KindVoteEvent    = "vote_event"
	KindEvent        = "event"
	KindDisclosure   = "disclosure"
)

// Record is a candidate record of any entity kind.
type Record interface {
	Kind() string
	// TransientID is the producer-assigned id, valid only within one run
	// until the engine maps it to a persisted id.
	TransientID() string
	// Validate checks record-level invariants that survive JSON decoding,
	// chiefly that natural-key fields are present.
	Validate() error
}

// Base carries the wire fields shared by every record.
type Base struct {
	ID           string         `json:"_id"`
	Type         string         `json:"_type"`
	LockedFields []string       `json:"locked_fields"`
	Extras       map[string]any `json:"extras"`
}

// TransientID implements Record.
func (b Base) TransientID() string { return b.ID }

// Link is a note/url pair used for sources and plain link lists.
type Link struct {
	Note string `json:"note"`
	URL  string `json:"url"`
}

// ContactDetail is a single contact entry (voice, email, address, ...).
type ContactDetail struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Note  string `json:"note"`
	Label string `json:"label"`
}

// OtherName records a former or alternate name with optional validity dates.
type OtherName struct {
	Name      string `json:"name"`
	Note      string `json:"note"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Canonical renders a record as the JSON field tree the engine hashes,
// diffs, and persists. The transient id and type tag are not content.
func Canonical(r Record) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrapf(err, "model: marshal %s %s", r.Kind(), r.TransientID())
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, eris.Wrapf(err, "model: canonicalize %s %s", r.Kind(), r.TransientID())
	}
	delete(fields, "_id")
	delete(fields, "_type")
	return fields, nil
}
