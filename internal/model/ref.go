package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Ref is a reference to another entity: either a concrete id (persisted
// "ocd-..." id or a transient id from the same run), or a pseudo-identifier
// carrying an attribute lookup spec for a referent whose real id the
// producer cannot know yet.
//
// Wire form is a plain id string for the concrete case and "~" followed by a
// JSON object for the lookup case, e.g. `~{"classification":"upper"}`.
// A zero Ref is null on the wire and resolves to the empty id.
type Ref struct {
	ID     string
	Lookup map[string]string
}

// IsZero reports whether the reference is absent.
func (r Ref) IsZero() bool { return r.ID == "" && len(r.Lookup) == 0 }

// IsLookup reports whether the reference is a pseudo-identifier.
func (r Ref) IsLookup() bool { return len(r.Lookup) > 0 }

// ConcreteRef returns a reference to a known id.
func ConcreteRef(id string) Ref { return Ref{ID: id} }

// LookupRef returns a pseudo-identifier over the given attribute spec.
func LookupRef(attrs map[string]string) Ref { return Ref{Lookup: attrs} }

// String renders the wire form, mostly for error messages.
func (r Ref) String() string {
	switch {
	case r.IsZero():
		return "<nil>"
	case r.IsLookup():
		keys := make([]string, 0, len(r.Lookup))
		for k := range r.Lookup {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("~{")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k + "=" + r.Lookup[k])
		}
		b.WriteString("}")
		return b.String()
	default:
		return r.ID
	}
}

// MarshalJSON implements json.Marshaler over the wire form.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	if r.IsLookup() {
		spec, err := json.Marshal(r.Lookup)
		if err != nil {
			return nil, eris.Wrap(err, "model: marshal ref lookup")
		}
		return json.Marshal("~" + string(spec))
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON implements json.Unmarshaler over the wire form.
func (r *Ref) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Ref{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: ref must be a string or null")
	}
	if s == "" {
		*r = Ref{}
		return nil
	}
	if strings.HasPrefix(s, "~") {
		var attrs map[string]string
		if err := json.Unmarshal([]byte(s[1:]), &attrs); err != nil {
			return eris.Wrapf(err, "model: malformed pseudo-identifier %q", s)
		}
		if len(attrs) == 0 {
			return eris.Errorf("model: empty pseudo-identifier %q", s)
		}
		*r = Ref{Lookup: attrs}
		return nil
	}
	*r = Ref{ID: s}
	return nil
}
