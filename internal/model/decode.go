package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Kinds lists every entity kind the engine understands.
func Kinds() []string {
	return []string{
		KindJurisdiction,
		KindOrganization,
		KindPerson,
		KindPost,
		KindMembership,
		KindBill,
		KindVoteEvent,
		KindEvent,
		KindDisclosure,
	}
}

// PeekKind reads the _type tag of a raw record without full decoding.
func PeekKind(data []byte) (string, error) {
	var probe struct {
		Type string `json:"_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", eris.Wrap(err, "model: unreadable record")
	}
	if probe.Type == "" {
		return "", eris.New("model: record has no _type tag")
	}
	return probe.Type, nil
}

// Decode parses a raw candidate record of the given kind. The declared field
// set is closed: any field outside it fails the decode rather than being
// dropped, so schema drift between producer and engine surfaces immediately.
func Decode(kind string, data []byte) (Record, error) {
	var rec Record
	switch kind {
	case KindJurisdiction:
		rec = &Jurisdiction{}
	case KindOrganization:
		rec = &Organization{}
	case KindPerson:
		rec = &Person{}
	case KindPost:
		rec = &Post{}
	case KindMembership:
		rec = &Membership{}
	case KindBill:
		rec = &Bill{}
	case KindVoteEvent:
		rec = &VoteEvent{}
	case KindEvent:
		rec = &Event{}
	case KindDisclosure:
		rec = &Disclosure{}
	default:
		return nil, eris.Errorf("model: unknown record kind %q", kind)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return nil, eris.Wrapf(err, "model: %s record carries undeclared field", kind)
		}
		return nil, eris.Wrapf(err, "model: decode %s record", kind)
	}
	if rec.TransientID() == "" {
		return nil, eris.Errorf("model: %s record has no _id", kind)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
