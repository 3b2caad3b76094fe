package merge

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/opencivicdata/civic-import/internal/model"
)

// ocdPrefixes maps entity kinds to their persisted id prefixes.
var ocdPrefixes = map[string]string{
	model.KindOrganization: "ocd-organization",
	model.KindPerson:       "ocd-person",
	model.KindPost:         "ocd-post",
	model.KindMembership:   "ocd-membership",
	model.KindBill:         "ocd-bill",
	model.KindVoteEvent:    "ocd-vote",
	model.KindEvent:        "ocd-event",
	model.KindDisclosure:   "ocd-disclosure",
}

func ocdID(kind string) string {
	return ocdPrefixes[kind] + "/" + uuid.New().String()
}

// ImporterFor constructs a fresh importer for one batch of the given kind.
// Importers carry per-batch state and must not be reused across batches.
func ImporterFor(kind string) (Importer, error) {
	switch kind {
	case model.KindJurisdiction:
		return &jurisdictionImporter{}, nil
	case model.KindOrganization:
		return &organizationImporter{}, nil
	case model.KindPerson:
		return newPersonImporter(), nil
	case model.KindPost:
		return &postImporter{}, nil
	case model.KindMembership:
		return &membershipImporter{}, nil
	case model.KindBill:
		return &billImporter{}, nil
	case model.KindVoteEvent:
		return &voteEventImporter{}, nil
	case model.KindEvent:
		return &eventImporter{}, nil
	case model.KindDisclosure:
		return &disclosureImporter{}, nil
	default:
		return nil, eris.Errorf("merge: no importer for kind %q", kind)
	}
}

// noOrderedFields is shared by importers whose sub-collections are all sets.
var noOrderedFields = map[string]bool{}

// noDeferredFields is shared by importers with no post-batch-owned fields.
var noDeferredFields = map[string]bool{}

// refValue renders a resolved reference the way it appears in persisted
// field trees: the id string, or nil when absent.
func refValue(ref model.Ref) any {
	if ref.IsZero() {
		return nil
	}
	return ref.ID
}
