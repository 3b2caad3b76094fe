package merge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// personImporter matches people by name. A candidate matches a persisted
// person only when the candidate's current name equals the persisted current
// or any recorded former name (or vice versa) AND the persisted person
// already holds some relationship in the run's jurisdiction; a person with
// zero relationships there is always an insert. Same-name collisions are
// disambiguated only by birth date.
type personImporter struct {
	// batch-local name bookkeeping: name -> birth dates seen. A second
	// same-named candidate without a distinct birth date is a hard error.
	seen map[string]map[string]bool
}

func newPersonImporter() *personImporter {
	return &personImporter{seen: make(map[string]map[string]bool)}
}

func (i *personImporter) Kind() string { return model.KindPerson }

func (i *personImporter) Prepare(_ context.Context, _ store.Tx, _ *Resolver, rec model.Record) error {
	p := rec.(*model.Person)
	p.Name = NormalizeName(p.Name)
	for idx := range p.OtherNames {
		p.OtherNames[idx].Name = NormalizeName(p.OtherNames[idx].Name)
	}

	if dates, ok := i.seen[p.Name]; ok {
		if p.BirthDate == "" || dates[p.BirthDate] || dates[""] {
			return eris.Wrapf(ErrSameName, "people named %q in one batch", p.Name)
		}
	} else {
		i.seen[p.Name] = make(map[string]bool)
	}
	i.seen[p.Name][p.BirthDate] = true
	return nil
}

func (i *personImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	p := rec.(*model.Person)
	ents, err := tx.FindPersonsByName(ctx, r.Jurisdiction(), p.AllNames())
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, nil
	}

	// Same-name people on file: only birth date may choose.
	var exact []*store.Entity
	allDated := true
	for _, e := range ents {
		bd, _ := e.Fields["birth_date"].(string)
		if bd == "" {
			allDated = false
		}
		if p.BirthDate != "" && bd == p.BirthDate {
			exact = append(exact, e)
		}
	}
	if len(exact) == 1 {
		return entityIDs(exact), nil
	}
	if p.BirthDate != "" && len(exact) == 0 {
		if allDated {
			// Every namesake has a different, known birth date: a new person.
			return nil, nil
		}
		if len(ents) == 1 {
			// One undated namesake: same person, the date is new information.
			return entityIDs(ents), nil
		}
	}
	if p.BirthDate == "" && len(ents) == 1 {
		return entityIDs(ents), nil
	}
	return nil, eris.Wrapf(ErrSameName, "%d people named %q on file", len(ents), p.Name)
}

func (i *personImporter) NaturalKey(rec model.Record) string {
	p := rec.(*model.Person)
	return strings.Join([]string{NormalizeName(p.Name), p.BirthDate}, "\x00")
}

func (i *personImporter) NewID(model.Record) string {
	return ocdID(model.KindPerson)
}

// People are shared across jurisdictions; their scoping lives in their
// memberships.
func (i *personImporter) JurisdictionFor(*Resolver, model.Record) string { return "" }

func (i *personImporter) OrderedFields() map[string]bool { return noOrderedFields }

func (i *personImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *personImporter) PostBatch(context.Context, store.Tx, *Resolver, []model.Record, *Report) error {
	return nil
}
