package merge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// membershipImporter matches memberships by (person, organization, post,
// label). Its post-batch pass enforces the domain invariant that no person
// inserted this run ends with zero memberships anywhere.
type membershipImporter struct{}

func (i *membershipImporter) Kind() string { return model.KindMembership }

func (i *membershipImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	m := rec.(*model.Membership)

	person := m.Person
	if person.IsZero() && m.PersonName != "" {
		// Late-bound person reference by scraped name.
		person = model.LookupRef(map[string]string{"name": m.PersonName})
	}
	personID, err := r.Resolve(ctx, tx, model.KindPerson, person, false)
	if err != nil {
		return err
	}
	m.Person = model.ConcreteRef(personID)

	orgID, err := r.Resolve(ctx, tx, model.KindOrganization, m.Organization, false)
	if err != nil {
		return err
	}
	m.Organization = model.ConcreteRef(orgID)

	if !m.Post.IsZero() {
		postID, err := r.Resolve(ctx, tx, model.KindPost, m.Post, false)
		if err != nil {
			return err
		}
		m.Post = model.ConcreteRef(postID)
	}
	return nil
}

func (i *membershipImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	m := rec.(*model.Membership)
	ents, err := tx.Find(ctx, model.KindMembership, r.Jurisdiction(), map[string]any{
		"person_id":       refValue(m.Person),
		"organization_id": refValue(m.Organization),
		"post_id":         refValue(m.Post),
		"label":           m.Label,
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *membershipImporter) NaturalKey(rec model.Record) string {
	m := rec.(*model.Membership)
	person := m.Person.String()
	if m.Person.IsZero() {
		person = m.PersonName
	}
	return strings.Join([]string{person, m.Organization.String(), m.Post.String(), m.Label}, "\x00")
}

func (i *membershipImporter) NewID(model.Record) string {
	return ocdID(model.KindMembership)
}

func (i *membershipImporter) JurisdictionFor(r *Resolver, _ model.Record) string {
	return r.Jurisdiction()
}

func (i *membershipImporter) OrderedFields() map[string]bool { return noOrderedFields }

func (i *membershipImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *membershipImporter) PostBatch(ctx context.Context, tx store.Tx, r *Resolver, _ []model.Record, _ *Report) error {
	inserted := r.InsertedIDs(model.KindPerson)
	if len(inserted) == 0 {
		return nil
	}
	withMembership, err := tx.ReferencedParents(ctx, model.KindMembership, "person_id", inserted)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(withMembership))
	for _, id := range withMembership {
		have[id] = true
	}
	for _, id := range inserted {
		if !have[id] {
			return eris.Wrapf(ErrOrphanPerson, "person %s", id)
		}
	}
	return nil
}
