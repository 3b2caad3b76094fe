package merge

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// billImporter matches bills by (identifier, legislative session,
// originating organization) after identifier normalization. Actions are a
// chronological narrative and compared order-preserving. Related-bill
// references are resolved post-batch, once every bill of the run is known.
type billImporter struct{}

func (i *billImporter) Kind() string { return model.KindBill }

func (i *billImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	b := rec.(*model.Bill)
	b.Identifier = NormalizeBillID(b.Identifier)

	if !b.FromOrganization.IsZero() {
		id, err := r.Resolve(ctx, tx, model.KindOrganization, b.FromOrganization, false)
		if err != nil {
			return err
		}
		b.FromOrganization = model.ConcreteRef(id)
	}

	for idx := range b.Actions {
		if b.Actions[idx].Organization.IsZero() {
			continue
		}
		id, err := r.Resolve(ctx, tx, model.KindOrganization, b.Actions[idx].Organization, false)
		if err != nil {
			return err
		}
		b.Actions[idx].Organization = model.ConcreteRef(id)
	}

	// Sponsors may name people or organizations the run never scraped;
	// unresolvable sponsor references stay name-only rather than failing
	// the batch.
	for idx := range b.Sponsorships {
		sp := &b.Sponsorships[idx]
		if !sp.Person.IsZero() {
			id, err := r.Resolve(ctx, tx, model.KindPerson, sp.Person, true)
			if err != nil {
				return err
			}
			sp.Person = model.ConcreteRef(id)
		}
		if !sp.Organization.IsZero() {
			id, err := r.Resolve(ctx, tx, model.KindOrganization, sp.Organization, true)
			if err != nil {
				return err
			}
			sp.Organization = model.ConcreteRef(id)
		}
	}

	// Related bills already on file resolve now, so a re-import carries the
	// same resolved ids the store holds and diffs clean. Targets later in
	// this batch stay for the post-batch pass.
	for idx := range b.RelatedBills {
		rb := &b.RelatedBills[idx]
		rb.Identifier = NormalizeBillID(rb.Identifier)
		ents, err := tx.Find(ctx, model.KindBill, r.Jurisdiction(), map[string]any{
			"identifier":          rb.Identifier,
			"legislative_session": rb.LegislativeSession,
		})
		if err != nil {
			return err
		}
		if len(ents) == 1 {
			rb.ResolvedID = ents[0].ID
		}
	}
	return nil
}

func (i *billImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	b := rec.(*model.Bill)
	ents, err := tx.Find(ctx, model.KindBill, r.Jurisdiction(), map[string]any{
		"identifier":          b.Identifier,
		"legislative_session": b.LegislativeSession,
		"from_organization":   refValue(b.FromOrganization),
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *billImporter) NaturalKey(rec model.Record) string {
	b := rec.(*model.Bill)
	return strings.Join([]string{NormalizeBillID(b.Identifier), b.LegislativeSession, b.FromOrganization.String()}, "\x00")
}

func (i *billImporter) NewID(model.Record) string {
	return ocdID(model.KindBill)
}

func (i *billImporter) JurisdictionFor(r *Resolver, _ model.Record) string {
	return r.Jurisdiction()
}

func (i *billImporter) OrderedFields() map[string]bool {
	return map[string]bool{"actions": true}
}

func (i *billImporter) DeferredFields() map[string]bool { return noDeferredFields }

// PostBatch resolves related-bill forward references now that the whole
// batch is merged. A related bill that still matches nothing, or more than
// one bill, stays unresolved rather than guessed.
func (i *billImporter) PostBatch(ctx context.Context, tx store.Tx, r *Resolver, recs []model.Record, rep *Report) error {
	log := zap.L().With(zap.String("component", "merge.bill"))

	for _, rec := range recs {
		b := rec.(*model.Bill)
		if len(b.RelatedBills) == 0 {
			continue
		}

		resolved := false
		for idx := range b.RelatedBills {
			rb := &b.RelatedBills[idx]
			if rb.ResolvedID != "" {
				continue
			}
			ents, err := tx.Find(ctx, model.KindBill, r.Jurisdiction(), map[string]any{
				"identifier":          rb.Identifier,
				"legislative_session": rb.LegislativeSession,
			})
			if err != nil {
				return err
			}
			if len(ents) != 1 {
				log.Debug("related bill unresolved",
					zap.String("identifier", rb.Identifier),
					zap.String("session", rb.LegislativeSession),
					zap.Int("matches", len(ents)),
				)
				continue
			}
			rb.ResolvedID = ents[0].ID
			resolved = true
		}
		if !resolved {
			continue
		}

		fields, err := model.Canonical(b)
		if err != nil {
			return err
		}
		ent, err := tx.Get(ctx, rep.IDMap[b.TransientID()])
		if err != nil {
			return err
		}
		ent.Fields["related_bills"] = fields["related_bills"]
		if err := tx.Update(ctx, ent); err != nil {
			return err
		}
	}
	return nil
}
