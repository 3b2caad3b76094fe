package merge

import (
	"context"
	"strings"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// disclosureImporter matches disclosures by (registrant, authority,
// effective date, classification). Registrant and authority lookups resolve
// against organizations; concrete ids of any kind pass through.
type disclosureImporter struct{}

func (i *disclosureImporter) Kind() string { return model.KindDisclosure }

func (i *disclosureImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	d := rec.(*model.Disclosure)

	regID, err := r.Resolve(ctx, tx, model.KindOrganization, d.Registrant, false)
	if err != nil {
		return err
	}
	d.Registrant = model.ConcreteRef(regID)

	authID, err := r.Resolve(ctx, tx, model.KindOrganization, d.Authority, false)
	if err != nil {
		return err
	}
	d.Authority = model.ConcreteRef(authID)
	return nil
}

func (i *disclosureImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	d := rec.(*model.Disclosure)
	ents, err := tx.Find(ctx, model.KindDisclosure, r.Jurisdiction(), map[string]any{
		"registrant_id":  refValue(d.Registrant),
		"authority_id":   refValue(d.Authority),
		"effective_date": d.EffectiveDate,
		"classification": d.Classification,
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *disclosureImporter) NaturalKey(rec model.Record) string {
	d := rec.(*model.Disclosure)
	return strings.Join([]string{d.Registrant.String(), d.Authority.String(), d.EffectiveDate, d.Classification}, "\x00")
}

func (i *disclosureImporter) NewID(model.Record) string {
	return ocdID(model.KindDisclosure)
}

func (i *disclosureImporter) JurisdictionFor(r *Resolver, _ model.Record) string {
	return r.Jurisdiction()
}

func (i *disclosureImporter) OrderedFields() map[string]bool { return noOrderedFields }

func (i *disclosureImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *disclosureImporter) PostBatch(context.Context, store.Tx, *Resolver, []model.Record, *Report) error {
	return nil
}
