package merge

import (
	"context"
	"strings"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// organizationImporter matches organizations by (name, classification,
// parent), scoped to the run's jurisdiction except for
// jurisdiction-independent classifications such as parties, which are one
// shared instance across jurisdictions.
type organizationImporter struct{}

func (i *organizationImporter) Kind() string { return model.KindOrganization }

func (i *organizationImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	o := rec.(*model.Organization)
	o.Name = NormalizeName(o.Name)
	if !o.Parent.IsZero() {
		id, err := r.Resolve(ctx, tx, model.KindOrganization, o.Parent, false)
		if err != nil {
			return err
		}
		o.Parent = model.ConcreteRef(id)
	}
	return nil
}

func (i *organizationImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	o := rec.(*model.Organization)
	ents, err := tx.Find(ctx, model.KindOrganization, i.JurisdictionFor(r, rec), map[string]any{
		"name":           o.Name,
		"classification": o.Classification,
		"parent_id":      refValue(o.Parent),
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *organizationImporter) NaturalKey(rec model.Record) string {
	o := rec.(*model.Organization)
	return strings.Join([]string{NormalizeName(o.Name), o.Classification, o.Parent.String()}, "\x00")
}

func (i *organizationImporter) NewID(model.Record) string {
	return ocdID(model.KindOrganization)
}

func (i *organizationImporter) JurisdictionFor(r *Resolver, rec model.Record) string {
	if rec.(*model.Organization).JurisdictionScoped() {
		return r.Jurisdiction()
	}
	return ""
}

func (i *organizationImporter) OrderedFields() map[string]bool { return noOrderedFields }

func (i *organizationImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *organizationImporter) PostBatch(context.Context, store.Tx, *Resolver, []model.Record, *Report) error {
	return nil
}
