package merge

import (
	"context"
	"strings"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// postImporter matches posts by (organization, label).
type postImporter struct{}

func (i *postImporter) Kind() string { return model.KindPost }

func (i *postImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	p := rec.(*model.Post)
	id, err := r.Resolve(ctx, tx, model.KindOrganization, p.Organization, false)
	if err != nil {
		return err
	}
	p.Organization = model.ConcreteRef(id)
	return nil
}

func (i *postImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	p := rec.(*model.Post)
	ents, err := tx.Find(ctx, model.KindPost, r.Jurisdiction(), map[string]any{
		"label":           p.Label,
		"organization_id": refValue(p.Organization),
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *postImporter) NaturalKey(rec model.Record) string {
	p := rec.(*model.Post)
	return strings.Join([]string{p.Label, p.Organization.String()}, "\x00")
}

func (i *postImporter) NewID(model.Record) string {
	return ocdID(model.KindPost)
}

func (i *postImporter) JurisdictionFor(r *Resolver, _ model.Record) string {
	return r.Jurisdiction()
}

func (i *postImporter) OrderedFields() map[string]bool { return noOrderedFields }

func (i *postImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *postImporter) PostBatch(context.Context, store.Tx, *Resolver, []model.Record, *Report) error {
	return nil
}
