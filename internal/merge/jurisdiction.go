package merge

import (
	"context"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// jurisdictionImporter merges jurisdiction records. Jurisdiction ids are
// deterministic producer-assigned identifiers, so the id itself is both the
// natural key and the persisted id.
type jurisdictionImporter struct{}

func (i *jurisdictionImporter) Kind() string { return model.KindJurisdiction }

func (i *jurisdictionImporter) Prepare(_ context.Context, _ store.Tx, _ *Resolver, rec model.Record) error {
	j := rec.(*model.Jurisdiction)
	j.Name = NormalizeName(j.Name)
	return nil
}

func (i *jurisdictionImporter) Match(ctx context.Context, tx store.Tx, _ *Resolver, rec model.Record) ([]string, error) {
	j := rec.(*model.Jurisdiction)
	ents, err := tx.Find(ctx, model.KindJurisdiction, "", map[string]any{
		"jurisdiction_id": j.JurisdictionID,
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *jurisdictionImporter) NaturalKey(rec model.Record) string {
	return rec.(*model.Jurisdiction).JurisdictionID
}

func (i *jurisdictionImporter) NewID(rec model.Record) string {
	return rec.(*model.Jurisdiction).JurisdictionID
}

func (i *jurisdictionImporter) JurisdictionFor(_ *Resolver, rec model.Record) string {
	return rec.(*model.Jurisdiction).JurisdictionID
}

func (i *jurisdictionImporter) OrderedFields() map[string]bool { return noOrderedFields }

func (i *jurisdictionImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *jurisdictionImporter) PostBatch(context.Context, store.Tx, *Resolver, []model.Record, *Report) error {
	return nil
}
