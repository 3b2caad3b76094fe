package merge

import (
	"context"
	"strings"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// eventImporter matches events by (name, start date) within the run's
// jurisdiction. Participant and agenda references to entities the run never
// scraped stay name-only.
type eventImporter struct{}

func (i *eventImporter) Kind() string { return model.KindEvent }

func (i *eventImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	e := rec.(*model.Event)
	e.Name = NormalizeName(e.Name)

	for idx := range e.Participants {
		p := &e.Participants[idx]
		kind := refKindFor(p.EntityType)
		if kind == "" || p.Entity.IsZero() {
			continue
		}
		id, err := r.Resolve(ctx, tx, kind, p.Entity, true)
		if err != nil {
			return err
		}
		p.Entity = model.ConcreteRef(id)
	}

	for ai := range e.AgendaItems {
		for ri := range e.AgendaItems[ai].RelatedEntities {
			re := &e.AgendaItems[ai].RelatedEntities[ri]
			kind := refKindFor(re.EntityType)
			if kind == "" || re.Entity.IsZero() {
				continue
			}
			id, err := r.Resolve(ctx, tx, kind, re.Entity, true)
			if err != nil {
				return err
			}
			re.Entity = model.ConcreteRef(id)
		}
	}
	return nil
}

func refKindFor(entityType string) string {
	switch entityType {
	case "person", "organization", "bill", "vote_event", "post":
		return entityType
	default:
		return ""
	}
}

func (i *eventImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	e := rec.(*model.Event)
	ents, err := tx.Find(ctx, model.KindEvent, r.Jurisdiction(), map[string]any{
		"name":       e.Name,
		"start_date": e.StartDate,
	})
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *eventImporter) NaturalKey(rec model.Record) string {
	e := rec.(*model.Event)
	return strings.Join([]string{NormalizeName(e.Name), e.StartDate}, "\x00")
}

func (i *eventImporter) NewID(model.Record) string {
	return ocdID(model.KindEvent)
}

func (i *eventImporter) JurisdictionFor(r *Resolver, _ model.Record) string {
	return r.Jurisdiction()
}

func (i *eventImporter) OrderedFields() map[string]bool {
	// Agenda order is part of the record (explicit order field), so the
	// collection itself still compares as a set.
	return noOrderedFields
}

func (i *eventImporter) DeferredFields() map[string]bool { return noDeferredFields }

func (i *eventImporter) PostBatch(context.Context, store.Tx, *Resolver, []model.Record, *Report) error {
	return nil
}
