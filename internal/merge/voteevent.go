package merge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/model"
	"github.com/opencivicdata/civic-import/internal/store"
)

// voteEventImporter matches vote events by explicit identifier + session +
// bill when an identifier is present (identifier wins even when the
// motion-based key would disagree), else by (session, bill, organization,
// motion text, start date). Its post-batch pass links votes to historical
// bill actions and deletes persisted vote events whose bill was reprocessed
// this run but which this run no longer produced.
type voteEventImporter struct{}

func (i *voteEventImporter) Kind() string { return model.KindVoteEvent }

func (i *voteEventImporter) Prepare(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) error {
	v := rec.(*model.VoteEvent)

	orgID, err := r.Resolve(ctx, tx, model.KindOrganization, v.Organization, false)
	if err != nil {
		return err
	}
	v.Organization = model.ConcreteRef(orgID)

	if !v.Bill.IsZero() {
		billID, err := r.Resolve(ctx, tx, model.KindBill, v.Bill, false)
		if err != nil {
			return err
		}
		v.Bill = model.ConcreteRef(billID)
	}

	for idx := range v.Votes {
		pv := &v.Votes[idx]
		voter := pv.Voter
		if voter.IsZero() && pv.VoterName != "" {
			voter = model.LookupRef(map[string]string{"name": pv.VoterName})
		}
		// A voter the run never scraped keeps their name only.
		voterID, err := r.Resolve(ctx, tx, model.KindPerson, voter, true)
		if err != nil {
			return err
		}
		pv.Voter = model.ConcreteRef(voterID)
	}
	return nil
}

func (i *voteEventImporter) Match(ctx context.Context, tx store.Tx, r *Resolver, rec model.Record) ([]string, error) {
	v := rec.(*model.VoteEvent)
	var spec map[string]any
	if v.Identifier != "" {
		spec = map[string]any{
			"identifier":          v.Identifier,
			"legislative_session": v.LegislativeSession,
			"bill_id":             refValue(v.Bill),
		}
	} else {
		spec = map[string]any{
			"legislative_session": v.LegislativeSession,
			"bill_id":             refValue(v.Bill),
			"organization_id":     refValue(v.Organization),
			"motion_text":         v.MotionText,
			"start_date":          v.StartDate,
		}
	}
	ents, err := tx.Find(ctx, model.KindVoteEvent, r.Jurisdiction(), spec)
	if err != nil {
		return nil, err
	}
	return entityIDs(ents), nil
}

func (i *voteEventImporter) NaturalKey(rec model.Record) string {
	v := rec.(*model.VoteEvent)
	if v.Identifier != "" {
		return strings.Join([]string{v.Identifier, v.LegislativeSession, v.Bill.String()}, "\x00")
	}
	return strings.Join([]string{v.LegislativeSession, v.Bill.String(), v.Organization.String(), v.MotionText, v.StartDate}, "\x00")
}

func (i *voteEventImporter) NewID(model.Record) string {
	return ocdID(model.KindVoteEvent)
}

func (i *voteEventImporter) JurisdictionFor(r *Resolver, _ model.Record) string {
	return r.Jurisdiction()
}

func (i *voteEventImporter) OrderedFields() map[string]bool { return noOrderedFields }

// bill_action_id is computed by linkBillActions; candidates never carry it.
func (i *voteEventImporter) DeferredFields() map[string]bool {
	return map[string]bool{"bill_action_id": true}
}

func (i *voteEventImporter) PostBatch(ctx context.Context, tx store.Tx, r *Resolver, recs []model.Record, rep *Report) error {
	if err := i.linkBillActions(ctx, tx, recs, rep); err != nil {
		return err
	}
	return i.deleteStale(ctx, tx, r, rep)
}

// linkBillActions finds, for each vote naming a bill action, the persisted
// action matching (chamber, date, description). If one action is claimed by
// more than one vote, or one vote matches more than one action, the link is
// left unset rather than guessed.
func (i *voteEventImporter) linkBillActions(ctx context.Context, tx store.Tx, recs []model.Record, rep *Report) error {
	log := zap.L().With(zap.String("component", "merge.vote_event"))

	type claim struct {
		voteID   string
		actionID string
	}
	var claims []claim
	claimsPerAction := make(map[string]int)

	for _, rec := range recs {
		v := rec.(*model.VoteEvent)
		if v.BillAction == "" || v.Bill.IsZero() {
			continue
		}
		bill, err := tx.Get(ctx, v.Bill.ID)
		if err != nil {
			return err
		}
		if bill == nil {
			continue
		}
		actions, _ := bill.Fields["actions"].([]any)

		var matched []string
		for idx, a := range actions {
			action, ok := a.(map[string]any)
			if !ok {
				continue
			}
			desc, _ := action["description"].(string)
			date, _ := action["date"].(string)
			org, _ := action["organization_id"].(string)
			if desc == v.BillAction && date == v.StartDate && org == v.Organization.ID {
				matched = append(matched, fmt.Sprintf("%s/action/%d", bill.ID, idx))
			}
		}

		switch len(matched) {
		case 1:
			claims = append(claims, claim{voteID: rep.IDMap[v.TransientID()], actionID: matched[0]})
			claimsPerAction[matched[0]]++
		case 0:
			log.Debug("vote names unknown bill action",
				zap.String("bill", bill.ID),
				zap.String("action", v.BillAction),
			)
		default:
			log.Warn("vote matches multiple bill actions, leaving unset",
				zap.String("bill", bill.ID),
				zap.String("action", v.BillAction),
			)
		}
	}

	for _, c := range claims {
		if claimsPerAction[c.actionID] > 1 {
			log.Warn("bill action claimed by multiple votes, leaving unset",
				zap.String("action", c.actionID))
			continue
		}
		ent, err := tx.Get(ctx, c.voteID)
		if err != nil {
			return err
		}
		if ent == nil {
			continue
		}
		if cur, _ := ent.Fields["bill_action_id"].(string); cur == c.actionID {
			continue
		}
		ent.Fields["bill_action_id"] = c.actionID
		if err := tx.Update(ctx, ent); err != nil {
			return err
		}
	}
	return nil
}

// deleteStale removes previously persisted vote events attached to bills
// reprocessed this run that this run did not produce. Deletion is scoped
// strictly to parents actually reprocessed; bills untouched by this run
// keep their votes.
func (i *voteEventImporter) deleteStale(ctx context.Context, tx store.Tx, r *Resolver, rep *Report) error {
	billIDs := r.ProcessedIDs(model.KindBill)
	if len(billIDs) == 0 {
		return nil
	}
	persisted, err := tx.ChildIDs(ctx, model.KindVoteEvent, "bill_id", billIDs)
	if err != nil {
		return err
	}
	var stale []string
	for _, id := range persisted {
		if !r.WasProcessed(model.KindVoteEvent, id) {
			stale = append(stale, id)
		}
	}
	n, err := tx.Delete(ctx, stale)
	if err != nil {
		return err
	}
	rep.Deleted += int(n)
	return nil
}
