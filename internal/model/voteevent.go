package model

import "github.com/rotisserie/eris"

// VoteCount is an aggregate tally for one option.
type VoteCount struct {
	Option string `json:"option"`
	Value  int    `json:"value"`
}

// PersonVote is one voter's roll-call entry.
type PersonVote struct {
	Option    string `json:"option"`
	VoterName string `json:"voter_name"`
	Voter     Ref    `json:"voter_id"`
	Note      string `json:"note"`
}

// VoteEvent is a candidate vote event record. BillAction, when set, names
// the description of the historical bill action this vote decided; the link
// to the stored action is resolved post-batch and left unset on ambiguity.
type VoteEvent struct {
	Base
	Identifier           string       `json:"identifier"`
	MotionText           string       `json:"motion_text"`
	MotionClassification []string     `json:"motion_classification"`
	StartDate            string       `json:"start_date"`
	EndDate              string       `json:"end_date"`
	Result               string       `json:"result"`
	LegislativeSession   string       `json:"legislative_session"`
	Organization         Ref          `json:"organization_id"`
	Bill                 Ref          `json:"bill_id"`
	BillAction           string       `json:"bill_action"`
	BillActionID         string       `json:"bill_action_id"`
	Counts               []VoteCount  `json:"counts"`
	Votes                []PersonVote `json:"votes"`
	Sources              []Link       `json:"sources"`
}

func (v *VoteEvent) Kind() string { return KindVoteEvent }

func (v *VoteEvent) Validate() error {
	if v.Identifier == "" && v.Bill.IsZero() {
		return eris.Errorf("model: vote event %s has neither identifier nor bill", v.TransientID())
	}
	if v.StartDate == "" {
		return eris.Errorf("model: vote event %s has no start date", v.TransientID())
	}
	if v.Organization.IsZero() {
		return eris.Errorf("model: vote event %s has no organization", v.TransientID())
	}
	return nil
}
