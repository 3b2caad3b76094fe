package model

import "github.com/rotisserie/eris"

// BillAction is one step in a bill's chronological action narrative. Action
// order is significant: the engine compares actions order-preserving.
type BillAction struct {
	Description    string   `json:"description"`
	Date           string   `json:"date"`
	Organization   Ref      `json:"organization_id"`
	Classification []string `json:"classification"`
	Order          int      `json:"order"`
}

// Sponsorship names a person or organization sponsoring a bill.
type Sponsorship struct {
	Name           string `json:"name"`
	EntityType     string `json:"entity_type"`
	Classification string `json:"classification"`
	Primary        bool   `json:"primary"`
	Person         Ref    `json:"person_id"`
	Organization   Ref    `json:"organization_id"`
}

// RelatedBill is a cross-reference to another bill, usually in a different
// session. ResolvedID is filled in post-batch once the whole run is known.
type RelatedBill struct {
	Identifier         string `json:"identifier"`
	LegislativeSession string `json:"legislative_session"`
	RelationType       string `json:"relation_type"`
	ResolvedID         string `json:"resolved_id"`
}

// Abstract is a summary of a bill from some source.
type Abstract struct {
	Abstract string `json:"abstract"`
	Note     string `json:"note"`
}

// Bill is a candidate bill record.
type Bill struct {
	Base
	Identifier         string        `json:"identifier"`
	LegislativeSession string        `json:"legislative_session"`
	Title              string        `json:"title"`
	Classification     []string      `json:"classification"`
	Subject            []string      `json:"subject"`
	FromOrganization   Ref           `json:"from_organization"`
	Abstracts          []Abstract    `json:"abstracts"`
	OtherTitles        []OtherName   `json:"other_titles"`
	OtherIdentifiers   []OtherName   `json:"other_identifiers"`
	Actions            []BillAction  `json:"actions"`
	Sponsorships       []Sponsorship `json:"sponsorships"`
	RelatedBills       []RelatedBill `json:"related_bills"`
	Versions           []Document    `json:"versions"`
	Documents          []Document    `json:"documents"`
	Sources            []Link        `json:"sources"`
}

func (b *Bill) Kind() string { return KindBill }

func (b *Bill) Validate() error {
	if b.Identifier == "" {
		return eris.Errorf("model: bill %s has no identifier", b.TransientID())
	}
	if b.LegislativeSession == "" {
		return eris.Errorf("model: bill %q has no legislative session", b.Identifier)
	}
	return nil
}

// AddVersionLink attaches a link to the named version slot under the
// associated-link contract.
func (b *Bill) AddVersionLink(note, date, classification string, link DocLink, policy DupePolicy) error {
	return AddDocumentLink(&b.Versions, note, date, classification, link, policy)
}

// AddDocumentLink attaches a link to the named document slot under the
// associated-link contract.
func (b *Bill) AddDocumentLink(note, date, classification string, link DocLink, policy DupePolicy) error {
	return AddDocumentLink(&b.Documents, note, date, classification, link, policy)
}
