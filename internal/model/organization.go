package model

import "github.com/rotisserie/eris"

// Classifications for which an organization is shared across jurisdictions
// rather than scoped to one (a party is the same entity everywhere).
var JurisdictionlessClassifications = map[string]bool{
	"party": true,
}

// Organization is a candidate organization record.
type Organization struct {
	Base
	Name            string          `json:"name"`
	Classification  string          `json:"classification"`
	Parent          Ref             `json:"parent_id"`
	FoundingDate    string          `json:"founding_date"`
	DissolutionDate string          `json:"dissolution_date"`
	Image           string          `json:"image"`
	OtherNames      []OtherName     `json:"other_names"`
	ContactDetails  []ContactDetail `json:"contact_details"`
	Links           []Link          `json:"links"`
	Sources         []Link          `json:"sources"`
}

func (o *Organization) Kind() string { return KindOrganization }

func (o *Organization) Validate() error {
	if o.Name == "" {
		return eris.Errorf("model: organization %s has no name", o.TransientID())
	}
	if o.Classification == "" {
		return eris.Errorf("model: organization %q has no classification", o.Name)
	}
	return nil
}

// JurisdictionScoped reports whether identity matching for this organization
// is confined to the run's jurisdiction.
func (o *Organization) JurisdictionScoped() bool {
	return !JurisdictionlessClassifications[o.Classification]
}
