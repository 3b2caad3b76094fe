package model

import "github.com/rotisserie/eris"

// Person is a candidate person record.
type Person struct {
	Base
	Name             string          `json:"name"`
	SortName         string          `json:"sort_name"`
	GivenName        string          `json:"given_name"`
	FamilyName       string          `json:"family_name"`
	Gender           string          `json:"gender"`
	BirthDate        string          `json:"birth_date"`
	DeathDate        string          `json:"death_date"`
	Image            string          `json:"image"`
	Summary          string          `json:"summary"`
	Biography        string          `json:"biography"`
	NationalIdentity string          `json:"national_identity"`
	OtherNames       []OtherName     `json:"other_names"`
	ContactDetails   []ContactDetail `json:"contact_details"`
	Links            []Link          `json:"links"`
	Sources          []Link          `json:"sources"`
}

func (p *Person) Kind() string { return KindPerson }

func (p *Person) Validate() error {
	if p.Name == "" {
		return eris.Errorf("model: person %s has no name", p.TransientID())
	}
	return nil
}

// AllNames returns the current name plus every recorded alternate name.
func (p *Person) AllNames() []string {
	names := []string{p.Name}
	for _, n := range p.OtherNames {
		if n.Name != "" {
			names = append(names, n.Name)
		}
	}
	return names
}
