package model

import "github.com/rotisserie/eris"

// Membership links a person to an organization, optionally through a post.
// PersonName carries the person's name as scraped, so a membership remains
// meaningful when the person reference was late-bound by name.
type Membership struct {
	Base
	Person         Ref             `json:"person_id"`
	PersonName     string          `json:"person_name"`
	Organization   Ref             `json:"organization_id"`
	Post           Ref             `json:"post_id"`
	Label          string          `json:"label"`
	Role           string          `json:"role"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	ContactDetails []ContactDetail `json:"contact_details"`
}

func (m *Membership) Kind() string { return KindMembership }

func (m *Membership) Validate() error {
	if m.Person.IsZero() && m.PersonName == "" {
		return eris.Errorf("model: membership %s names no person", m.TransientID())
	}
	if m.Organization.IsZero() {
		return eris.Errorf("model: membership %s has no organization", m.TransientID())
	}
	return nil
}
