package model

import "github.com/rotisserie/eris"

// Post is a candidate post (seat) record within an organization.
type Post struct {
	Base
	Label              string `json:"label"`
	Role               string `json:"role"`
	Organization       Ref    `json:"organization_id"`
	DivisionID         string `json:"division_id"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	MaximumMemberships int    `json:"maximum_memberships"`
}

func (p *Post) Kind() string { return KindPost }

func (p *Post) Validate() error {
	if p.Label == "" {
		return eris.Errorf("model: post %s has no label", p.TransientID())
	}
	if p.Organization.IsZero() {
		return eris.Errorf("model: post %q has no organization", p.Label)
	}
	return nil
}
