package model

import "github.com/rotisserie/eris"

// LegislativeSession is one session declared by a jurisdiction.
type LegislativeSession struct {
	Identifier     string `json:"identifier"`
	Name           string `json:"name"`
	Classification string `json:"classification"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}

// Jurisdiction is a candidate jurisdiction record. Jurisdiction ids are
// deterministic division-derived identifiers assigned by the producer, so
// the id doubles as the natural key.
type Jurisdiction struct {
	Base
	JurisdictionID      string               `json:"jurisdiction_id"`
	Name                string               `json:"name"`
	URL                 string               `json:"url"`
	Classification      string               `json:"classification"`
	DivisionID          string               `json:"division_id"`
	LegislativeSessions []LegislativeSession `json:"legislative_sessions"`
	FeatureFlags        []string             `json:"feature_flags"`
}

func (j *Jurisdiction) Kind() string { return KindJurisdiction }

func (j *Jurisdiction) Validate() error {
	if j.JurisdictionID == "" {
		return eris.Errorf("model: jurisdiction %s has no jurisdiction_id", j.TransientID())
	}
	if j.Name == "" {
		return eris.Errorf("model: jurisdiction %q has no name", j.JurisdictionID)
	}
	return nil
}
