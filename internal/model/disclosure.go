package model

import "github.com/rotisserie/eris"

// Disclosure is a candidate disclosure filing: a registrant disclosing an
// interest to an authority on an effective date.
type Disclosure struct {
	Base
	Classification string     `json:"classification"`
	EffectiveDate  string     `json:"effective_date"`
	SubmittedDate  string     `json:"submitted_date"`
	Registrant     Ref        `json:"registrant_id"`
	Authority      Ref        `json:"authority_id"`
	Documents      []Document `json:"documents"`
	Sources        []Link     `json:"sources"`
}

func (d *Disclosure) Kind() string { return KindDisclosure }

func (d *Disclosure) Validate() error {
	if d.Registrant.IsZero() {
		return eris.Errorf("model: disclosure %s has no registrant", d.TransientID())
	}
	if d.Authority.IsZero() {
		return eris.Errorf("model: disclosure %s has no authority", d.TransientID())
	}
	if d.EffectiveDate == "" {
		return eris.Errorf("model: disclosure %s has no effective date", d.TransientID())
	}
	return nil
}
