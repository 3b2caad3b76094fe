package model

import "github.com/rotisserie/eris"

// EventLocation is where an event takes place.
type EventLocation struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Note string `json:"note"`
}

// EventRelatedEntity ties an agenda item to another entity by reference.
type EventRelatedEntity struct {
	EntityType string `json:"entity_type"`
	Name       string `json:"name"`
	Entity     Ref    `json:"entity_id"`
	Note       string `json:"note"`
}

// AgendaItem is one item of an event's agenda.
type AgendaItem struct {
	Description     string               `json:"description"`
	Order           int                  `json:"order"`
	Subjects        []string             `json:"subjects"`
	RelatedEntities []EventRelatedEntity `json:"related_entities"`
}

// Participant is a person or organization taking part in an event.
type Participant struct {
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	Note       string `json:"note"`
	Entity     Ref    `json:"entity_id"`
}

// Event is a candidate event record (hearing, session day, meeting).
type Event struct {
	Base
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Classification string        `json:"classification"`
	StartDate      string        `json:"start_date"`
	EndDate        string        `json:"end_date"`
	AllDay         bool          `json:"all_day"`
	Status         string        `json:"status"`
	Location       EventLocation `json:"location"`
	AgendaItems    []AgendaItem  `json:"agenda"`
	Participants   []Participant `json:"participants"`
	Media          []Document    `json:"media"`
	Documents      []Document    `json:"documents"`
	Links          []Link        `json:"links"`
	Sources        []Link        `json:"sources"`
}

func (e *Event) Kind() string { return KindEvent }

func (e *Event) Validate() error {
	if e.Name == "" {
		return eris.Errorf("model: event %s has no name", e.TransientID())
	}
	if e.StartDate == "" {
		return eris.Errorf("model: event %q has no start date", e.Name)
	}
	return nil
}

// AddMediaLink attaches a link to the named media slot under the
// associated-link contract.
func (e *Event) AddMediaLink(note, date, classification string, link DocLink, policy DupePolicy) error {
	return AddDocumentLink(&e.Media, note, date, classification, link, policy)
}
