package model

import "github.com/rotisserie/eris"

// DupePolicy selects what happens when a link's URL is already present
// somewhere in the target collection.
type DupePolicy string

const (
	// DupeError aborts on a duplicate URL. Default.
	DupeError DupePolicy = "error"
	// DupeIgnore silently discards the new link.
	DupeIgnore DupePolicy = "ignore"
)

// Document is one slot in a named sub-collection of documents, versions or
// media. Slots are identified by (note, classification, date) and own a list
// of links to concrete representations.
type Document struct {
	Note           string    `json:"note"`
	Date           string    `json:"date"`
	Classification string    `json:"classification"`
	Links          []DocLink `json:"links"`
}

// DocLink is one representation of a document slot.
type DocLink struct {
	MediaType string `json:"media_type"`
	URL       string `json:"url"`
}

// AddDocumentLink attaches a link to the slot identified by (note,
// classification, date), creating the slot if needed. A URL already present
// anywhere in the collection is a conflict handled per policy. The merge
// engine's exact-duplicate guarantees rely on producers building collections
// exclusively through this helper.
func AddDocumentLink(coll *[]Document, note, date, classification string, link DocLink, policy DupePolicy) error {
	if link.URL == "" {
		return eris.New("model: document link requires a url")
	}

	for _, d := range *coll {
		for _, l := range d.Links {
			if l.URL == link.URL {
				if policy == DupeIgnore {
					return nil
				}
				return eris.Errorf("model: duplicate document link url %q (slot %q)", link.URL, d.Note)
			}
		}
	}

	idx := -1
	for i, d := range *coll {
		if d.Note == note && d.Classification == classification && d.Date == date {
			if idx >= 0 {
				// Two slots sharing one identity means the collection was
				// built outside this helper.
				return eris.Errorf("model: multiple document slots match (%q, %q, %q)", note, classification, date)
			}
			idx = i
		}
	}

	if idx >= 0 {
		(*coll)[idx].Links = append((*coll)[idx].Links, link)
		return nil
	}
	*coll = append(*coll, Document{
		Note:           note,
		Date:           date,
		Classification: classification,
		Links:          []DocLink{link},
	})
	return nil
}
