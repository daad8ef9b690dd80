package campaign

import "engageflow/models"

// Identity names one campaign to drive.
type Identity struct {
	ID    string
	Title string
}

// IdentitySet is an insertion-ordered set of campaigns keyed by id. Adding
// an id that is already present replaces its title but keeps its position.
type IdentitySet struct {
	order  []string
	titles map[string]string
}

func NewIdentitySet() *IdentitySet {
	return &IdentitySet{titles: make(map[string]string)}
}

// Add inserts or retitles id. An empty title falls back to the id.
func (s *IdentitySet) Add(id, title string) {
	if id == "" {
		return
	}
	if title == "" {
		title = id
	}
	if _, ok := s.titles[id]; !ok {
		s.order = append(s.order, id)
	}
	s.titles[id] = title
}

// Merge adds every actionable discovered campaign.
func (s *IdentitySet) Merge(discovered []models.Campaign) {
	for _, c := range discovered {
		if c.Actionable() {
			s.Add(c.ID, c.Title)
		}
	}
}

func (s *IdentitySet) Len() int { return len(s.order) }

// All returns the identities in insertion order.
func (s *IdentitySet) All() []Identity {
	out := make([]Identity, len(s.order))
	for i, id := range s.order {
		out[i] = Identity{ID: id, Title: s.titles[id]}
	}
	return out
}
