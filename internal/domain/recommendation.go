package domain

// Recommendation is one transient suggestion held in a session slot.
type Recommendation struct {
	Title       string `json:"title"`
	Creator     string `json:"creator,omitempty"`
	Badge       string `json:"badge,omitempty"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// ToLibraryEntry converts an accepted recommendation into a fresh entry.
func (r Recommendation) ToLibraryEntry(identity string, category Category) LibraryEntry {
	return LibraryEntry{
		Identity: identity,
		Category: category,
		Title:    r.Title,
		Creator:  r.Creator,
	}
}
