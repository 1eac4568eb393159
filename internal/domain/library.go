package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/kapu/shortlist-go/internal/util"
)

// LibraryEntry is a saved item. Title is the natural key within
// (identity, category).
type LibraryEntry struct {
	ID         int64     `json:"id"`
	Identity   string    `json:"-"`
	Category   Category  `json:"category"`
	Title      string    `json:"title"`
	Creator    string    `json:"creator,omitempty"`
	Rating     int       `json:"rating"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsTasteSignal reports whether the entry should be listed as a liked title
// in prompts.
func (e LibraryEntry) IsTasteSignal(minRating int) bool {
	return e.IsFavorite || (minRating > 0 && e.Rating >= minRating)
}

// DislikeRecord is one append-only rejection.
type DislikeRecord struct {
	ID        string    `json:"id"`
	Identity  string    `json:"-"`
	Title     string    `json:"title"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// LibraryView is what the library screen renders for one category.
type LibraryView struct {
	Category  Category       `json:"category"`
	Favorites []LibraryEntry `json:"favorites"`
	TopRated  []LibraryEntry `json:"top_rated"`
	Results   []LibraryEntry `json:"results"`
	Total     int            `json:"total"`
}

// BuildLibraryView pins up to maxFavorites favorites, ranks rated entries and
// filters the full collection by search (case and accent insensitive).
func BuildLibraryView(category Category, entries []LibraryEntry, search string, maxFavorites, topLimit int) LibraryView {
	view := LibraryView{
		Category:  category,
		Favorites: []LibraryEntry{},
		TopRated:  []LibraryEntry{},
		Results:   []LibraryEntry{},
		Total:     len(entries),
	}

	for _, e := range entries {
		if e.IsFavorite && len(view.Favorites) < maxFavorites {
			view.Favorites = append(view.Favorites, e)
		}
		if e.Rating > 0 {
			view.TopRated = append(view.TopRated, e)
		}
	}
	sort.SliceStable(view.TopRated, func(i, j int) bool {
		return view.TopRated[i].Rating > view.TopRated[j].Rating
	})
	if len(view.TopRated) > topLimit {
		view.TopRated = view.TopRated[:topLimit]
	}

	search = strings.TrimSpace(search)
	for _, e := range entries {
		if search == "" || util.ContainsFold(e.Title, search) || util.ContainsFold(e.Creator, search) {
			view.Results = append(view.Results, e)
		}
	}
	return view
}
