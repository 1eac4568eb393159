package domain

import (
	"fmt"
	"strings"
)

// Category is one of the fixed media kinds. It scopes storage, prompts and
// the catalog strategy.
type Category string

const (
	CategoryVideoGame Category = "video_game"
	CategoryMovie     Category = "movie"
	CategorySeries    Category = "series"
	CategoryAnime     Category = "anime"
	CategoryManga     Category = "manga"
	CategoryBook      Category = "book"
)

// AllCategories lists categories in menu order.
var AllCategories = []Category{
	CategoryVideoGame,
	CategoryMovie,
	CategorySeries,
	CategoryAnime,
	CategoryManga,
	CategoryBook,
}

func (c Category) String() string {
	return string(c)
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryVideoGame, CategoryMovie, CategorySeries,
		CategoryAnime, CategoryManga, CategoryBook:
		return true
	default:
		return false
	}
}

// IsGame reports whether the category lives in the dedicated game library.
func (c Category) IsGame() bool {
	return c == CategoryVideoGame
}

// ParseCategory accepts the canonical key or the menu label of a category.
func ParseCategory(value string) (Category, error) {
	trimmed := strings.TrimSpace(value)
	if c := Category(strings.ToLower(trimmed)); c.IsValid() {
		return c, nil
	}
	for _, c := range AllCategories {
		if p, ok := profiles[c]; ok && strings.EqualFold(p.Label, trimmed) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}
