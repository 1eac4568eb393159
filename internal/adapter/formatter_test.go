package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/recommend"
)

func TestFormatView(t *testing.T) {
	f := NewResponseFormatter("!")
	text := f.FormatView(recommend.View{
		CategoryLabel: "📚 Livres",
		SubFilter:     "Classiques",
		PendingQuery:  "Dune",
		State:         recommend.StateReady,
		Slots: []recommend.SlotView{
			{Index: 1, State: recommend.SlotReady, Recommendation: domain.Recommendation{
				Title: "Hypérion", Creator: "Dan Simmons", Badge: "💎 Pépite", Description: "Des pèlerins.", ImageURL: "https://img/h.jpg",
			}},
			{Index: 2, State: recommend.SlotReplaceFailed, Notice: "Impossible", Recommendation: domain.Recommendation{Title: "Solaris", Description: "Un océan."}},
		},
		Exclusions: []string{"Fondation"},
	})

	assert.Contains(t, text, "📚 Livres · Classiques")
	assert.Contains(t, text, "« Dune »")
	assert.Contains(t, text, "2. Hypérion (Dan Simmons)")
	assert.Contains(t, text, "💎 Pépite · Des pèlerins.")
	assert.Contains(t, text, "3. Solaris")
	assert.Contains(t, text, "⚠️ Impossible")
	assert.Contains(t, text, "Exclus cette session : 1")
	assert.NotContains(t, text, "Recherche de pépites")
}

func TestFormatLibraryResult(t *testing.T) {
	f := NewResponseFormatter("!")
	fav := true
	text := f.FormatResult(&command.Result{
		Favorite: &fav,
		Library: &domain.LibraryView{
			Total:     1,
			Favorites: []domain.LibraryEntry{{Title: "Dune"}},
			TopRated:  []domain.LibraryEntry{{Title: "Dune", Rating: 3}},
			Results:   []domain.LibraryEntry{{Title: "Dune", Rating: 3, IsFavorite: true}},
		},
	})

	assert.Contains(t, text, "ajouté aux favoris")
	assert.Contains(t, text, "Ma bibliothèque (1)")
	assert.Contains(t, text, "• Dune ★★★")

	empty := f.FormatLibrary(domain.LibraryView{})
	assert.Contains(t, empty, "(aucun titre)")
}

func TestFormatHelpUsesPrefix(t *testing.T) {
	help := NewResponseFormatter("/").FormatHelp()
	assert.Contains(t, help, "/pas [1-3]")
	assert.NotContains(t, help, "%!")
}

func TestStarsCapped(t *testing.T) {
	assert.Equal(t, "", stars(0))
	assert.Equal(t, "★★", stars(2))
	assert.Equal(t, "★★★★★", stars(9))
}
