package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kapu/shortlist-go/internal/command"
)

func TestParseMessage(t *testing.T) {
	ma := NewMessageAdapter("!")

	tests := []struct {
		name   string
		input  string
		action string
		params map[string]any
	}{
		{"plain text is a query", "  un polar  nordique ", command.ActionSubmit, map[string]any{"query": "un polar nordique"}},
		{"search command", "!cherche Dune", command.ActionSubmit, map[string]any{"query": "Dune"}},
		{"surprise", "!surprise", command.ActionSurprise, map[string]any{}},
		{"reject is 1-based", "!pas 2", command.ActionReject, map[string]any{"index": 1}},
		{"accept", "!GARDE 3", command.ActionAccept, map[string]any{"index": 2}},
		{"reset", "!relance", command.ActionReset, map[string]any{}},
		{"category with filter", "!categorie video_game PS5", command.ActionCategory, map[string]any{"category": "video_game", "sub_filter": "PS5"}},
		{"filter only", "!filtre Dark Romance", command.ActionCategory, map[string]any{"sub_filter": "Dark Romance"}},
		{"sign in", "!connexion alice", command.ActionSignIn, map[string]any{"identity": "alice"}},
		{"library search", "!biblio fond", command.ActionLibrary, map[string]any{"search": "fond"}},
		{"rating", "!note 4 Le Nom du vent", command.ActionRating, map[string]any{"rating": 4, "title": "Le Nom du vent"}},
		{"favorite", "!favori Fondation", command.ActionFavorite, map[string]any{"title": "Fondation"}},
		{"help", "!aide", ActionHelp, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ma.ParseMessage(tt.input)
			assert.True(t, parsed.Known())
			assert.Equal(t, tt.action, parsed.Event.Action)
			assert.Equal(t, tt.params, parsed.Event.Params)
		})
	}
}

func TestParseMessageUnknown(t *testing.T) {
	ma := NewMessageAdapter("!")
	for _, input := range []string{"", "!", "!pas", "!pas 4", "!garde zéro", "!note bien Dune", "!favori", "!danse", "\x00\x01"} {
		parsed := ma.ParseMessage(input)
		assert.False(t, parsed.Known(), input)
	}
}

func TestParseMessageCustomPrefix(t *testing.T) {
	ma := NewMessageAdapter("/")
	assert.Equal(t, command.ActionReset, ma.ParseMessage("/reset").Event.Action)
	assert.Equal(t, command.ActionSubmit, ma.ParseMessage("!reset").Event.Action)
}
