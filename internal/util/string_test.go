package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "case and accents", in: "Le Château", want: "le chateau"},
		{name: "punctuation collapses", in: "  Hollow Knight: Silksong!  ", want: "hollow knight silksong"},
		{name: "digits kept", in: "Persona 5 Royal", want: "persona 5 royal"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleKey(tt.in))
		})
	}
}

func TestTitleKeyMatchesVariants(t *testing.T) {
	assert.Equal(t, TitleKey("L'Étranger"), TitleKey("l etranger"))
	assert.NotEqual(t, TitleKey("Dune"), TitleKey("Dune Messiah"))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Le Seigneur des Anneaux", "seigneur"))
	assert.True(t, ContainsFold("Pokémon Écarlate", "pokemon"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("Dune", "zelda"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab...", TruncateString("abcdef", 2))
	assert.Equal(t, "éé...", TruncateString("ééé", 2))
}
