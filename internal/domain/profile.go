package domain

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/categories.yaml
var categoriesYAML []byte

// SubFilterKind tells which refinement applies to a category.
type SubFilterKind string

const (
	SubFilterNone     SubFilterKind = "none"
	SubFilterPlatform SubFilterKind = "platform"
	SubFilterGenre    SubFilterKind = "genre"
)

type SubFilter struct {
	Kind    SubFilterKind `yaml:"kind"`
	Default string        `yaml:"default"`
	Options []string      `yaml:"options"`
}

// CategoryProfile is the per-category row of the strategy table: prompt
// vocabulary, sub-filter and the texts shown while a batch is generating.
type CategoryProfile struct {
	Category      Category  `yaml:"-"`
	Label         string    `yaml:"label"`
	MediaLabel    string    `yaml:"media_label"`
	Role          string    `yaml:"role"`
	ItemNoun      string    `yaml:"item_noun"`
	CreatorLabel  string    `yaml:"creator_label"`
	SurpriseQuery string    `yaml:"surprise_query"`
	SubFilter     SubFilter `yaml:"sub_filter"`
	Facts         []string  `yaml:"facts"`
}

var profiles = mustLoadProfiles(categoriesYAML)

func mustLoadProfiles(data []byte) map[Category]*CategoryProfile {
	loaded, err := loadProfiles(data)
	if err != nil {
		panic(err)
	}
	return loaded
}

func loadProfiles(data []byte) (map[Category]*CategoryProfile, error) {
	var raw map[Category]*CategoryProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}

	for _, c := range AllCategories {
		p, ok := raw[c]
		if !ok || p == nil {
			return nil, fmt.Errorf("category table misses %q", c)
		}
		p.Category = c
		if p.SubFilter.Kind == "" {
			p.SubFilter.Kind = SubFilterNone
		}
	}
	return raw, nil
}

// ProfileFor returns the strategy-table row of a category.
func ProfileFor(c Category) *CategoryProfile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profiles[CategoryBook]
}

// ResolveSubFilter validates a user-chosen filter value. Empty selects the
// default; categories without a filter always resolve to "".
func (p *CategoryProfile) ResolveSubFilter(value string) (string, error) {
	if p.SubFilter.Kind == SubFilterNone {
		return "", nil
	}
	if value == "" {
		return p.SubFilter.Default, nil
	}
	for _, opt := range p.SubFilter.Options {
		if opt == value {
			return opt, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q for %s", p.SubFilter.Kind, value, p.Category)
}

// IsDefaultSubFilter reports whether value means "no restriction".
func (p *CategoryProfile) IsDefaultSubFilter(value string) bool {
	return value == "" || value == p.SubFilter.Default
}
