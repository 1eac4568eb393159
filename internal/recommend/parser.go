package recommend

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/util"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

// maxCandidates bounds how many bracket openings are tried in one response.
const maxCandidates = 16

var fieldAliases = map[string][]string{
	"title":       {"title", "titre", "name", "nom"},
	"creator":     {"creator", "auteur", "author", "studio", "director", "realisateur", "réalisateur"},
	"badge":       {"badge", "tag"},
	"description": {"description", "desc", "pitch", "pourquoi"},
}

// generatedItem accepts the canonical keys and their French aliases.
type generatedItem struct {
	Title       string
	Creator     string
	Badge       string
	Description string
}

func (g *generatedItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	lowered := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	pick := func(canonical string) string {
		for _, alias := range fieldAliases[canonical] {
			raw, ok := lowered[alias]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}

	g.Title = pick("title")
	g.Creator = pick("creator")
	g.Badge = pick("badge")
	g.Description = pick("description")
	return nil
}

func (g generatedItem) validate() error {
	if g.Title == "" {
		return fmt.Errorf("missing title")
	}
	if g.Description == "" {
		return fmt.Errorf("missing description for %q", g.Title)
	}
	return nil
}

func (g generatedItem) recommendation() domain.Recommendation {
	return domain.Recommendation{
		Title:       g.Title,
		Creator:     g.Creator,
		Badge:       g.Badge,
		Description: g.Description,
	}
}

// ParseBatch extracts exactly size recommendations from raw model text.
// Anything else is a GenerationFormatError; no partial batch is returned.
func ParseBatch(text string, size int) ([]domain.Recommendation, error) {
	var items []generatedItem
	if !decodeFirst(text, '[', ']', &items) {
		return nil, formatError("no JSON array found in response", text, nil)
	}
	if len(items) != size {
		return nil, formatError(fmt.Sprintf("expected %d recommendations, got %d", size, len(items)), text, nil)
	}

	recs := make([]domain.Recommendation, 0, size)
	seen := NewExclusionList()
	for _, item := range items {
		if err := item.validate(); err != nil {
			return nil, formatError("invalid recommendation", text, err)
		}
		if !seen.Add(item.Title) {
			return nil, formatError(fmt.Sprintf("duplicate title %q in batch", item.Title), text, nil)
		}
		recs = append(recs, item.recommendation())
	}
	return recs, nil
}

// ParseSingle extracts one recommendation. A bare object or a one-element
// array are both accepted.
func ParseSingle(text string) (domain.Recommendation, error) {
	var items []generatedItem
	arrayFirst := strings.IndexByte(text, '[') >= 0 &&
		(strings.IndexByte(text, '{') < 0 || strings.IndexByte(text, '[') < strings.IndexByte(text, '{'))
	if arrayFirst && decodeFirst(text, '[', ']', &items) && len(items) == 1 {
		if err := items[0].validate(); err != nil {
			return domain.Recommendation{}, formatError("invalid recommendation", text, err)
		}
		return items[0].recommendation(), nil
	}

	var item generatedItem
	if !decodeFirst(text, '{', '}', &item) {
		return domain.Recommendation{}, formatError("no JSON object found in response", text, nil)
	}
	if err := item.validate(); err != nil {
		return domain.Recommendation{}, formatError("invalid recommendation", text, err)
	}
	return item.recommendation(), nil
}

// decodeFirst tries each balanced open..close substring in order until one
// decodes into dest.
func decodeFirst(text string, open, close byte, dest any) bool {
	data := []byte(text)
	from := 0
	for attempt := 0; attempt < maxCandidates; attempt++ {
		start := bytes.IndexByte(data[from:], open)
		if start < 0 {
			return false
		}
		start += from

		end, ok := balancedEnd(data, start, open, close)
		if ok && json.Unmarshal(data[start:end+1], dest) == nil {
			return true
		}
		from = start + 1
	}
	return false
}

// balancedEnd returns the index of the bracket closing data[start], skipping
// brackets inside JSON strings.
func balancedEnd(data []byte, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func formatError(message, raw string, cause error) error {
	return apperrors.NewGenerationFormatError(message,
		util.TruncateString(raw, constants.GenerationConfig.PreviewLength), cause)
}
