package prompt

import (
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
)

const darkRomance = "Dark Romance"

// Request is everything a prompt is built from.
type Request struct {
	Category   domain.Category
	Query      string
	SubFilter  string
	Favorites  []string
	Exclusions []string
	// Keep lists the titles still displayed next to the slot being replaced.
	Keep []string
}

// Composer turns a Request into generation text. It never fails: a template
// error falls back to the inline prompt.
type Composer struct {
	builder  *PromptBuilder
	language string
	market   string
	logger   *zap.Logger
}

func NewComposer(builder *PromptBuilder, language, market string, logger *zap.Logger) *Composer {
	if builder == nil {
		builder = DefaultPromptBuilder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		builder:  builder,
		language: language,
		market:   market,
		logger:   logger,
	}
}

// ComposeBatch builds the three-item request.
func (c *Composer) ComposeBatch(req Request) string {
	profile := domain.ProfileFor(req.Category)
	data := BatchPromptData{
		Role:          profile.Role,
		CategoryLabel: profile.Label,
		ItemNoun:      profile.ItemNoun,
		CreatorLabel:  profile.CreatorLabel,
		Query:         req.Query,
		SubFilterKind: string(profile.SubFilter.Kind),
		SubFilter:     effectiveSubFilter(profile, req.SubFilter),
		Favorites:     req.Favorites,
		Exclusions:    req.Exclusions,
		Language:      c.language,
		Market:        c.market,
		Badges:        badgesFor(req.SubFilter),
		Count:         constants.BatchConfig.Size,
	}

	text, err := c.builder.Render(TemplateBatch, data)
	if err != nil {
		c.logger.Warn("Batch prompt template failed, using fallback", zap.Error(err))
		return FallbackBatchPrompt(data)
	}
	return text
}

// ComposeReplacement builds the single-item request used after a reject.
func (c *Composer) ComposeReplacement(req Request) string {
	profile := domain.ProfileFor(req.Category)
	data := ReplacementPromptData{
		Role:          profile.Role,
		CategoryLabel: profile.Label,
		ItemNoun:      profile.ItemNoun,
		CreatorLabel:  profile.CreatorLabel,
		Query:         req.Query,
		SubFilterKind: string(profile.SubFilter.Kind),
		SubFilter:     effectiveSubFilter(profile, req.SubFilter),
		Exclusions:    req.Exclusions,
		Keep:          req.Keep,
		Language:      c.language,
		Market:        c.market,
		Badges:        badgesFor(req.SubFilter),
	}

	text, err := c.builder.Render(TemplateReplacement, data)
	if err != nil {
		c.logger.Warn("Replacement prompt template failed, using fallback", zap.Error(err))
		return FallbackReplacementPrompt(data)
	}
	return text
}

func effectiveSubFilter(profile *domain.CategoryProfile, value string) string {
	if profile.SubFilter.Kind == domain.SubFilterNone || profile.IsDefaultSubFilter(value) {
		return ""
	}
	return value
}

func badgesFor(subFilter string) []string {
	badges := append([]string{}, Badges...)
	if subFilter == darkRomance {
		badges = append(badges, SpicyBadge)
	}
	return badges
}
