package prompt

// Badges the generator picks from. SpicyBadge is offered only for Dark Romance.
var (
	Badges     = []string{"🔥 Pépite du moment", "💎 Chef-d'œuvre culte", "✨ Très rare", "📈 En tendance"}
	SpicyBadge = "🌶️ Must-read Spicy"
)

// BatchPromptData feeds batch.tmpl.
type BatchPromptData struct {
	Role          string
	CategoryLabel string
	ItemNoun      string
	CreatorLabel  string
	Query         string
	SubFilterKind string
	SubFilter     string
	Favorites     []string
	Exclusions    []string
	Language      string
	Market        string
	Badges        []string
	Count         int
}

// ReplacementPromptData feeds replacement.tmpl.
type ReplacementPromptData struct {
	Role          string
	CategoryLabel string
	ItemNoun      string
	CreatorLabel  string
	Query         string
	SubFilterKind string
	SubFilter     string
	Exclusions    []string
	Keep          []string
	Language      string
	Market        string
	Badges        []string
}
