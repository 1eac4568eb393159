package prompt

import (
	"fmt"
	"strings"
)

// FallbackBatchPrompt is used when the embedded template cannot be rendered.
// It carries the same constraints in a compact form.
func FallbackBatchPrompt(data BatchPromptData) string {
	var filter string
	if data.SubFilter != "" {
		filter = fmt.Sprintf("\nFILTRE STRICT : %s", data.SubFilter)
	}
	return fmt.Sprintf(`RÔLE : Tu es %s.
RECHERCHE ACTUELLE : "%s"
FAVORIS : %s
À EXCLURE : %s%s

RÈGLES : Ne propose JAMAIS le titre recherché lui-même. Si tu ne reconnais pas l'œuvre, traite-la comme une ambiance.
Pas de sequels ni spin-offs, pas deux titres de la même licence, uniquement des %s, uniquement disponibles en %s (%s).

Réponds UNIQUEMENT avec un tableau JSON de exactement %d objets {"title", "creator", "badge", "description"}.`,
		data.Role,
		data.Query,
		strings.Join(data.Favorites, ", "),
		strings.Join(data.Exclusions, ", "),
		filter,
		data.ItemNoun,
		data.Language,
		data.Market,
		data.Count,
	)
}

func FallbackReplacementPrompt(data ReplacementPromptData) string {
	exclusions := append(append([]string{}, data.Exclusions...), data.Keep...)
	return fmt.Sprintf(`RÔLE : Tu es %s.
RECHERCHE D'ORIGINE : "%s"
MISSION : propose 1 SEULE nouvelle pépite différente de : %s.
RÈGLES : Ne propose JAMAIS le titre recherché lui-même. Pas de sequels, pas de doublons, uniquement des %s en %s.
Réponds UNIQUEMENT avec un objet JSON {"title", "creator", "badge", "description"}.`,
		data.Role,
		data.Query,
		strings.Join(exclusions, ", "),
		data.ItemNoun,
		data.Language,
	)
}
