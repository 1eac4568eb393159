package adapter

import (
	"fmt"
	"strings"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/recommend"
)

// ResponseFormatter renders session state as chat text.
type ResponseFormatter struct {
	prefix string
}

// NewResponseFormatter creates a new ResponseFormatter
func NewResponseFormatter(prefix string) *ResponseFormatter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "!"
	}
	return &ResponseFormatter{prefix: prefix}
}

// FormatResult renders an action result: the library when present,
// otherwise the session.
func (f *ResponseFormatter) FormatResult(result *command.Result) string {
	if result == nil {
		return ""
	}
	if result.Library != nil {
		text := f.FormatLibrary(*result.Library)
		if result.Favorite != nil {
			mark := "retiré des favoris"
			if *result.Favorite {
				mark = "ajouté aux favoris"
			}
			text = "✅ " + mark + "\n\n" + text
		}
		return text
	}
	return f.FormatView(result.View)
}

// FormatView renders the displayed batch.
func (f *ResponseFormatter) FormatView(v recommend.View) string {
	text, err := renderChat(viewTemplate, v)
	if err != nil {
		return f.fallbackView(v)
	}
	return text
}

func (f *ResponseFormatter) fallbackView(v recommend.View) string {
	var sb strings.Builder
	sb.WriteString(v.CategoryLabel)
	for _, s := range v.Slots {
		sb.WriteString(fmt.Sprintf("\n%d. %s", s.Index+1, s.Recommendation.Title))
	}
	if v.Notice != "" {
		sb.WriteString("\n⚠️ " + v.Notice)
	}
	return sb.String()
}

// FormatLibrary renders the saved collection.
func (f *ResponseFormatter) FormatLibrary(lib domain.LibraryView) string {
	text, err := renderChat(libraryTemplate, lib)
	if err != nil {
		return fmt.Sprintf("📖 Ma bibliothèque (%d)", lib.Total)
	}
	return text
}

// FormatFact renders a waiting-screen fact.
func (f *ResponseFormatter) FormatFact(fact string) string {
	return fmt.Sprintf("💡 Le saviez-vous ? %s", fact)
}

// FormatHelp lists the chat commands.
func (f *ResponseFormatter) FormatHelp() string {
	p := f.prefix
	return fmt.Sprintf(`✨ The Shortlist

🔎 Recherche
  [texte] ou %scherche [texte] - 3 recommandations
  %ssurprise - une sélection au hasard
  %srelance - tout relancer

👍 Réagir
  %spas [1-3] - pas pour moi, remplacer
  %sgarde [1-3] - garder dans ma bibliothèque

🗂 Catégorie
  %scategorie [nom] [filtre] - changer de catégorie
  %sfiltre [valeur] - plateforme ou genre

📖 Bibliothèque
  %sconnexion [pseudo] / %sdeconnexion
  %sbiblio [recherche]
  %snote [1-5] [titre]
  %sfavori [titre]
  %sretirer [titre]`, p, p, p, p, p, p, p, p, p, p, p, p, p)
}

// FormatError formats error message
func (f *ResponseFormatter) FormatError(message string) string {
	return fmt.Sprintf("❌ %s", message)
}

// FormatUnknown answers a line that matched no command.
func (f *ResponseFormatter) FormatUnknown() string {
	return f.FormatError(fmt.Sprintf("Commande inconnue. Tapez %saide.", f.prefix))
}
