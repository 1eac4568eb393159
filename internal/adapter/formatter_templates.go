package adapter

import (
	"embed"
	"strings"
	"sync"
	"text/template"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/util"
)

//go:embed templates/*.tmpl
var chatTemplateFS embed.FS

const (
	viewTemplate    = "view.tmpl"
	libraryTemplate = "library.tmpl"
)

var chatTemplates = sync.OnceValues(func() (*template.Template, error) {
	return template.New("chat").Funcs(template.FuncMap{
		"add":      func(a, b int) int { return a + b },
		"stars":    stars,
		"truncate": util.TruncateString,
	}).ParseFS(chatTemplateFS, "templates/*.tmpl")
})

// renderChat executes one chat template without its trailing newlines.
func renderChat(name string, data any) (string, error) {
	set, err := chatTemplates()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := set.ExecuteTemplate(&sb, name, data); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// stars renders a rating as filled stars, capped at the maximum rating.
func stars(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("★", min(n, constants.GenerationConfig.MaxRating))
}
