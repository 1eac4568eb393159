package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names are the file names under templates/.
const (
	TemplateBatch       = "batch.tmpl"
	TemplateReplacement = "replacement.tmpl"
)

var templateFuncs = template.FuncMap{
	"quoteAll": quoteAll,
}

// quoteAll renders titles as a comma-separated list of quoted strings.
func quoteAll(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

// PromptBuilder holds the parsed template set. A parse failure is kept and
// returned by every Render so callers can fall back.
type PromptBuilder struct {
	set *template.Template
	err error
}

func NewPromptBuilder() *PromptBuilder {
	set, err := template.New("prompts").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl")
	return &PromptBuilder{set: set, err: err}
}

// DefaultPromptBuilder is parsed once per process.
var DefaultPromptBuilder = sync.OnceValue(NewPromptBuilder)

func (pb *PromptBuilder) Render(name string, data any) (string, error) {
	if pb.err != nil {
		return "", fmt.Errorf("parse prompt templates: %w", pb.err)
	}

	var sb strings.Builder
	if err := pb.set.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
