package generation

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

//go:embed prompts/architect.tmpl
var architectPrompt string

// DefaultCompany names the agency in the system instruction when none is set.
const DefaultCompany = "the agency"

// PromptData is what the system instruction template is executed with.
type PromptData struct {
	Company  string
	RateCard string
}

// DefaultTemplate returns the built-in system instruction template.
func DefaultTemplate() *template.Template {
	return template.Must(template.New("architect").Parse(architectPrompt))
}

// ParseTemplate parses a custom system instruction. It must reference
// {{.RateCard}}, otherwise the model would never see the rate card.
func ParseTemplate(text string) (*template.Template, error) {
	if !strings.Contains(text, ".RateCard") {
		return nil, fmt.Errorf("prompt template must reference {{.RateCard}}")
	}
	t, err := template.New("custom").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return t, nil
}

func renderPrompt(t *template.Template, company string, rateCard []sow.RateCardItem) (string, error) {
	if company == "" {
		company = DefaultCompany
	}
	var b strings.Builder
	if err := t.Execute(&b, PromptData{Company: company, RateCard: sow.RenderRateCard(rateCard)}); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}
