// Package render produces the exported forms of a Statement of Work: a
// branded HTML report, a two-sheet workbook and a terminal markdown preview.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

const (
	untitledProject   = "Untitled Project"
	unspecifiedClient = "Not specified"
	defaultBudgetNote = "This investment reflects the scope of work outlined above. Pricing is based on our standard rate card and includes project management and quality assurance."
)

type reportView struct {
	Brand      BrandSettings
	Title      string
	Client     string
	Overview   string
	Outcomes   []string
	Scopes     []scopeView
	ShowBudget bool
	Total      string
	BudgetNote string
}

type scopeView struct {
	Number       int
	Name         string
	Overview     string
	Deliverables template.HTML
	Roles        []roleView
	Subtotal     string
	Assumptions  template.HTML
}

type roleView struct {
	Name  string
	Hours string
	Rate  string
	Total string
}

// HTML renders doc as a standalone, print-ready report. All document text is
// escaped. Sections without content are left out; the budget section is
// shown whenever the document has scopes or a budget note.
func HTML(doc sow.SOWData, brand BrandSettings) (string, error) {
	var b strings.Builder
	if err := reportTemplate.Execute(&b, buildView(doc, brand.Merge())); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return b.String(), nil
}

func buildView(doc sow.SOWData, brand BrandSettings) reportView {
	v := reportView{
		Brand:    brand,
		Title:    orDefault(doc.ProjectTitle, untitledProject),
		Client:   orDefault(doc.ClientName, unspecifiedClient),
		Overview: strings.TrimSpace(doc.ProjectOverview),
	}
	for _, o := range doc.ProjectOutcomes {
		if o = strings.TrimSpace(o); o != "" {
			v.Outcomes = append(v.Outcomes, o)
		}
	}
	for i, s := range doc.Scopes {
		sv := scopeView{
			Number:   i + 1,
			Name:     s.ScopeName,
			Overview: strings.TrimSpace(s.ScopeOverview),
			Subtotal: Money2(s.Subtotal.Float()),
		}
		if text := strings.Join(s.Deliverables, "\n"); strings.TrimSpace(text) != "" {
			sv.Deliverables = BulletHTML(text)
		}
		if text := strings.Join(s.Assumptions, " + "); strings.TrimSpace(text) != "" {
			sv.Assumptions = BulletHTML(text)
		}
		for _, r := range s.Roles {
			sv.Roles = append(sv.Roles, roleView{
				Name:  r.Name,
				Hours: formatHours(r.Hours.Float()),
				Rate:  rateText(r.Rate),
				Total: "$" + Money2(r.Total.Float()),
			})
		}
		v.Scopes = append(v.Scopes, sv)
	}
	v.ShowBudget = len(doc.Scopes) > 0 || strings.TrimSpace(doc.BudgetNote) != ""
	v.Total = Money(doc.Total())
	v.BudgetNote = orDefault(doc.BudgetNote, defaultBudgetNote)
	return v
}

func rateText(r sow.Rate) string {
	if v, ok := r.Resolved(); ok {
		return "$" + Money(v)
	}
	if r.Text != "" {
		return r.Text
	}
	return "-"
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
