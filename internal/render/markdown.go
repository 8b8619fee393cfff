package render

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// Markdown renders doc for terminal preview. It follows the section order of
// the HTML report.
func Markdown(doc sow.SOWData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", orDefault(doc.ProjectTitle, untitledProject))
	fmt.Fprintf(&b, "**Client:** %s\n\n", orDefault(doc.ClientName, unspecifiedClient))
	if s := strings.TrimSpace(doc.ProjectOverview); s != "" {
		fmt.Fprintf(&b, "## Project Overview\n\n%s\n\n", s)
	}
	if len(doc.ProjectOutcomes) > 0 {
		b.WriteString("## Project Outcomes\n\n")
		for i, o := range doc.ProjectOutcomes {
			fmt.Fprintf(&b, "%d. %s\n", i+1, o)
		}
		b.WriteString("\n")
	}
	for i, s := range doc.Scopes {
		fmt.Fprintf(&b, "## Scope %d: %s\n\n", i+1, s.ScopeName)
		if s.ID != "" {
			fmt.Fprintf(&b, "_id: %s_\n\n", s.ID)
		}
		if s.ScopeOverview != "" {
			fmt.Fprintf(&b, "%s\n\n", s.ScopeOverview)
		}
		if items := Bullets(strings.Join(s.Deliverables, "\n")); items != nil {
			b.WriteString("### Deliverables\n\n")
			for _, item := range items {
				fmt.Fprintf(&b, "- %s\n", item)
			}
			b.WriteString("\n")
		} else if len(s.Deliverables) == 1 {
			fmt.Fprintf(&b, "### Deliverables\n\n%s\n\n", s.Deliverables[0])
		}
		if len(s.Roles) > 0 {
			b.WriteString("| Role | Hours | Rate | Total |\n|---|---:|---:|---:|\n")
			for _, r := range s.Roles {
				fmt.Fprintf(&b, "| %s | %s | %s | $%s |\n", escapeCell(r.Name), formatHours(r.Hours.Float()), rateText(r.Rate), Money2(r.Total.Float()))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**Scope Subtotal:** $%s\n\n", Money2(s.Subtotal.Float()))
		if len(s.Assumptions) > 0 {
			b.WriteString("### Assumptions\n\n")
			for _, a := range s.Assumptions {
				fmt.Fprintf(&b, "- %s\n", a)
			}
			b.WriteString("\n")
		}
	}
	if len(doc.Scopes) > 0 || doc.BudgetNote != "" {
		fmt.Fprintf(&b, "## Budget Notes\n\n**Total Investment:** $%s (including GST)\n\n%s\n", Money(doc.Total()), orDefault(doc.BudgetNote, defaultBudgetNote))
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
