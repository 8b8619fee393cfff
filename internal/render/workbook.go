package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// Sheet names of the exported workbook.
const (
	DetailSheet   = "Detailed Breakdown"
	OverviewSheet = "Scope & Price Overview"
)

var (
	detailWidths   = []float64{40, 10, 15, 25, 5, 10, 15}
	overviewWidths = []float64{40, 15, 15, 15}
)

// sheet is a grid of cell values plus the rows to embolden.
type sheet struct {
	rows [][]any
	bold []int
}

func (s *sheet) add(cells ...any)     { s.rows = append(s.rows, cells) }
func (s *sheet) addBold(cells ...any) { s.bold = append(s.bold, len(s.rows)); s.add(cells...) }
func (s *sheet) blank()               { s.add() }

// DetailRows lays out the "Detailed Breakdown" sheet: a title block, then per
// scope a header, deliverables, one row per role (description, role, hours,
// total) and assumptions, and finally the grand total.
func DetailRows(doc sow.SOWData, company string) [][]any {
	return detailSheet(doc, company).rows
}

func detailSheet(doc sow.SOWData, company string) *sheet {
	s := &sheet{}
	s.blank()
	s.addBold("", "", strings.ToUpper(company))
	s.add("", orDefault(doc.ProjectTitle, untitledProject), "", "Client: "+orDefault(doc.ClientName, unspecifiedClient))
	s.blank()
	s.addBold("ITEMS", "", "", "ROLE", "", "HOURS", "TOTAL COST + GST")
	s.blank()
	for _, scope := range doc.Scopes {
		s.addBold(scope.ScopeName)
		s.blank()
		if len(scope.Deliverables) > 0 {
			s.add("Deliverables:", joinNonEmpty(scope.Deliverables, ", "))
		}
		for _, r := range scope.Roles {
			s.add(orDefault(r.Description, r.Name), "", "", r.Name, "", r.Hours.Float(), "$"+Money(r.Total.Float()))
		}
		if len(scope.Assumptions) > 0 {
			s.blank()
			s.add("Assumptions:", joinNonEmpty(scope.Assumptions, ", "))
		}
		s.blank()
	}
	s.addBold("TOTAL", "", "", "", "", doc.TotalHours(), "$"+Money(doc.Total()))
	return s
}

// OverviewRows lays out the "Scope & Price Overview" sheet: overview text,
// included scopes, timeline phases, then one row per scope with total hours,
// average hourly rate and cost, and a project total row.
func OverviewRows(doc sow.SOWData, company string) [][]any {
	return overviewSheet(doc, company).rows
}

func overviewSheet(doc sow.SOWData, company string) *sheet {
	s := &sheet{}
	s.blank()
	s.addBold(strings.ToUpper(company))
	s.add(orDefault(doc.ProjectTitle, untitledProject))
	s.blank()
	if doc.ProjectOverview != "" {
		s.addBold("Overview:")
		s.add(doc.ProjectOverview)
		s.blank()
	}
	if len(doc.Scopes) > 0 {
		s.addBold("What does the scope include?")
		for _, scope := range doc.Scopes {
			s.add("• " + scope.ScopeName)
		}
		s.blank()
	}
	if doc.Timeline != nil && len(doc.Timeline.Phases) > 0 {
		s.addBold("Project Phases:")
		for _, p := range doc.Timeline.Phases {
			line := "• " + p.Name
			if p.Duration != "" {
				line += " (" + p.Duration + ")"
			}
			s.add(line)
		}
		s.blank()
	}
	s.addBold("Scope & Pricing Overview")
	s.blank()
	s.addBold("PROJECT PHASES", "TOTAL HOURS", "AVG. HOURLY RATE", "TOTAL COST")
	for _, scope := range doc.Scopes {
		s.add(scope.ScopeName, scope.TotalHours(), "$"+Money(scope.AverageRate()), "$"+Money(scope.Subtotal.Float()))
	}
	s.addBold("TOTAL PROJECT", doc.TotalHours(), "", "$"+Money(doc.Total()))
	return s
}

// Workbook builds the two-sheet workbook. The caller closes the file.
func Workbook(doc sow.SOWData, brand BrandSettings) (*excelize.File, error) {
	company := brand.Merge().CompanyName
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", DetailSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(OverviewSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}
	if err := writeSheet(f, DetailSheet, detailSheet(doc, company), detailWidths, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSheet(f, OverviewSheet, overviewSheet(doc, company), overviewWidths, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook renders doc as .xlsx bytes into w.
func WriteWorkbook(w io.Writer, doc sow.SOWData, brand BrandSettings) error {
	f, err := Workbook(doc, brand)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, s *sheet, widths []float64, boldStyle int) error {
	for i, row := range s.rows {
		for j, v := range row {
			if v == nil || v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("%s!%s: %w", name, cell, err)
			}
		}
	}
	for _, i := range s.bold {
		start, _ := excelize.CoordinatesToCellName(1, i+1)
		end, _ := excelize.CoordinatesToCellName(len(widths), i+1)
		if err := f.SetCellStyle(name, start, end, boldStyle); err != nil {
			return fmt.Errorf("style %s row %d: %w", name, i+1, err)
		}
	}
	for j, w := range widths {
		col, _ := excelize.ColumnNumberToName(j + 1)
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return fmt.Errorf("width %s!%s: %w", name, col, err)
		}
	}
	return nil
}

func joinNonEmpty(lines []string, sep string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, sep)
}
