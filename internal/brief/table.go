package brief

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxTableRows caps how many data rows of a spreadsheet brief are kept.
const MaxTableRows = 200

type csvParser struct{}

func (csvParser) CanParse(filename string) bool { return hasSuffix(filename, ".csv", ".tsv") }

func (csvParser) Parse(path string, content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	if hasSuffix(path, ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	return markdownTable(filepath.Base(path), rows), nil
}

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool { return hasSuffix(filename, ".xlsx") }

// Parse renders every sheet of the workbook as a markdown table.
func (xlsxParser) Parse(path string, content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		parts = append(parts, markdownTable(filepath.Base(path)+" / "+sheet, rows))
	}
	return strings.Join(parts, "\n\n"), nil
}

// markdownTable treats the first non-empty row as the header.
func markdownTable(title string, rows [][]string) string {
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[TABLE: %s]\n", title)
	writeRow(&sb, rows[0], width)
	sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	body := rows[1:]
	truncated := 0
	if len(body) > MaxTableRows {
		truncated = len(body) - MaxTableRows
		body = body[:MaxTableRows]
	}
	for _, r := range body {
		if isBlank(r) {
			continue
		}
		writeRow(&sb, r, width)
	}
	if truncated > 0 {
		fmt.Fprintf(&sb, "(%d more rows omitted)\n", truncated)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeRow(sb *strings.Builder, r []string, width int) {
	sb.WriteString("|")
	for i := 0; i < width; i++ {
		cell := ""
		if i < len(r) {
			cell = strings.ReplaceAll(strings.TrimSpace(r[i]), "|", "/")
			cell = strings.ReplaceAll(cell, "\n", " ")
		}
		sb.WriteString(" " + cell + " |")
	}
	sb.WriteString("\n")
}

func isBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
