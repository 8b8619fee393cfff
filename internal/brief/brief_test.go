package brief_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/sow-workbench/internal/brief"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestParseFileTXTAndMD(t *testing.T) {
	dir := t.TempDir()
	out, err := brief.ParseFile(writeFile(t, dir, "notes.txt", "Client wants a new CRM.\nBudget is tight."))
	if err != nil {
		t.Fatalf("parse txt: %v", err)
	}
	if !strings.HasPrefix(out, "Client wants") {
		t.Fatalf("unexpected txt output: %q", out)
	}

	out, err = brief.ParseFile(writeFile(t, dir, "brief.md", "# Brief\r\n\r\n\r\n\r\nMigrate to HubSpot\r\n"))
	if err != nil {
		t.Fatalf("parse md: %v", err)
	}
	if out != "# Brief\n\nMigrate to HubSpot" {
		t.Fatalf("unexpected md output: %q", out)
	}
}

func TestParseFileDOCX(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "rfp.docx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Scope:</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">Email &amp; CRM</w:t></w:r></w:p>
<w:p><w:r><w:t>Timeline: 6 weeks</w:t></w:r></w:p>
</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	out, err := brief.ParseFile(p)
	if err != nil {
		t.Fatalf("parse docx: %v", err)
	}
	if out != "Scope:\tEmail & CRM\nTimeline: 6 weeks" {
		t.Fatalf("unexpected docx output: %q", out)
	}
}

func TestParseFileCSV(t *testing.T) {
	dir := t.TempDir()
	out, err := brief.ParseFile(writeFile(t, dir, "roles.csv", "role,hours\nDesigner,20\n\nDeveloper,40\n"))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	for _, want := range []string{"[TABLE: roles.csv]", "| role | hours |", "| Designer | 20 |", "| Developer | 40 |"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestParseFileXLSX(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "estimate.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Phase")
	_ = f.SetCellValue("Sheet1", "B1", "Weeks")
	_ = f.SetCellValue("Sheet1", "A2", "Discovery")
	_ = f.SetCellValue("Sheet1", "B2", 2)
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	_ = f.Close()

	out, err := brief.ParseFile(p)
	if err != nil {
		t.Fatalf("parse xlsx: %v", err)
	}
	if !strings.Contains(out, "[TABLE: estimate.xlsx / Sheet1]") || !strings.Contains(out, "| Discovery | 2 |") {
		t.Fatalf("unexpected xlsx output: %q", out)
	}
}

func TestParseFileEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := brief.ParseFile(writeFile(t, dir, "blank.txt", "  \n"))
	if !errors.Is(err, brief.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
