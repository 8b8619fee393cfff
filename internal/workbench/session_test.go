package workbench_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/workbench"
)

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	s := workbench.NewSession("acme", root)
	if err := s.AppendMessage(sow.RoleUser, "We need a HubSpot migration"); err != nil {
		t.Fatalf("append: %v", err)
	}
	doc := sow.SOWData{ProjectTitle: "HubSpot Migration", Scopes: []sow.Scope{{ScopeName: "Setup", Subtotal: sow.Num(1200)}}}
	if err := s.RecordGeneration(doc, "Here is a draft.", []string{"picked roles"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := workbench.Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != s.ID || got.RootDir() != root {
		t.Fatalf("identity lost: %+v", got)
	}
	h := got.History()
	if len(h) != 2 || h[0].Role != sow.RoleUser || h[1].Content != "Here is a draft." {
		t.Fatalf("unexpected history: %+v", h)
	}
	if d := got.CurrentDocument(); d.ProjectTitle != "HubSpot Migration" || d.Total() != 1200 {
		t.Fatalf("unexpected document: %+v", d)
	}
	if len(got.ArchitectsLog) != 1 {
		t.Fatalf("architects log lost: %v", got.ArchitectsLog)
	}
}

func TestSessionDocumentIsCopied(t *testing.T) {
	s := workbench.NewSession("x", t.TempDir())
	doc := sow.SOWData{Scopes: []sow.Scope{{ScopeName: "A"}}}
	s.SetDocument(doc)
	doc.Scopes[0].ScopeName = "mutated"
	if s.CurrentDocument().Scopes[0].ScopeName != "A" {
		t.Fatalf("session document aliased caller slice")
	}
	if err := s.AppendMessage(sow.RoleUser, "hi"); err != nil {
		t.Fatal(err)
	}
	h := s.History()
	h[0].Content = "edited"
	if s.Messages[0].Content != "hi" {
		t.Fatalf("History must return a copy")
	}
}

func TestAppendMessageRejects(t *testing.T) {
	s := workbench.NewSession("x", t.TempDir())
	if err := s.AppendMessage(sow.RoleSystem, "prompt"); err == nil {
		t.Fatalf("system role must be rejected")
	}
	if err := s.AppendMessage(sow.RoleUser, "   "); err == nil {
		t.Fatalf("blank content must be rejected")
	}
}

func TestAttachBrief(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "brief.md")
	if err := os.WriteFile(p, []byte("# Brief\n\n"+strings.Repeat("word ", 400)), 0o644); err != nil {
		t.Fatal(err)
	}
	s := workbench.NewSession("x", dir)
	b, err := s.AttachBrief(p, 50)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if b.Name != "brief.md" || b.Tokens > 50 {
		t.Fatalf("unexpected brief: %+v", b)
	}
	if len(s.Messages) != 1 || !strings.HasPrefix(s.Messages[0].Content, "[BRIEF: brief.md]\n# Brief") {
		t.Fatalf("brief not appended: %+v", s.Messages)
	}
}

func TestLoadMissingAndList(t *testing.T) {
	dir := t.TempDir()
	if _, err := workbench.Load(filepath.Join(dir, "nope")); !errors.Is(err, workbench.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, name := range []string{"one", "two"} {
		if err := workbench.NewSession(name, filepath.Join(dir, name)).Save(); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "stray"), 0o755); err != nil {
		t.Fatal(err)
	}
	list, err := workbench.List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	names := map[string]bool{list[0].Name: true, list[1].Name: true}
	if !names["one"] || !names["two"] {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"acme", "acme-2026", "a.b_c"} {
		if err := workbench.ValidateName(ok); err != nil {
			t.Errorf("%q: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "../etc", "-x", "a/b"} {
		if err := workbench.ValidateName(bad); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}
