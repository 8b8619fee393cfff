package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	cfgpkg "github.com/KaramelBytes/sow-workbench/internal/config"
	"github.com/KaramelBytes/sow-workbench/internal/store"
	"github.com/KaramelBytes/sow-workbench/internal/workbench"
)

// setupHome isolates config, sessions and the settings database in a temp dir.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("SOWBENCH_PDF_SERVICE_URL", "")
	t.Setenv("SOWBENCH_OPENROUTER_BASE_URL", "")
	cfg = &cfgpkg.Global{
		WorkbenchDir:    filepath.Join(home, "sessions"),
		DBPath:          filepath.Join(home, "sowbench.db"),
		DefaultProvider: ai.ProviderOpenRouter,
		LogLevel:        "error",
	}
	t.Cleanup(func() { cfg = nil })
	return home
}

// resetFlags restores every flag to its default so values do not leak
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execute(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func TestCLI_SessionCommandsAndExport(t *testing.T) {
	home := setupHome(t)

	runCmd(t, "init", "acme", "--title", "Acme Rebuild", "--client", "Acme")
	if err := execute("init", "acme"); err == nil {
		t.Fatal("expected error re-initializing an existing session")
	}
	if err := execute("init", "../escape"); err == nil {
		t.Fatal("expected error for invalid session name")
	}

	runCmd(t, "ratecard", "set", "Tech - Specialist", "180")
	runCmd(t, "command", "acme", "/newScope", "Discovery")
	runCmd(t, "command", "acme", "/addRole", "to", "Discovery", "Tech - Specialist", "10")
	runCmd(t, "chat", "acme", "/setBudget", "25,000")
	if err := execute("command", "acme", "/frobnicate"); err == nil || !strings.Contains(err.Error(), "/newScope") {
		t.Fatalf("expected unknown command error listing usage, got %v", err)
	}

	s, err := workbench.Load(filepath.Join(home, "sessions", "acme"))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	doc := s.CurrentDocument()
	if doc.ProjectTitle != "Acme Rebuild" || len(doc.Scopes) != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if roles := doc.Scopes[0].Roles; len(roles) != 1 || roles[0].Hours.Float() != 10 {
		t.Fatalf("unexpected roles: %+v", roles)
	}
	if !strings.Contains(doc.BudgetNote, "$25,000") {
		t.Fatalf("budget note not set: %q", doc.BudgetNote)
	}

	out := filepath.Join(home, "out")
	runCmd(t, "export", "acme", "--format", "html,xlsx", "--out", out)
	for _, ext := range []string{"html", "xlsx"} {
		matches, _ := filepath.Glob(filepath.Join(out, "Acme_Rebuild_Export_*."+ext))
		if len(matches) != 1 {
			t.Fatalf("expected one %s export, got %v", ext, matches)
		}
	}
	if err := execute("export", "acme", "--format", "pdf", "--out", out); err == nil {
		t.Fatal("expected pdf export to fail without a renderer")
	}

	runCmd(t, "show", "acme", "--raw")
	runCmd(t, "list")
	runCmd(t, "chat", "acme", "--dry-run", "Add a QA phase")
}

func TestCLI_SettingsAndRateCardImport(t *testing.T) {
	home := setupHome(t)

	card := filepath.Join(home, "rates.yaml")
	if err := os.WriteFile(card, []byte("roles:\n  - name: Designer\n    rate: 150\n  - name: PM\n    rate: 200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runCmd(t, "ratecard", "import", card)
	runCmd(t, "ratecard", "remove", "PM")
	if err := execute("ratecard", "remove", "PM"); err == nil {
		t.Fatal("expected error removing a missing role")
	}
	runCmd(t, "settings", "brand", "companyName=Leaf Digital", "accentColor=#abcdef")
	if err := execute("settings", "brand", "favicon=x"); err == nil {
		t.Fatal("expected error for unknown brand field")
	}
	runCmd(t, "settings", "model", "openai/gpt-4o-mini")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := t.Context()
	items, err := st.ListRateCard(ctx)
	if err != nil || len(items) != 1 || items[0].Name != "Designer" {
		t.Fatalf("unexpected rate card: %+v %v", items, err)
	}
	b, err := st.Settings.BrandSettings(ctx)
	if err != nil || b.CompanyName != "Leaf Digital" || b.AccentColor != "#abcdef" {
		t.Fatalf("unexpected brand: %+v %v", b, err)
	}
	if m, err := st.Settings.SelectedModel(ctx); err != nil || m != "openai/gpt-4o-mini" {
		t.Fatalf("unexpected model: %q %v", m, err)
	}
}

func TestCLI_ChatRecordsGeneration(t *testing.T) {
	home := setupHome(t)
	cfg.APIKey = "test-key"

	models := make(chan string, 1)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ai.GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		select {
		case models <- req.Model:
		default:
		}
		content := `{"sowData":{"projectTitle":"Acme Rebuild","clientName":"Acme","scopes":[{"scopeName":"Build","roles":[{"name":"Designer","description":"UI","hours":10,"rate":"Designer","total":0}]}]},"aiMessage":"Drafted the build scope.","architectsLog":["Priced Designer from the rate card"]}`
		_ = json.NewEncoder(w).Encode(ai.GenerateResponse{
			Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}, FinishReason: "stop"}},
			Usage:   ai.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		})
	}))
	defer api.Close()
	t.Setenv("SOWBENCH_OPENROUTER_BASE_URL", api.URL)

	runCmd(t, "init", "acme")
	runCmd(t, "ratecard", "set", "Designer", "150")
	runCmd(t, "settings", "model", "openai/gpt-4o-mini")
	runCmd(t, "chat", "acme", "Build", "the", "site")

	if gotModel := <-models; gotModel != "openai/gpt-4o-mini" {
		t.Fatalf("expected selected model to be used, got %q", gotModel)
	}
	s, err := workbench.Load(filepath.Join(home, "sessions", "acme"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Messages) != 2 || s.Messages[0].Content != "Build the site" || s.Messages[1].Content != "Drafted the build scope." {
		t.Fatalf("unexpected history: %+v", s.Messages)
	}
	doc := s.CurrentDocument()
	if got := doc.Total(); got != 1500 {
		t.Fatalf("expected reconciled total 1500, got %v", got)
	}
	if len(s.ArchitectsLog) != 1 {
		t.Fatalf("architects log not stored: %v", s.ArchitectsLog)
	}
}
