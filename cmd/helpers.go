package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	cfgpkg "github.com/KaramelBytes/sow-workbench/internal/config"
	"github.com/KaramelBytes/sow-workbench/internal/generation"
	"github.com/KaramelBytes/sow-workbench/internal/pdf"
	"github.com/KaramelBytes/sow-workbench/internal/store"
	"github.com/KaramelBytes/sow-workbench/internal/utils"
	"github.com/KaramelBytes/sow-workbench/internal/workbench"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0e2e33"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2f9e44"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e8590c"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#c92a2a"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#868e96"))
)

func success(format string, args ...any) {
	fmt.Println(successStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// renderMarkdown formats md for the terminal, falling back to the raw text
// when the renderer cannot be built.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func retrySettings(cfg *cfgpkg.Global) (timeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) {
	timeout = 120 * time.Second
	retryMax = 1
	baseDelay = 500 * time.Millisecond
	maxDelay = 4 * time.Second
	if cfg == nil {
		return
	}
	if cfg.HTTPTimeoutSec > 0 {
		timeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	}
	if cfg.RetryMaxAttempts > 0 {
		retryMax = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelayMs > 0 {
		baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
	}
	if cfg.RetryMaxDelayMs > 0 {
		maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
	}
	return
}

func normalizeProvider(name string) string {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "local", "ollama":
		return ai.ProviderOllama
	case "google", "gemini":
		return ai.ProviderGemini
	case "", "openai", "anthropic", "meta", "x-ai", "openrouter":
		return ai.ProviderOpenRouter
	default:
		return p
	}
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	timeout, retryMax, baseDelay, maxDelay := retrySettings(cfg)

	providerName := opts.ProviderFlag
	if strings.TrimSpace(providerName) == "" && cfg != nil {
		providerName = cfg.DefaultProvider
	}
	providerName = normalizeProvider(providerName)

	rc := ai.RuntimeConfig{
		HTTPTimeout: timeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	switch providerName {
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" {
			host = os.Getenv("SOWBENCH_OLLAMA_HOST")
		}
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		rc.Host = host
	case ai.ProviderGemini:
		rc.APIKey = os.Getenv("GEMINI_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.GeminiAPIKey
		}
	default:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
		// OpenAI-compatible gateways
		rc.BaseURL = os.Getenv("SOWBENCH_OPENROUTER_BASE_URL")
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (available: %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	return client, providerName, nil
}

// selectModel resolves the model: flag, then the session, then the model
// selected in settings, then config, then the built-in default.
func selectModel(s *workbench.Session, selected string, cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if s != nil && s.Model != "" {
		return s.Model
	}
	if selected != "" {
		return selected
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return generation.DefaultModel
}

func newPipeline(runtime ai.Runtime, cfg *cfgpkg.Global) (*generation.Pipeline, error) {
	opts := []generation.Option{generation.WithLogger(logger)}
	if cfg == nil {
		return generation.New(runtime, opts...), nil
	}
	sampling := generation.DefaultSampling()
	if cfg.MaxTokens > 0 {
		sampling.MaxTokens = cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		sampling.Temperature = cfg.Temperature
	}
	if cfg.TopP > 0 {
		sampling.TopP = cfg.TopP
	}
	opts = append(opts, generation.WithSampling(sampling))
	if cfg.DefaultModel != "" {
		opts = append(opts, generation.WithDefaultModel(cfg.DefaultModel))
	}
	if cfg.CompanyName != "" {
		opts = append(opts, generation.WithCompany(cfg.CompanyName))
	}
	if cfg.PromptTemplate != "" {
		b, err := os.ReadFile(cfgpkg.ExpandHome(cfg.PromptTemplate))
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		t, err := generation.ParseTemplate(string(b))
		if err != nil {
			return nil, err
		}
		opts = append(opts, generation.WithTemplate(t))
	}
	return generation.New(runtime, opts...), nil
}

func openStore() (*store.Store, error) {
	path := ""
	if cfg != nil {
		path = cfg.DBPath
	}
	if path == "" {
		dir, err := cfgpkg.HomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "sowbench.db")
	}
	return store.Open(path)
}

// storedModel returns the model selected in settings, or "" when unset.
func storedModel(ctx context.Context, st *store.Store) string {
	m, err := st.Settings.SelectedModel(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("selected model unavailable", zap.Error(err))
		}
		return ""
	}
	return m
}

func pdfRenderer(cfg *cfgpkg.Global) pdf.Renderer {
	var chain pdf.Chain
	var endpoints []string
	chrome, bin := false, ""
	if cfg != nil {
		endpoints = cfg.PDFEndpoints
		chrome, bin = cfg.PDFLocalChrome, cfg.ChromeBin
	}
	if env := os.Getenv("SOWBENCH_PDF_SERVICE_URL"); env != "" {
		endpoints = append([]string{env}, endpoints...)
	}
	if len(endpoints) > 0 {
		chain = append(chain, pdf.NewHTTPRenderer(endpoints, 60*time.Second))
	}
	if chrome {
		chain = append(chain, &pdf.RodRenderer{Bin: bin})
	}
	return chain
}

func workbenchDir() (string, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.WorkbenchDir
	}
	if dir == "" {
		home, err := cfgpkg.HomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "sessions")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func sessionDir(name string) (string, error) {
	if err := workbench.ValidateName(name); err != nil {
		return "", err
	}
	root, err := workbenchDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

func loadSession(name string) (*workbench.Session, error) {
	dir, err := sessionDir(name)
	if err != nil {
		return nil, err
	}
	s, err := workbench.Load(dir)
	if errors.Is(err, workbench.ErrNotFound) {
		return nil, fmt.Errorf("session %q not found; create it with `sowbench init %s`", name, name)
	}
	return s, err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
