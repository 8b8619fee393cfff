package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	for _, k := range Keys {
		t.Setenv("SOWBENCH_"+strings.ToUpper(k), "")
		os.Unsetenv("SOWBENCH_" + strings.ToUpper(k))
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "x-ai/grok-4-fast:free", c.DefaultModel)
	assert.Equal(t, "openrouter", c.DefaultProvider)
	assert.Equal(t, 4000, c.MaxTokens)
	assert.InDelta(t, 0.7, c.Temperature, 1e-9)
	assert.InDelta(t, 0.9, c.TopP, 1e-9)
	assert.Equal(t, 1, c.RetryMaxAttempts)
	assert.Equal(t, ":3002", c.ServerAddr)
	assert.Equal(t, filepath.Join(home, DirName, "sessions"), c.WorkbenchDir)
	assert.Equal(t, filepath.Join(home, DirName, "sowbench.db"), c.DBPath)
}

func TestLoadEnvAndFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("default_model: openai/gpt-4o-mini\nmax_tokens: 2000\npdf_endpoints:\n  - http://pdf.local/generate-pdf\n"), 0o644))
	t.Setenv("SOWBENCH_MAX_TOKENS", "1234")
	t.Setenv("OPENROUTER_API_KEY", "sk-env")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", c.DefaultModel)
	assert.Equal(t, 1234, c.MaxTokens)
	assert.Equal(t, []string{"http://pdf.local/generate-pdf"}, c.PDFEndpoints)
	assert.Equal(t, "sk-env", c.APIKey)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSetAndSave(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)

	require.NoError(t, c.Set("max_tokens", "3000"))
	require.NoError(t, c.Set("pdf_local_chrome", "true"))
	require.NoError(t, c.Set("temperature", "0.2"))
	require.NoError(t, c.Set("default_provider", "Local"))
	require.NoError(t, c.Set("pdf_endpoints", "http://a/pdf, http://b/pdf"))
	assert.Error(t, c.Set("max_tokens", "lots"))
	assert.Error(t, c.Set("default_provider", "bedrock"))
	assert.Error(t, c.Set("nope", "1"))

	assert.Equal(t, 3000, c.MaxTokens)
	assert.True(t, c.PDFLocalChrome)
	assert.Equal(t, "ollama", c.DefaultProvider)
	assert.Equal(t, []string{"http://a/pdf", "http://b/pdf"}, c.PDFEndpoints)

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, Save(c, path))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, back.MaxTokens)
	assert.InDelta(t, 0.2, back.Temperature, 1e-9)
	assert.Equal(t, c.PDFEndpoints, back.PDFEndpoints)
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandHome("~/x/y"))
	assert.Equal(t, "/abs", ExpandHome("/abs"))
}
