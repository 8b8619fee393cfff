package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory under $HOME holding config and data.
const DirName = ".sowbench"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key,omitempty"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP            float64 `mapstructure:"top_p" yaml:"top_p"`
	CompanyName     string  `mapstructure:"company_name" yaml:"company_name,omitempty"`
	PromptTemplate  string  `mapstructure:"prompt_template" yaml:"prompt_template,omitempty"`

	// Storage
	WorkbenchDir string `mapstructure:"workbench_dir" yaml:"workbench_dir"`
	DBPath       string `mapstructure:"db_path" yaml:"db_path"`
	UploadsDir   string `mapstructure:"uploads_dir" yaml:"uploads_dir"`
	RateCardFile string `mapstructure:"rate_card_file" yaml:"rate_card_file,omitempty"`

	// Model catalog file merged at startup
	ModelsCatalogFile string `mapstructure:"models_catalog_file" yaml:"models_catalog_file,omitempty"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// PDF export
	PDFEndpoints   []string `mapstructure:"pdf_endpoints" yaml:"pdf_endpoints"`
	PDFLocalChrome bool     `mapstructure:"pdf_local_chrome" yaml:"pdf_local_chrome"`
	ChromeBin      string   `mapstructure:"chrome_bin" yaml:"chrome_bin,omitempty"`

	// HTTP server
	ServerAddr     string   `mapstructure:"server_addr" yaml:"server_addr"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists every configuration key, in display order.
var Keys = []string{
	"api_key", "gemini_api_key", "default_model", "default_provider", "max_tokens",
	"temperature", "top_p", "company_name", "prompt_template", "workbench_dir",
	"db_path", "uploads_dir", "rate_card_file", "models_catalog_file",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms",
	"retry_max_delay_ms", "ollama_host", "pdf_endpoints", "pdf_local_chrome",
	"chrome_bin", "server_addr", "rate_limit_rps", "rate_limit_burst",
	"allowed_origins", "log_level", "log_format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "x-ai/grok-4-fast:free")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 4000)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("top_p", 0.9)
	// generation is single-shot; raise for flaky networks
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("pdf_endpoints", []string{})
	v.SetDefault("pdf_local_chrome", false)
	v.SetDefault("server_addr", ":3002")
	v.SetDefault("rate_limit_rps", 1.0)
	v.SetDefault("rate_limit_burst", 3)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// HomeDir returns ~/.sowbench.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sowbench/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := HomeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. CLI flags are applied by callers.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SOWBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// AutomaticEnv only covers keys viper already knows about
	for _, k := range Keys {
		_ = v.BindEnv(k)
	}

	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	c.WorkbenchDir = orJoin(ExpandHome(c.WorkbenchDir), dir, "sessions")
	c.DBPath = orJoin(ExpandHome(c.DBPath), dir, "sowbench.db")
	c.UploadsDir = orJoin(ExpandHome(c.UploadsDir), dir, "uploads")
	c.RateCardFile = ExpandHome(c.RateCardFile)
	c.ModelsCatalogFile = ExpandHome(c.ModelsCatalogFile)
	return &c, nil
}

// Set assigns a single key from its string form. Values are decoded with
// the same weak typing viper applies to the config file.
func (c *Global) Set(key, val string) error {
	switch key {
	case "default_provider":
		p := strings.ToLower(strings.TrimSpace(val))
		switch p {
		case "local":
			p = "ollama"
		case "google":
			p = "gemini"
		}
		if p != "openrouter" && p != "ollama" && p != "gemini" {
			return fmt.Errorf("invalid default_provider: %s (use openrouter, ollama or gemini)", val)
		}
		c.DefaultProvider = p
		return nil
	case "pdf_endpoints", "allowed_origins":
		var list []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		if key == "pdf_endpoints" {
			c.PDFEndpoints = list
		} else {
			c.AllowedOrigins = list
		}
		return nil
	}
	if !knownKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}
	m[key] = val
	v := viper.New()
	if err := v.MergeConfigMap(m); err != nil {
		return err
	}
	var next Global
	if err := v.Unmarshal(&next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*c = next
	return nil
}

func knownKey(k string) bool {
	for _, key := range Keys {
		if key == k {
			return true
		}
	}
	return false
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
}

func orJoin(v, dir, name string) string {
	if v != "" {
		return filepath.Clean(v)
	}
	return filepath.Join(dir, name)
}
