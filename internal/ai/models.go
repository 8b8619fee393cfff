package ai

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
)

// ModelInfo describes a selectable model. Prices are USD per 1K tokens and
// are illustrative for the built-in entries.
type ModelInfo struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"name,omitempty"`
	ContextTokens int     `json:"contextTokens,omitempty"`
	InputPerK     float64 `json:"inputPerK"`
	OutputPerK    float64 `json:"outputPerK"`
}

// Free reports whether the model costs nothing to call.
func (m ModelInfo) Free() bool {
	return strings.HasSuffix(m.ID, ":free") || (m.InputPerK == 0 && m.OutputPerK == 0)
}

var (
	catalogMu sync.RWMutex
	catalog   = map[string]ModelInfo{
		"x-ai/grok-4-fast:free":              {ID: "x-ai/grok-4-fast:free", DisplayName: "xAI: Grok 4 Fast (free)", ContextTokens: 2000000},
		"x-ai/grok-4-fast":                   {ID: "x-ai/grok-4-fast", DisplayName: "xAI: Grok 4 Fast", ContextTokens: 2000000, InputPerK: 0.0002, OutputPerK: 0.0005},
		"deepseek/deepseek-chat-v3.1:free":   {ID: "deepseek/deepseek-chat-v3.1:free", DisplayName: "DeepSeek: V3.1 (free)", ContextTokens: 163840},
		"openai/gpt-4o-mini":                 {ID: "openai/gpt-4o-mini", DisplayName: "OpenAI: GPT-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"openai/gpt-4o":                      {ID: "openai/gpt-4o", DisplayName: "OpenAI: GPT-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
		"anthropic/claude-3.5-sonnet":        {ID: "anthropic/claude-3.5-sonnet", DisplayName: "Anthropic: Claude 3.5 Sonnet", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		"anthropic/claude-3-haiku":           {ID: "anthropic/claude-3-haiku", DisplayName: "Anthropic: Claude 3 Haiku", ContextTokens: 200000, InputPerK: 0.00025, OutputPerK: 0.00125},
		"google/gemini-2.0-flash-001":        {ID: "google/gemini-2.0-flash-001", DisplayName: "Google: Gemini 2.0 Flash", ContextTokens: 1048576, InputPerK: 0.0001, OutputPerK: 0.0004},
		"meta-llama/llama-3.3-70b-instruct":  {ID: "meta-llama/llama-3.3-70b-instruct", DisplayName: "Meta: Llama 3.3 70B Instruct", ContextTokens: 131072, InputPerK: 0.00013, OutputPerK: 0.0004},
		"mistralai/mistral-small-3.2-24b-instruct:free": {ID: "mistralai/mistral-small-3.2-24b-instruct:free", DisplayName: "Mistral: Small 3.2 24B (free)", ContextTokens: 131072},
		"llama3.1:8b":                        {ID: "llama3.1:8b", DisplayName: "Ollama: Llama 3.1 8B", ContextTokens: 8192},
	}
)

// LookupModel returns the catalog entry for id.
func LookupModel(id string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := catalog[id]
	return mi, ok
}

// EstimateCostUSD estimates the cost of a call. Unknown models return ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	return float64(promptTokens)/1000*mi.InputPerK + float64(completionTokens)/1000*mi.OutputPerK, true
}

// LoadCatalogFromJSON reads a JSON array of ModelInfo.
func LoadCatalogFromJSON(path string) ([]ModelInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []ModelInfo
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeCatalog adds or replaces entries in the in-memory catalog.
func MergeCatalog(models []ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for _, m := range models {
		if m.ID != "" {
			catalog[m.ID] = m
		}
	}
}

// Catalog returns the catalog sorted by id.
func Catalog() []ModelInfo {
	catalogMu.RLock()
	out := make([]ModelInfo, 0, len(catalog))
	for _, m := range catalog {
		out = append(out, m)
	}
	catalogMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FilterModels keeps models whose id or display name contains query
// (case-insensitive), optionally only free ones.
func FilterModels(models []ModelInfo, query string, freeOnly bool) []ModelInfo {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		if freeOnly && !m.Free() {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.ID), q) && !strings.Contains(strings.ToLower(m.DisplayName), q) {
			continue
		}
		out = append(out, m)
	}
	return out
}
