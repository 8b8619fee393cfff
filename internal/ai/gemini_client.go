package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient runs chat completions against the Gemini API through the
// genai SDK. The SDK client is created on first use.
type GeminiClient struct {
	apiKey  string
	baseURL string

	once   sync.Once
	client *genai.Client
	err    error
}

// NewGeminiClient returns a Gemini runtime. baseURL may be empty.
func NewGeminiClient(apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, baseURL: baseURL}
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cfg := &genai.ClientConfig{APIKey: c.apiKey, Backend: genai.BackendGeminiAPI}
		if c.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
		}
		c.client, c.err = genai.NewClient(ctx, cfg)
	})
	if c.err != nil {
		return nil, fmt.Errorf("create gemini client: %w", c.err)
	}
	return c.client, nil
}

// Generate maps the chat onto Gemini contents: system turns become the system
// instruction and assistant turns become model turns.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	system, contents := geminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	model := geminiModelName(req.Model)
	resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, classifyGeminiError(apiErr)
		}
		return nil, &UnreachableError{Host: "gemini", Err: err}
	}

	out := &GenerateResponse{Model: model, ID: resp.ResponseID}
	for _, cand := range resp.Candidates {
		var text strings.Builder
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part != nil && !part.Thought {
					text.WriteString(part.Text)
				}
			}
		}
		out.Choices = append(out.Choices, Choice{
			Message:      Message{Role: "assistant", Content: text.String()},
			FinishReason: geminiFinishReason(cand.FinishReason),
		})
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func geminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

// geminiModelName accepts OpenRouter style ids such as "google/gemini-2.0-flash".
func geminiModelName(model string) string {
	return strings.TrimPrefix(model, "google/")
}

func geminiFinishReason(r genai.FinishReason) string {
	switch r {
	case "", genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishLength
	default:
		return strings.ToLower(string(r))
	}
}

func classifyGeminiError(e genai.APIError) error {
	apiErr := &APIError{StatusCode: e.Code, Code: e.Status, Message: e.Message}
	switch {
	case e.Code == 401 || e.Code == 403:
		return &AuthError{APIError: apiErr}
	case e.Code == 429:
		return &RateLimitError{APIError: apiErr}
	case e.Code == 404:
		return &ModelNotFoundError{APIError: apiErr}
	case e.Code == 400:
		return &BadRequestError{APIError: apiErr}
	case e.Code >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}
