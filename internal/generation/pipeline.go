// Package generation turns a conversation and a rate card into a reconciled
// Statement-of-Work document by asking a model runtime for a JSON document.
package generation

import (
	"context"
	"errors"
	"text/template"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// DefaultModel is used when neither the request nor the pipeline names one.
const DefaultModel = "x-ai/grok-4-fast:free"

// Sampling holds the completion parameters sent with every request.
type Sampling struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultSampling is temperature 0.7, top_p 0.9, 4000 max tokens.
func DefaultSampling() Sampling {
	return Sampling{Temperature: 0.7, TopP: 0.9, MaxTokens: 4000}
}

// Request is one generation call.
type Request struct {
	History  []sow.Message
	RateCard []sow.RateCardItem
	// Model overrides the pipeline default when non-empty.
	Model string
}

// Result is a reconciled document plus the model's commentary.
type Result struct {
	SOWData       sow.SOWData `json:"sowData"`
	AIMessage     string      `json:"aiMessage"`
	ArchitectsLog []string    `json:"architectsLog"`
	Model         string      `json:"model,omitempty"`
	FinishReason  string      `json:"finishReason,omitempty"`
	// Truncated is set when the model stopped for a reason other than
	// "stop"; the document may be incomplete.
	Truncated bool     `json:"truncated,omitempty"`
	Usage     ai.Usage `json:"usage"`
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	runtime      ai.Runtime
	tmpl         *template.Template
	company      string
	defaultModel string
	sampling     Sampling
	logger       *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithDefaultModel(model string) Option {
	return func(p *Pipeline) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithTemplate replaces the built-in system instruction.
func WithTemplate(t *template.Template) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tmpl = t
		}
	}
}

// WithCompany names the agency in the system instruction.
func WithCompany(name string) Option {
	return func(p *Pipeline) { p.company = name }
}

func WithSampling(s Sampling) Option {
	return func(p *Pipeline) { p.sampling = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New builds a pipeline around runtime.
func New(runtime ai.Runtime, opts ...Option) *Pipeline {
	p := &Pipeline{
		runtime:      runtime,
		tmpl:         DefaultTemplate(),
		defaultModel: DefaultModel,
		sampling:     DefaultSampling(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SystemPrompt renders the system instruction for rateCard.
func (p *Pipeline) SystemPrompt(rateCard []sow.RateCardItem) (string, error) {
	return renderPrompt(p.tmpl, p.company, rateCard)
}

// Model resolves the model a request will use.
func (p *Pipeline) Model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Messages builds the chat sent to the runtime: the system instruction
// followed by the history in order.
func (p *Pipeline) Messages(req Request) ([]ai.Message, error) {
	system, err := p.SystemPrompt(req.RateCard)
	if err != nil {
		return nil, err
	}
	msgs := make([]ai.Message, 0, len(req.History)+1)
	msgs = append(msgs, ai.Message{Role: sow.RoleSystem, Content: system})
	for _, m := range req.History {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	return msgs, nil
}

// Generate makes exactly one completion call and returns the reconciled
// document. Runtime failures are ServiceErrors; unusable output is a
// ResponseError. Nothing is retried here.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	model := p.Model(req.Model)
	msgs, err := p.Messages(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.runtime.Generate(ctx, ai.GenerateRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   p.sampling.MaxTokens,
		Temperature: p.sampling.Temperature,
		TopP:        p.sampling.TopP,
	})
	if err != nil {
		p.logger.Warn("model call failed",
			zap.String("model", model),
			zap.Int("status", ai.StatusCode(err)),
			zap.Error(err))
		return nil, &ServiceError{Model: model, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &ServiceError{Model: model, Err: ErrNoChoices}
	}

	choice := resp.Choices[0]
	truncated := choice.FinishReason != "" && choice.FinishReason != ai.FinishStop
	if truncated {
		p.logger.Warn("completion did not finish cleanly",
			zap.String("model", model),
			zap.String("finish_reason", choice.FinishReason),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	}

	obj, err := Extract(choice.Message.Content)
	if err != nil {
		p.logDiscard(model, err)
		return nil, err
	}
	res, err := Normalize(obj)
	if err != nil {
		p.logDiscard(model, err)
		return nil, err
	}

	res.SOWData = sow.Reconcile(res.SOWData, req.RateCard)
	res.Model = model
	res.FinishReason = choice.FinishReason
	res.Truncated = truncated
	res.Usage = resp.Usage
	return res, nil
}

func (p *Pipeline) logDiscard(model string, err error) {
	var rerr *ResponseError
	if errors.As(err, &rerr) {
		p.logger.Debug("discarding model output",
			zap.String("model", model),
			zap.String("reason", rerr.Reason),
			zap.String("raw_excerpt", rerr.Excerpt(500)))
	}
}
