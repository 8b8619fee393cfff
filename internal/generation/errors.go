package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrAIService matches any failure to obtain a completion.
	ErrAIService = errors.New("AI service error")
	// ErrInvalidResponse matches any completion that could not be turned
	// into a document.
	ErrInvalidResponse = errors.New("invalid AI response")
	// ErrNoChoices is wrapped by a ServiceError when the completion had no
	// choices.
	ErrNoChoices = errors.New("no response from AI")
)

// ServiceError wraps a runtime failure: transport error, non-success status,
// or an empty choices list.
type ServiceError struct {
	Model string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("AI service error (model %s): %v", e.Model, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrAIService }

// ResponseError reports model output that is not a usable document. Raw holds
// the unparsed completion text for diagnostics.
type ResponseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ResponseError) Error() string { return "invalid AI response: " + e.Reason }

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) Is(target error) bool { return target == ErrInvalidResponse }

// Excerpt returns at most n bytes of the raw output.
func (e *ResponseError) Excerpt(n int) string {
	if len(e.Raw) <= n {
		return e.Raw
	}
	return e.Raw[:n] + "..."
}
