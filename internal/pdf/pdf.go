// Package pdf turns a rendered HTML report into PDF bytes. Conversion is
// delegated to an external service or to a local headless Chrome.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable is returned when no renderer could produce a document.
	ErrUnavailable = errors.New("pdf renderer unavailable")
	// ErrEmptyHTML is returned for blank input; no renderer is contacted.
	ErrEmptyHTML = errors.New("html content is required")
)

// Renderer converts a standalone HTML document into PDF bytes. filename is a
// hint for services that name their output.
type Renderer interface {
	Render(ctx context.Context, html, filename string) ([]byte, error)
}

// Chain tries each renderer in order and returns the first document produced.
type Chain []Renderer

func (c Chain) Render(ctx context.Context, html, filename string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyHTML
	}
	var errs []error
	for _, r := range c {
		if r == nil {
			continue
		}
		out, err := r.Render(ctx, html, filename)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}
