package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxPDFBytes = 50 << 20

// HTTPRenderer posts the HTML to conversion services. Endpoints are tried in
// the order given until one answers 2xx with a non-empty body.
type HTTPRenderer struct {
	endpoints  []string
	httpClient *http.Client
}

// NewHTTPRenderer returns a renderer for the given endpoints. Blank entries
// are skipped.
func NewHTTPRenderer(endpoints []string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var eps []string
	for _, e := range endpoints {
		if e = strings.TrimSpace(e); e != "" {
			eps = append(eps, e)
		}
	}
	return &HTTPRenderer{endpoints: eps, httpClient: &http.Client{Timeout: timeout}}
}

// Endpoints returns the configured endpoints in try order.
func (r *HTTPRenderer) Endpoints() []string { return append([]string(nil), r.endpoints...) }

func (r *HTTPRenderer) Render(ctx context.Context, html, filename string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyHTML
	}
	if len(r.endpoints) == 0 {
		return nil, fmt.Errorf("%w: no endpoints configured", ErrUnavailable)
	}
	var errs []error
	for _, ep := range r.endpoints {
		out, err := r.post(ctx, ep, html, filename)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", ep, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (r *HTTPRenderer) post(ctx context.Context, endpoint, html, filename string) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if filename != "" {
		q := u.Query()
		q.Set("filename", filename)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewBufferString(html))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Accept", "application/pdf")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}
