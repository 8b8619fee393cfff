package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

// newIPv4Server binds to 127.0.0.1 explicitly; some CI sandboxes have no ::1.
func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// completionServer answers /chat/completions with statuses[i] on the i-th
// call (the last status repeats) and counts calls.
func completionServer(t *testing.T, statuses []int, headers []http.Header, okBody any) (*ipv4Server, *int32) {
	t.Helper()
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] >= 200 && statuses[i] < 300 {
			_ = json.NewEncoder(w).Encode(okBody)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "upstream trouble"}})
	}))
	return srv, &calls
}

func okCompletion(content, finish string) GenerateResponse {
	return GenerateResponse{ID: "gen-1", Choices: []Choice{{Message: Message{Role: "assistant", Content: content}, FinishReason: finish}}}
}

func chatRequest() GenerateRequest {
	return GenerateRequest{Model: "test-model", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 16}
}

func TestGenerateSendsSamplingAndHeaders(t *testing.T) {
	var got map[string]any
	var referer, title, auth string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer, title, auth = r.Header.Get("HTTP-Referer"), r.Header.Get("X-Title"), r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(okCompletion("{}", "stop"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", 2*time.Second, 1, 0, 0, srv.URL)
	req := chatRequest()
	req.Temperature, req.TopP, req.MaxTokens = 0.7, 0.9, 4000
	resp, err := c.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Choices[0].FinishReason != FinishStop {
		t.Fatalf("finish reason = %q", resp.Choices[0].FinishReason)
	}
	if got["top_p"] != 0.9 || got["temperature"] != 0.7 || got["max_tokens"] != float64(4000) {
		t.Fatalf("unexpected sampling payload: %v", got)
	}
	if auth != "Bearer sk-test" || title != "SOW Workbench" || referer == "" {
		t.Fatalf("unexpected headers auth=%q title=%q referer=%q", auth, title, referer)
	}
}

func TestGenerateSingleAttemptByDefault(t *testing.T) {
	srv, calls := completionServer(t, []int{500, 200}, nil, okCompletion("ok", "stop"))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 0, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), chatRequest())
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected exactly one call, got %d", n)
	}
}

func TestGenerateRetriesOn429WhenConfigured(t *testing.T) {
	srv, calls := completionServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}}, okCompletion("ok", "stop"))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, chatRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Choices[0].Message.Content != "ok" || atomic.LoadInt32(calls) != 2 {
		t.Fatalf("unexpected response %+v after %d calls", resp, atomic.LoadInt32(calls))
	}
}

func TestRetryAfterHonored(t *testing.T) {
	srv, _ := completionServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}}, okCompletion("ok", "stop"))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	start := time.Now()
	if _, err := c.Generate(context.Background(), chatRequest()); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected about 1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestBackoffStopsOnContextCancel(t *testing.T) {
	srv, _ := completionServer(t, []int{503}, []http.Header{{"Retry-After": {"30"}}}, nil)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, chatRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": 400}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), chatRequest())
	var bad *BadRequestError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadRequestError, got %v", err)
	}
	if !strings.Contains(err.Error(), "req_test_123") || bad.Code != "400" {
		t.Fatalf("unexpected error: %v (code %q)", err, bad.Code)
	}
}

func TestGenerateRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", 0, 0, 0, 0).Generate(context.Background(), chatRequest()); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient("k", 0, 0, 0, 0).Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Fatalf("expected missing model error")
	}
}

func TestListModels(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"x-ai/grok-4-fast:free","name":"Grok 4 Fast (free)","context_length":2000000,"pricing":{"prompt":"0","completion":"0"}},
			{"id":"openai/gpt-4o","name":"GPT-4o","context_length":128000,"pricing":{"prompt":"0.0000025","completion":"0.00001"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("", 2*time.Second, 1, 0, 0, srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || !models[0].Free() || models[1].Free() {
		t.Fatalf("unexpected models: %+v", models)
	}
	if got := models[1].InputPerK; got < 0.0024 || got > 0.0026 {
		t.Fatalf("InputPerK = %v", got)
	}
}
