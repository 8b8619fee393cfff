package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	"github.com/KaramelBytes/sow-workbench/internal/generation"
	"github.com/KaramelBytes/sow-workbench/internal/pdf"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

type fakeGenerator struct {
	mu   sync.Mutex
	last generation.Request
	res  *generation.Result
	err  error
}

func (g *fakeGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return g.res, nil
}

type fakePDF struct {
	data []byte
	err  error
	html string
}

func (p *fakePDF) Render(_ context.Context, html, _ string) ([]byte, error) {
	p.html = html
	return p.data, p.err
}

type fakeLister struct {
	models []ai.ModelInfo
	err    error
}

func (l fakeLister) ListModels(context.Context) ([]ai.ModelInfo, error) { return l.models, l.err }

type fixture struct {
	srv   *Server
	store *store.Store
	gen   *fakeGenerator
	pdf   *fakePDF
	dir   string
}

func newFixture(t *testing.T, mod func(*Options)) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		store: st,
		gen:   &fakeGenerator{res: &generation.Result{AIMessage: "done"}},
		pdf:   &fakePDF{data: []byte("%PDF-1.7")},
		dir:   t.TempDir(),
	}
	opts := Options{
		Generator:  f.gen,
		Settings:   st.Settings,
		RateCard:   st,
		PDF:        f.pdf,
		UploadsDir: f.dir,
		Now:        func() time.Time { return fixedNow },
	}
	if mod != nil {
		mod(&opts)
	}
	f.srv, err = New(opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestGenerate_UsesStoredRateCardAndModel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.ReplaceRateCard(ctx, []sow.RateCardItem{{Name: "Designer", Rate: 150}}))
	require.NoError(t, f.store.Settings.SaveSelectedModel(ctx, "openai/gpt-4o-mini"))

	rec := f.do(t, http.MethodPost, "/api/generate", map[string]any{
		"messages": []sow.Message{{Role: "user", Content: "Build a website"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "done", decode(t, rec)["aiMessage"])
	assert.Equal(t, "openai/gpt-4o-mini", f.gen.last.Model)
	assert.Equal(t, []sow.RateCardItem{{Name: "Designer", Rate: 150}}, f.gen.last.RateCard)
	assert.Len(t, f.gen.last.History, 1)
}

func TestGenerate_RequestOverridesStoredValues(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Settings.SaveSelectedModel(context.Background(), "stored/model"))
	rec := f.do(t, http.MethodPost, "/api/generate", map[string]any{
		"messages": []sow.Message{{Role: "user", Content: "hi"}},
		"rateCard": []sow.RateCardItem{{Name: "PM", Rate: 99}},
		"model":    "request/model",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "request/model", f.gen.last.Model)
	assert.Equal(t, []sow.RateCardItem{{Name: "PM", Rate: 99}}, f.gen.last.RateCard)
}

func TestGenerate_Errors(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/generate", map[string]any{"messages": []sow.Message{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.gen.err = &generation.ServiceError{Model: "m", Err: errors.New("status 500")}
	rec = f.do(t, http.MethodPost, "/api/generate", map[string]any{"messages": []sow.Message{{Role: "user", Content: "x"}}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "AI service error", decode(t, rec)["error"])

	f.gen.err = &generation.ResponseError{Reason: "no JSON object", Raw: strings.Repeat("x", 2000)}
	rec = f.do(t, http.MethodPost, "/api/generate", map[string]any{"messages": []sow.Message{{Role: "user", Content: "x"}}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "no JSON object", body["details"])
	assert.Len(t, body["raw"], rawExcerptBytes+3)
}

func TestGenerate_RateLimited(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.RateLimitRPS = 0.001
		o.RateLimitBurst = 1
	})
	msg := map[string]any{"messages": []sow.Message{{Role: "user", Content: "x"}}}
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/generate", msg).Code)
	rec := f.do(t, http.MethodPost, "/api/generate", msg)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCommand(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/command", map[string]any{
		"input":   "/setBudget 5000",
		"sowData": sow.SOWData{ProjectTitle: "Site"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out docResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, strings.HasPrefix(out.SOWData.BudgetNote, "Target budget: $5,000."), out.SOWData.BudgetNote)
	assert.Equal(t, "Site", out.SOWData.ProjectTitle)

	rec = f.do(t, http.MethodPost, "/api/command", map[string]any{"input": "/frobnicate", "sowData": sow.SOWData{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_command", decode(t, rec)["kind"])
}

func TestExportHTMLAndXLSX(t *testing.T) {
	f := newFixture(t, nil)
	doc := sow.SOWData{ProjectTitle: "Acme Rebuild", ClientName: "Acme"}

	rec := f.do(t, http.MethodPost, "/api/export/html", map[string]any{"sowData": doc})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Acme_Rebuild_Export_2026-05-01.html")
	assert.Contains(t, rec.Body.String(), "Statement of Work")

	rec = f.do(t, http.MethodPost, "/api/export/xlsx", map[string]any{"sowData": doc, "filename": "quote"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `"quote.xlsx"`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = f.do(t, http.MethodPost, "/api/export/html", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportPDF(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/export/pdf", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "HTML content is required", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/export/pdf", map[string]any{"html": "<p>hi</p>"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Export_2026-05-01.pdf")
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/export/pdf", map[string]any{"sowData": sow.SOWData{ProjectTitle: "Rendered"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.pdf.html, "Rendered")

	f.pdf.err = pdf.ErrUnavailable
	rec = f.do(t, http.MethodPost, "/api/export/pdf", map[string]any{"html": "<p>hi</p>"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Social Garden", decode(t, rec)["companyName"])

	rec = f.do(t, http.MethodPut, "/api/settings", map[string]any{"companyName": "Leaf Digital"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])

	rec = f.do(t, http.MethodGet, "/api/settings", nil)
	body := decode(t, rec)
	assert.Equal(t, "Leaf Digital", body["companyName"])
	assert.Equal(t, "#0e2e33", body["primaryColor"])
}

func TestSelectedModel(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/settings/selectedModel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["model"])

	rec = f.do(t, http.MethodPut, "/api/settings/selectedModel", map[string]any{"model": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Model is required", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPut, "/api/settings/selectedModel", map[string]any{"model": "google/gemini-2.5-flash"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/settings/selectedModel", nil)
	assert.Equal(t, "google/gemini-2.5-flash", decode(t, rec)["model"])
}

func TestUploadLogo(t *testing.T) {
	f := newFixture(t, nil)

	upload := func(name string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("logo", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte("\x89PNG"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/settings/logo", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := upload("brand.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	want := "/uploads/1777627800000-brand.png"
	assert.Equal(t, want, decode(t, rec)["url"])
	_, err := os.Stat(filepath.Join(f.dir, "1777627800000-brand.png"))
	assert.NoError(t, err)

	rec = f.do(t, http.MethodGet, want, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG", rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, upload("payload.exe").Code)
}

func TestRateCardEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/ratecard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"roles":[]}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/ratecard", rateCardBody{Roles: []sow.RateCardItem{{Name: "PM", Rate: 180}, {Name: "Dev", Rate: 160}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"roles":[{"name":"PM","rate":180},{"name":"Dev","rate":160}]}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/ratecard", rateCardBody{Roles: []sow.RateCardItem{{Name: "", Rate: 1}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModels(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Models = fakeLister{models: []ai.ModelInfo{
			{ID: "x-ai/grok-4-fast:free"},
			{ID: "openai/gpt-4o", InputPerK: 0.005, OutputPerK: 0.015},
		}}
	})
	rec := f.do(t, http.MethodGet, "/api/ai/models?free=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Models []ai.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Models, 1)
	assert.Equal(t, "x-ai/grok-4-fast:free", out.Models[0].ID)

	rec = f.do(t, http.MethodGet, "/api/ai/models?search=gpt", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Models, 1)
	assert.Equal(t, "openai/gpt-4o", out.Models[0].ID)
}

func TestModels_FallsBackToCatalog(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Models = fakeLister{err: errors.New("offline")} })
	rec := f.do(t, http.MethodGet, "/api/ai/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Models []ai.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Models, len(ai.Catalog()))
}

func TestCORS(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AllowedOrigins = []string{"http://localhost:3000"} })
	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(newFixture(t, nil).srv.log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
