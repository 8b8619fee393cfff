// Package server exposes the workbench over HTTP: generation, slash
// commands, exports and the persisted settings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	"github.com/KaramelBytes/sow-workbench/internal/command"
	"github.com/KaramelBytes/sow-workbench/internal/generation"
	"github.com/KaramelBytes/sow-workbench/internal/pdf"
	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// Generator runs one generation request.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// SettingsStore persists brand settings and the selected model.
type SettingsStore interface {
	BrandSettings(ctx context.Context) (render.BrandSettings, error)
	SaveBrandSettings(ctx context.Context, b render.BrandSettings) error
	SelectedModel(ctx context.Context) (string, error)
	SaveSelectedModel(ctx context.Context, model string) error
}

// RateCardStore persists the agency rate card.
type RateCardStore interface {
	ListRateCard(ctx context.Context) ([]sow.RateCardItem, error)
	ReplaceRateCard(ctx context.Context, items []sow.RateCardItem) error
}

// Options wires the server's collaborators. Generator, Settings and RateCard
// are required; the rest have defaults.
type Options struct {
	Addr           string
	Generator      Generator
	Settings       SettingsStore
	RateCard       RateCardStore
	Models         ai.ModelLister
	PDF            pdf.Renderer
	Interpreter    *command.Interpreter
	UploadsDir     string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *zap.Logger
	Now            func() time.Time
}

// Server is the HTTP front end.
type Server struct {
	opts    Options
	log     *zap.Logger
	mux     *http.ServeMux
	limiter *ClientLimiter
	srv     *http.Server
}

// New validates opts and builds the route table.
func New(opts Options) (*Server, error) {
	if opts.Generator == nil || opts.Settings == nil || opts.RateCard == nil {
		return nil, errors.New("server: generator, settings and rate card store are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interpreter == nil {
		opts.Interpreter = command.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Addr == "" {
		opts.Addr = ":3002"
	}
	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		mux:     http.NewServeMux(),
		limiter: NewClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	limited := RateLimit(s.limiter, s.log)
	s.mux.Handle("POST /api/generate", limited(http.HandlerFunc(s.handleGenerate)))
	s.mux.HandleFunc("POST /api/command", s.handleCommand)

	s.mux.HandleFunc("POST /api/export/html", s.handleExportHTML)
	s.mux.HandleFunc("POST /api/export/xlsx", s.handleExportXLSX)
	s.mux.HandleFunc("POST /api/export/pdf", s.handleExportPDF)

	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	s.mux.HandleFunc("POST /api/settings/logo", s.handleUploadLogo)
	s.mux.HandleFunc("GET /api/settings/selectedModel", s.handleGetSelectedModel)
	s.mux.HandleFunc("PUT /api/settings/selectedModel", s.handlePutSelectedModel)

	s.mux.HandleFunc("GET /api/ratecard", s.handleGetRateCard)
	s.mux.HandleFunc("PUT /api/ratecard", s.handlePutRateCard)
	s.mux.HandleFunc("GET /api/ai/models", s.handleModels)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.UploadsDir != "" {
		s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadsDir))))
	}
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		CORSMiddleware(s.opts.AllowedOrigins),
	)(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// generation can take minutes on slow models
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info("server starting", zap.String("addr", ln.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const maxBodyBytes = 10 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Raw     string `json:"raw,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
