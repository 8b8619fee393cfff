package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	"github.com/KaramelBytes/sow-workbench/internal/command"
	"github.com/KaramelBytes/sow-workbench/internal/generation"
	"github.com/KaramelBytes/sow-workbench/internal/pdf"
	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/store"
)

const (
	rawExcerptBytes = 500
	maxLogoBytes    = 5 << 20
)

type generateRequest struct {
	Messages []sow.Message      `json:"messages"`
	RateCard []sow.RateCardItem `json:"rateCard,omitempty"`
	Model    string             `json:"model,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Messages are required", "")
		return
	}
	ctx := r.Context()
	if len(req.RateCard) == 0 {
		card, err := s.opts.RateCard.ListRateCard(ctx)
		if err != nil {
			s.log.Warn("rate card unavailable", zap.Error(err))
		}
		req.RateCard = card
	}
	if strings.TrimSpace(req.Model) == "" {
		if m, err := s.opts.Settings.SelectedModel(ctx); err == nil {
			req.Model = m
		} else if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("selected model unavailable", zap.Error(err))
		}
	}

	res, err := s.opts.Generator.Generate(ctx, generation.Request{
		History:  req.Messages,
		RateCard: req.RateCard,
		Model:    req.Model,
	})
	if err != nil {
		var respErr *generation.ResponseError
		switch {
		case errors.As(err, &respErr):
			s.log.Warn("invalid AI response", zap.String("reason", respErr.Reason))
			writeJSON(w, http.StatusBadGateway, errorBody{
				Error:   "Invalid response from AI",
				Details: respErr.Reason,
				Raw:     respErr.Excerpt(rawExcerptBytes),
			})
		case errors.Is(err, generation.ErrAIService):
			s.log.Error("AI service failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "AI service error", err.Error())
		case r.Context().Err() != nil:
			// client went away; nothing useful to write
		default:
			s.log.Error("generation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Generation failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type commandRequest struct {
	Input   string      `json:"input"`
	SOWData sow.SOWData `json:"sowData"`
}

type docResponse struct {
	SOWData sow.SOWData `json:"sowData"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	doc, err := s.opts.Interpreter.Execute(req.Input, req.SOWData)
	if err != nil {
		var cmdErr *command.Error
		if errors.As(err, &cmdErr) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: cmdErr.Message, Kind: string(cmdErr.Kind)})
			return
		}
		writeError(w, http.StatusInternalServerError, "Command failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docResponse{SOWData: doc})
}

type exportRequest struct {
	SOWData  *sow.SOWData `json:"sowData,omitempty"`
	HTML     string       `json:"html,omitempty"`
	Filename string       `json:"filename,omitempty"`
}

func (s *Server) decodeExport(w http.ResponseWriter, r *http.Request) (exportRequest, bool) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) filename(req exportRequest, ext string) string {
	if name := strings.TrimSpace(req.Filename); name != "" {
		name = filepath.Base(name)
		if !strings.HasSuffix(strings.ToLower(name), "."+ext) {
			name += "." + ext
		}
		return name
	}
	title := ""
	if req.SOWData != nil {
		title = req.SOWData.ProjectTitle
	}
	return render.Filename(title, ext, s.opts.Now())
}

func attachment(w http.ResponseWriter, contentType, name string, size int) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	h.Set("Content-Length", fmt.Sprint(size))
	h.Set("Cache-Control", "no-cache")
}

func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExport(w, r)
	if !ok {
		return
	}
	if req.SOWData == nil {
		writeError(w, http.StatusBadRequest, "sowData is required", "")
		return
	}
	out, err := render.HTML(*req.SOWData, render.LoadBrand(r.Context(), s.opts.Settings))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Export failed", err.Error())
		return
	}
	attachment(w, "text/html; charset=utf-8", s.filename(req, "html"), len(out))
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExport(w, r)
	if !ok {
		return
	}
	if req.SOWData == nil {
		writeError(w, http.StatusBadRequest, "sowData is required", "")
		return
	}
	var buf bytes.Buffer
	if err := render.WriteWorkbook(&buf, *req.SOWData, render.LoadBrand(r.Context(), s.opts.Settings)); err != nil {
		writeError(w, http.StatusInternalServerError, "Export failed", err.Error())
		return
	}
	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", s.filename(req, "xlsx"), buf.Len())
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExport(w, r)
	if !ok {
		return
	}
	html := req.HTML
	if strings.TrimSpace(html) == "" && req.SOWData != nil {
		var err error
		html, err = render.HTML(*req.SOWData, render.LoadBrand(r.Context(), s.opts.Settings))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Export failed", err.Error())
			return
		}
	}
	if strings.TrimSpace(html) == "" {
		writeError(w, http.StatusBadRequest, "HTML content is required", "")
		return
	}
	if s.opts.PDF == nil {
		writeError(w, http.StatusServiceUnavailable, "PDF generation failed", pdf.ErrUnavailable.Error())
		return
	}
	name := s.filename(req, "pdf")
	data, err := s.opts.PDF.Render(r.Context(), html, name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pdf.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.log.Error("pdf export failed", zap.Error(err))
		writeError(w, status, "PDF generation failed", err.Error())
		return
	}
	attachment(w, "application/pdf", name, len(data))
	_, _ = w.Write(data)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	b, err := s.opts.Settings.BrandSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch render.BrandSettings
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	cur, err := s.opts.Settings.BrandSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err.Error())
		return
	}
	if err := s.opts.Settings.SaveBrandSettings(r.Context(), overlay(cur, patch)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// overlay copies the non-empty fields of patch onto cur.
func overlay(cur, patch render.BrandSettings) render.BrandSettings {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&cur.LogoURL, patch.LogoURL)
	set(&cur.PrimaryColor, patch.PrimaryColor)
	set(&cur.SecondaryColor, patch.SecondaryColor)
	set(&cur.AccentColor, patch.AccentColor)
	set(&cur.FontFamily, patch.FontFamily)
	set(&cur.FontSize, patch.FontSize)
	set(&cur.CompanyName, patch.CompanyName)
	return cur
}

var logoExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true}

func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	if s.opts.UploadsDir == "" {
		writeError(w, http.StatusServiceUnavailable, "Uploads are disabled", "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes+1<<20)
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err.Error())
		return
	}
	file, hdr, err := r.FormFile("logo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", "")
		return
	}
	defer file.Close()
	if hdr.Size > maxLogoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Logo exceeds 5MB", "")
		return
	}
	base := filepath.Base(hdr.Filename)
	if !logoExts[strings.ToLower(filepath.Ext(base))] {
		writeError(w, http.StatusBadRequest, "Unsupported image type", base)
		return
	}
	if err := os.MkdirAll(s.opts.UploadsDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "Upload failed", err.Error())
		return
	}
	name := fmt.Sprintf("%d-%s", s.opts.Now().UnixMilli(), base)
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(file); err != nil {
		writeError(w, http.StatusBadRequest, "Upload failed", err.Error())
		return
	}
	if err := os.WriteFile(filepath.Join(s.opts.UploadsDir, name), buf.Bytes(), 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, "Upload failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": "/uploads/" + name})
}

func (s *Server) handleGetSelectedModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.opts.Settings.SelectedModel(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]any{"model": nil})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to load model", err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"model": m})
	}
}

func (s *Server) handlePutSelectedModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		writeError(w, http.StatusBadRequest, "Model is required", "")
		return
	}
	if err := s.opts.Settings.SaveSelectedModel(r.Context(), model); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save model", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "model": model})
}

type rateCardBody struct {
	Roles []sow.RateCardItem `json:"roles"`
}

func (s *Server) handleGetRateCard(w http.ResponseWriter, r *http.Request) {
	items, err := s.opts.RateCard.ListRateCard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rate card", err.Error())
		return
	}
	if items == nil {
		items = []sow.RateCardItem{}
	}
	writeJSON(w, http.StatusOK, rateCardBody{Roles: items})
}

func (s *Server) handlePutRateCard(w http.ResponseWriter, r *http.Request) {
	var body rateCardBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := s.opts.RateCard.ReplaceRateCard(r.Context(), body.Roles); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate card", err.Error())
		return
	}
	s.handleGetRateCard(w, r)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	models := ai.Catalog()
	if s.opts.Models != nil {
		remote, err := s.opts.Models.ListModels(r.Context())
		if err != nil {
			s.log.Warn("model listing failed, using catalog", zap.Error(err))
		} else if len(remote) > 0 {
			models = remote
		}
	}
	free := q.Get("free") == "true" || q.Get("free") == "1"
	out := ai.FilterModels(models, q.Get("search"), free)
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}
