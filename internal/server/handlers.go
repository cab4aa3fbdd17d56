package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/chart"
	"github.com/hyperjump/chatdata/internal/chat"
	"github.com/hyperjump/chatdata/internal/ingest"
	"github.com/hyperjump/chatdata/internal/llm"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/storage"
	"github.com/hyperjump/chatdata/internal/vizspec"
)

const (
	maxJSONBody       = 4 << 20
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
	dataSourceMissing = "Data source not found"
)

func (s *Server) handleListDataSources(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.List(r.Context())
	if err != nil {
		s.fail(w, err, "Failed to fetch data sources")
		return
	}
	if list == nil {
		list = []*models.DataSource{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateDataSource(w http.ResponseWriter, r *http.Request) {
	var input models.DataSourceInput
	if !s.decode(w, r, &input) {
		return
	}
	ds, err := s.catalog.Create(r.Context(), input)
	if err != nil {
		s.fail(w, err, "Failed to create data source")
		return
	}
	s.respondJSON(w, http.StatusCreated, ds)
}

func (s *Server) handleGetDataSource(w http.ResponseWriter, r *http.Request) {
	ds, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err, "Failed to fetch data source")
		return
	}
	s.respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleUpdateDataSource(w http.ResponseWriter, r *http.Request) {
	var patch models.DataSourcePatch
	if !s.decode(w, r, &patch) {
		return
	}
	ds, err := s.catalog.Patch(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, err, "Failed to update data source")
		return
	}
	s.respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleDeleteDataSource(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err, "Failed to delete data source")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCSVPreview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	p, err := s.catalog.Preview(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, err, "Failed to preview CSV data")
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCSVData(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Data(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err, "Failed to read CSV data")
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.Upload.MaxBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	ds, err := s.catalog.Upload(r.Context(), r.FormValue("name"), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.fail(w, err, "Failed to upload file")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"success": true, "dataSource": ds})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.chat.Respond(r.Context(), req)
	if err != nil {
		var upstream *llm.UpstreamError
		switch {
		case errors.As(err, &upstream):
			s.logger.Error("Generation failed", zap.Error(err))
			body := map[string]any{"error": fmt.Sprintf("%s API error: %s", llm.DisplayName(upstream.Provider), upstream.Message)}
			if upstream.Details != nil {
				body["details"] = upstream.Details
			}
			s.respondJSON(w, http.StatusInternalServerError, body)
		case errors.Is(err, apperrors.ErrConfiguration):
			s.logger.Error("Generation is not configured", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, strings.TrimPrefix(err.Error(), apperrors.ErrConfiguration.Error()+": "))
		default:
			s.fail(w, err, "Error processing your request")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type visualizeRequest struct {
	Content string            `json:"content"`
	Kind    vizspec.ChartType `json:"kind,omitempty"`
}

type visualizeResponse struct {
	Prose         string              `json:"prose"`
	Visualization *vizspec.Spec       `json:"visualization,omitempty"`
	EligibleKinds []vizspec.ChartType `json:"eligibleKinds,omitempty"`
	Chart         *chart.Chart        `json:"chart,omitempty"`
	Table         *vizspec.Table      `json:"table,omitempty"`
	Invalid       string              `json:"invalid,omitempty"`
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	var req visualizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	result := vizspec.Extract(req.Content)
	resp := visualizeResponse{Prose: result.Prose, Visualization: result.Spec}
	if result.Invalid != nil {
		resp.Invalid = result.Invalid.Error()
	}
	switch {
	case result.Spec == nil:
	case result.Spec.Kind == vizspec.KindTable:
		resp.Table, _ = chart.RenderTable(result.Spec)
	default:
		view, err := chart.NewView(result.Spec)
		if err != nil {
			s.fail(w, err, "Failed to render chart")
			return
		}
		if req.Kind != "" {
			if err := view.Select(req.Kind); err != nil {
				s.respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		resp.EligibleKinds = view.Eligible()
		if resp.Chart, err = view.Render(); err != nil {
			s.fail(w, err, "Failed to render chart")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleExport downloads a visualization as a table. The body is a chart or
// table spec in the same JSON shape the assistant emits.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := chart.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	spec, err := vizspec.Decode(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	table, err := chart.FromVisualization(spec)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := "export"
	sheet := "Data"
	if spec.Chart != nil && spec.Chart.Title != "" {
		name = spec.Chart.Title
		sheet = spec.Chart.Title
	}
	if q := r.URL.Query().Get("filename"); q != "" {
		name = q
	}
	filename := strings.TrimSuffix(ingest.SanitizeFilename(name), "."+string(format)) + "." + string(format)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := chart.Write(w, table, format, sheetName(sheet)); err != nil {
		s.logger.Error("Export failed", zap.String("format", string(format)), zap.Error(err))
	}
}

// sheetName trims a title to the 31 characters a worksheet name allows.
func sheetName(title string) string {
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, title)
	if runes := []rune(title); len(runes) > 31 {
		title = string(runes[:31])
	}
	return title
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.QueryLogs.List(r.Context())
	if err != nil {
		s.fail(w, err, "Failed to fetch queries")
		return
	}
	if list == nil {
		list = []*models.QueryLog{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleLLMCheck(w http.ResponseWriter, r *http.Request) {
	resp, err := llm.Check(r.Context(), s.generator)
	body := map[string]any{
		"provider": s.generator.Provider(),
		"model":    s.generator.Model(),
	}
	if err != nil {
		body["success"] = false
		body["error"] = err.Error()
		var upstream *llm.UpstreamError
		if errors.As(err, &upstream) {
			body["errorType"] = upstream.Type
			body["details"] = upstream.Details
		}
		s.respondJSON(w, http.StatusInternalServerError, body)
		return
	}
	body["success"] = true
	body["message"] = resp.Content
	s.respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sources, err := s.store.DataSources.Count(ctx)
	if err != nil {
		s.fail(w, err, "Failed to count data sources")
		return
	}
	queries, err := s.store.QueryLogs.Count(ctx)
	if err != nil {
		s.fail(w, err, "Failed to count queries")
		return
	}
	resp := map[string]any{
		"data_sources":    sources,
		"queries":         queries,
		"backend":         s.store.Backend(),
		"cached_previews": s.catalog.CachedPreviews(),
		"llm": map[string]any{
			"provider":       s.generator.Provider(),
			"model":          s.generator.Model(),
			"key_configured": s.config.LLM.APIKey() != "",
		},
	}
	if usage, err := storage.MeasureUsage(s.store, s.config.Upload.Dir); err == nil {
		resp["disk_usage_bytes"] = usage.Total()
		resp["upload_files"] = usage.UploadFiles
	} else {
		s.logger.Warn("Failed to measure disk usage", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps an error to a status code. Validation messages are passed through;
// other failures log the cause and answer with fallback.
func (s *Server) fail(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.respondError(w, http.StatusNotFound, dataSourceMissing)
	case errors.Is(err, ingest.ErrTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, "File is too large")
	case errors.Is(err, apperrors.ErrValidation):
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		s.logger.Error(fallback, zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, fallback)
	default:
		s.logger.Error(fallback, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, fallback)
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, apperrors.ErrValidation.Error()+": "); i >= 0 {
		msg = msg[i+len(apperrors.ErrValidation.Error())+2:]
	}
	return msg
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
