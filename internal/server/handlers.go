package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/billparse/internal/billpipe"
	"github.com/MeKo-Tech/billparse/internal/export"
	"github.com/MeKo-Tech/billparse/internal/version"
)

const maxRequestBodyBytes = 1 << 20

// Response headers describing a degraded result.
const (
	PartialHeader      = "X-Billparse-Partial"
	SkippedPagesHeader = "X-Billparse-Skipped-Pages"
)

var contentTypes = map[string]string{
	export.FormatJSON: "application/json",
	export.FormatYAML: "application/yaml",
	export.FormatCSV:  "text/csv; charset=utf-8",
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	build := version.Current()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: build.Version,
		Commit:  build.Commit,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// extractHandler runs the pipeline for the document URL in the request body.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeExtractRequest(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), "", http.StatusBadRequest)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}
	contentType, ok := contentTypes[format]
	if !ok {
		s.writeErrorResponse(w, r, "unsupported format: "+format, "", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With("request_id", RequestIDFromContext(r.Context()))
	logger.Info("extraction requested", "document", req.Document)

	res, err := s.processor.ProcessURL(ctx, req.Document, nil)
	if err != nil {
		kind := billpipe.KindOf(err)
		extractRequestsTotal.WithLabelValues("http", outcomeLabel(kind)).Inc()
		logger.Error("extraction failed", "kind", kind, "error", err)
		s.writeErrorResponse(w, r, err.Error(), string(kind), statusForError(err))
		return
	}
	extractRequestsTotal.WithLabelValues("http", resultOutcome(res)).Inc()
	logger.Info("extraction finished", "summary", res.Summary())

	var buf bytes.Buffer
	if err := export.Write(&buf, format, responseFromResult(res)); err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("formatting failed: %v", err), "", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if res.Partial {
		w.Header().Set(PartialHeader, "true")
	}
	if len(res.Skipped) > 0 {
		w.Header().Set(SkippedPagesHeader, strconv.Itoa(len(res.Skipped)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func decodeExtractRequest(body io.Reader) (ExtractRequest, error) {
	var req ExtractRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	req.Document = strings.TrimSpace(req.Document)
	if req.Document == "" {
		return req, errors.New("invalid request body: document url is required")
	}
	return req, nil
}

func responseFromResult(res *billpipe.Result) export.Response {
	return export.Response{IsSuccess: true, TokenUsage: res.Usage, Data: res.Document}
}

// statusForError maps fatal pipeline errors to HTTP status codes.
func statusForError(err error) int {
	if billpipe.KindOf(err) == billpipe.KindDownload {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func outcomeLabel(kind billpipe.Kind) string {
	if kind == "" {
		return "error"
	}
	return string(kind)
}

func resultOutcome(res *billpipe.Result) string {
	if res.Partial || len(res.Skipped) > 0 {
		return "partial"
	}
	return "success"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message, kind string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		IsSuccess: false,
		Message:   message,
		Kind:      kind,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
