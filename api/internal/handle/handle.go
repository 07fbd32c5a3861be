package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"homework-analyzer/api/internal/analysis"
	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/ocr"
	"homework-analyzer/api/internal/pipeline"
	"homework-analyzer/api/internal/store"
)

type Handle struct {
	Analyzer   *pipeline.Analyzer
	Recognizer ocr.Recognizer
	Archive    *store.ArchiveRepo // optional; nil disables persistence
}

func New(a *pipeline.Analyzer, rec ocr.Recognizer, repo *store.ArchiveRepo) *Handle {
	return &Handle{Analyzer: a, Recognizer: rec, Archive: repo}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. The error text
// carries the kind (safety block, truncation, repair failure) so callers
// can decide whether to retry with different parameters.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrInvalidSource):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, llm.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
