package handle

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"homework-analyzer/api/internal/ocr"
	"homework-analyzer/api/internal/pipeline"
	"homework-analyzer/api/internal/segment"
	"homework-analyzer/api/internal/store"
	"homework-analyzer/api/internal/util"
)

// AnalyzeRequest is the cloud wire contract: an image plus the OCR
// collaborator's output for it. When ocrBlocks are omitted and a
// Recognizer is configured, the server runs OCR itself.
type AnalyzeRequest struct {
	LLMName       string             `json:"llm_name"`
	ImageBase64   string             `json:"imageBase64"`
	ImageMimeType string             `json:"imageMimeType"`
	FullText      string             `json:"fullText"`
	OCRBlocks     []segment.OCRBlock `json:"ocrBlocks"`

	// Optional persistence target; ignored when no archive is configured.
	SourceID string `json:"source_id"`
	Page     int    `json:"page"`
}

func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		img  []byte
		mime string
	)
	if s := strings.TrimSpace(req.ImageBase64); s != "" {
		var hint string
		var err error
		img, hint, err = util.DecodeBase64MaybeDataURL(s)
		if err != nil {
			http.Error(w, "bad imageBase64", http.StatusBadRequest)
			return
		}
		mime = util.PickMIME(req.ImageMimeType, hint, img)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 180*time.Second)
	defer cancel()

	// No blocks supplied: run the OCR collaborator if we have one.
	if len(req.OCRBlocks) == 0 && h.Recognizer != nil && len(img) > 0 {
		rec, err := h.Recognizer.Recognize(ctx, img, ocr.Options{Langs: []string{"ru", "en"}})
		if err != nil {
			writeError(w, err)
			return
		}
		req.OCRBlocks = rec.Blocks
		if req.FullText == "" {
			req.FullText = rec.FullText
		}
	}

	out, err := h.Analyzer.AnalyzePage(ctx, pipeline.PageInput{
		Image:    img,
		MIME:     mime,
		FullText: req.FullText,
		Blocks:   req.OCRBlocks,
		LLMName:  req.LLMName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.Archive != nil && req.SourceID != "" {
		page := req.Page
		if page < 1 {
			page = 1
		}
		if err := h.Archive.UpsertPage(ctx, req.SourceID, page, out, req.LLMName, util.SHA256Hex(img)); err != nil {
			// persistence is best-effort for this endpoint
			log.Printf("analyze: archive upsert failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// Pages serves archived results: GET /v1/pages?source_id=...[&page=N].
func (h *Handle) Pages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	if h.Archive == nil {
		http.Error(w, "no archive configured", http.StatusNotFound)
		return
	}
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		http.Error(w, "source_id required", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pageQ := r.URL.Query().Get("page")
	if pageQ == "" {
		pages, err := h.Archive.Pages(ctx, sourceID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"source_id": sourceID, "pages": pages})
		return
	}
	page, err := strconv.Atoi(pageQ)
	if err != nil || page < 1 {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}
	row, err := h.Archive.FindPage(ctx, sourceID, page)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
