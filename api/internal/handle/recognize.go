package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"homework-analyzer/api/internal/ocr"
	"homework-analyzer/api/internal/util"
)

type RecognizeRequest struct {
	ImageBase64   string   `json:"imageBase64"`
	ImageMimeType string   `json:"imageMimeType"`
	Languages     []string `json:"languages"`
	Model         string   `json:"model"` // recognition model, e.g. "handwritten"
}

// Recognize is the OCR passthrough: image in, full text plus positioned
// blocks out.
func (h *Handle) Recognize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if h.Recognizer == nil {
		http.Error(w, "no OCR backend configured", http.StatusNotFound)
		return
	}
	var req RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	img, _, err := util.DecodeBase64MaybeDataURL(strings.TrimSpace(req.ImageBase64))
	if err != nil || len(img) == 0 {
		http.Error(w, "bad imageBase64", http.StatusBadRequest)
		return
	}

	langs := req.Languages
	if len(langs) == 0 {
		langs = []string{"ru", "en"}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	out, err := h.Recognizer.Recognize(ctx, img, ocr.Options{Langs: langs, Model: req.Model})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
