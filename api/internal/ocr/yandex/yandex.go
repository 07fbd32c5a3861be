// Package yandex implements the OCR collaborator on Yandex Vision.
package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"homework-analyzer/api/internal/geometry"
	"homework-analyzer/api/internal/ocr"
	"homework-analyzer/api/internal/segment"
	"homework-analyzer/api/internal/util"
)

type Engine struct {
	iamc     *IamClient
	folderID string
	httpc    *http.Client
}

func New(oauth2Token, folderID string) *Engine {
	return &Engine{
		iamc:     NewIamClient(oauth2Token),
		folderID: folderID,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["ru","en"]
	Model         string   `json:"model,omitempty"`         // e.g. "handwritten", "page"
}

// Yandex Vision serializes all coordinates as strings.
type vertex struct {
	X string `json:"x"`
	Y string `json:"y"`
}

type boundingBox struct {
	Vertices []vertex `json:"vertices"`
}

type line struct {
	BoundingBox *boundingBox `json:"boundingBox,omitempty"`
	Text        string       `json:"text,omitempty"`
}

type block struct {
	BoundingBox *boundingBox `json:"boundingBox,omitempty"`
	Lines       []line       `json:"lines,omitempty"`
}

type textAnnotation struct {
	Width    string  `json:"width,omitempty"`
	Height   string  `json:"height,omitempty"`
	FullText string  `json:"fullText,omitempty"`
	Blocks   []block `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
		Page           string          `json:"page,omitempty"`
	} `json:"result,omitempty"`
}

// Recognize runs one OCR call and converts pixel coordinates to the
// canonical normalized convention (0 = top). Yandex rows are already
// top-origin, so no axis flip is needed here; a bottom-origin backend
// would apply geometry.FlipY at this point and nowhere else.
func (e *Engine) Recognize(ctx context.Context, image []byte, opt ocr.Options) (ocr.Result, error) {
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return ocr.Result{}, err
	}
	reqBody := request{
		Content:       base64.StdEncoding.EncodeToString(image),
		MimeType:      util.SniffMimeForOCR(image),
		LanguageCodes: opt.Langs,
		Model:         opt.Model,
	}
	if reqBody.Model == "" {
		reqBody.Model = "handwritten"
	}
	payload, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST",
		"https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText",
		bytes.NewReader(payload),
	)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+iamToken)
	req.Header.Set("x-folder-id", e.folderID)
	req.Header.Set("x-data-logging-enabled", "true")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return ocr.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// one retry with a fresh IAM token
		if iamToken, err = e.iamc.Token(ctx); err != nil {
			return ocr.Result{}, err
		}
		req.Header.Set("Authorization", "Bearer "+iamToken)
		resp, err = e.httpc.Do(req)
		if err != nil {
			return ocr.Result{}, err
		}
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return ocr.Result{}, fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, string(x))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Result{}, err
	}
	if out.Result == nil || out.Result.TextAnnotation == nil {
		return ocr.Result{}, nil
	}
	return convert(out.Result.TextAnnotation), nil
}

// convert builds the collaborator result from one text annotation.
func convert(ta *textAnnotation) ocr.Result {
	pageHeight, _ := strconv.ParseFloat(ta.Height, 64)

	res := ocr.Result{FullText: strings.TrimSpace(ta.FullText)}

	var lines []string
	for _, b := range ta.Blocks {
		var texts []string
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				texts = append(texts, s)
				lines = append(lines, s)
			}
		}
		if len(texts) == 0 {
			continue
		}
		ob := segment.OCRBlock{Text: strings.Join(texts, "\n")}
		if top, bottom, ok := verticalSpan(b.BoundingBox); ok && pageHeight > 0 {
			ob.StartY = geometry.NormalizeY(top, pageHeight)
			ob.EndY = geometry.NormalizeY(bottom, pageHeight)
		}
		res.Blocks = append(res.Blocks, ob)
	}

	if res.FullText == "" {
		res.FullText = strings.Join(lines, "\n")
	}
	return res
}

// verticalSpan extracts the min/max pixel rows of a bounding box.
func verticalSpan(bb *boundingBox) (top, bottom float64, ok bool) {
	if bb == nil || len(bb.Vertices) == 0 {
		return 0, 0, false
	}
	first := true
	for _, v := range bb.Vertices {
		y, err := strconv.ParseFloat(v.Y, 64)
		if err != nil {
			continue
		}
		if first {
			top, bottom = y, y
			first = false
			continue
		}
		if y < top {
			top = y
		}
		if y > bottom {
			bottom = y
		}
	}
	return top, bottom, !first
}
