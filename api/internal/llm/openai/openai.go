// Package openai implements the extraction engine on the OpenAI chat
// completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
	httpc  *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(key),
		Model:  strings.TrimSpace(model),
		httpc:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Extract(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("openai: OPENAI_API_KEY is empty: %w", llm.ErrUnavailable)
	}
	model := e.Model
	if in.Model != "" {
		model = in.Model
	}

	userContent := []any{
		map[string]any{"type": "text", "text": in.User},
	}
	if len(in.Image) > 0 {
		mime := in.MIME
		if mime == "" {
			mime = util.SniffMimeHTTP(in.Image)
		}
		dataURL := util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(in.Image))
		userContent = append(userContent, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": dataURL, "detail": "high"},
		})
	}

	body := map[string]any{
		"model": model,
		"messages": []any{
			map[string]any{"role": "system", "content": in.System},
			map[string]any{"role": "user", "content": userContent},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, _ := json.Marshal(body)

	req, _ := http.NewRequestWithContext(ctx, "POST",
		"https://api.openai.com/v1/chat/completions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai extract: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai extract %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("openai extract: empty response")
	}
	choice := raw.Choices[0]
	switch choice.FinishReason {
	case "content_filter":
		return "", fmt.Errorf("openai: %w", llm.ErrSafetyBlocked)
	case "length":
		return "", fmt.Errorf("openai: %w", llm.ErrTruncated)
	}
	out := strings.TrimSpace(choice.Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai extract: empty content")
	}
	return out, nil
}
