// Package gemini implements the extraction engine on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Extract runs one generation call and returns the raw model text.
// Transient failures are retried with linear backoff; safety blocks and
// truncation surface as the shared sentinels.
func (e *Engine) Extract(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("gemini: GEMINI_API_KEY is empty: %w", llm.ErrUnavailable)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	model := e.Model
	if in.Model != "" {
		model = in.Model
	}
	m := cl.GenerativeModel(model)
	if m == nil {
		return "", fmt.Errorf("gemini: model %q is nil: %w", model, llm.ErrUnavailable)
	}
	// Strict JSON out
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	if in.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(in.System)},
		}
	}

	parts := []genai.Part{genai.Text(in.User)}
	if len(in.Image) > 0 {
		mime := in.MIME
		if mime == "" {
			mime = util.SniffMimeHTTP(in.Image)
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: in.Image})
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		return candidateText(resp)
	}
	return "", fmt.Errorf("gemini extract: %w", lastErr)
}

// candidateText pulls the first candidate's text, mapping finish reasons
// onto the shared error kinds.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil &&
			resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini: prompt blocked (%v): %w",
				resp.PromptFeedback.BlockReason, llm.ErrSafetyBlocked)
		}
		return "", fmt.Errorf("gemini: empty response")
	}
	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety:
		return "", fmt.Errorf("gemini: candidate blocked: %w", llm.ErrSafetyBlocked)
	case genai.FinishReasonMaxTokens:
		return "", fmt.Errorf("gemini: max tokens reached: %w", llm.ErrTruncated)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("gemini: empty candidate content")
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return out, nil
}

func ptrFloat32(f float32) *float32 { return &f }
