// Package llm abstracts the extraction model backends. Engines are
// interchangeable from the caller's perspective: a prompt plus optional
// image in, raw model text out. Backend-specific failure modes map onto
// the shared sentinel errors so the orchestrator can tell a dead backend
// from a transient one.
package llm

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnavailable means the backend cannot be used at all (no API key,
	// model not present). Not transient; callers should not retry.
	ErrUnavailable = errors.New("llm engine unavailable")

	// ErrSafetyBlocked means the backend refused the request on safety
	// grounds. Surfaced distinctly so callers can retry with different
	// parameters instead of re-parsing garbage.
	ErrSafetyBlocked = errors.New("response blocked by safety filter")

	// ErrTruncated means the response hit the output token limit before
	// finishing.
	ErrTruncated = errors.New("response truncated")
)

// Request is one extraction call. System carries the agent's instructions
// and schema; User carries the per-segment context. Image is optional.
type Request struct {
	System string
	User   string
	Image  []byte
	MIME   string
	Model  string // overrides the engine's configured model when set
}

// Engine is a single extraction backend.
type Engine interface {
	Name() string
	GetModel() string
	Extract(ctx context.Context, in Request) (string, error)
}

// Engines holds the configured backends and resolves them by name.
type Engines struct {
	Gemini Engine
	OpenAI Engine
}

// GetEngine resolves a backend by request name; empty defaults to Gemini.
func (e *Engines) GetEngine(name string) (Engine, error) {
	switch name {
	case "", "gemini":
		return e.Gemini, nil
	case "gpt", "openai":
		return e.OpenAI, nil
	default:
		return nil, errors.New("unknown llm_name; use 'gemini' or 'gpt'")
	}
}

// Manager tracks a per-chat engine preference with a shared default.
type Manager struct {
	def Engine
	m   sync.Map // chatID -> Engine
}

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, e)
}
