// Package analysis defines the structured results of a homework page
// analysis run and the aggregation that merges per-segment extraction
// outputs into one ordered, coordinate-consistent result.
package analysis

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Kind discriminates the two unit flavors.
type Kind string

const (
	KindLesson   Kind = "lesson"
	KindExercise Kind = "exercise"
)

// Result types, mirrored by the agents' output schemas.
const (
	TypeExercises     = "exercises"
	TypeStudyMaterial = "study_material"
)

// Position is a unit's vertical span on the page, in the normalized
// top-origin convention (see the geometry package).
type Position struct {
	StartY float64 `json:"startY"`
	EndY   float64 `json:"endY"`
}

// InputConfig describes how a student is expected to answer a unit.
// Emitted by the science agent; null for agents that don't use it.
type InputConfig struct {
	DiagramType string   `json:"diagramType,omitempty"` // "circuit" | "cell" | "graph" | ...
	Choices     []string `json:"choices,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// Unit is one extracted lesson or exercise. Position is inherited from the
// segment that produced the unit. Optional subject-specific fields are
// pointers so they serialize as explicit null when absent, keeping the
// shape stable across agents.
type Unit struct {
	Kind      Kind     `json:"kind"`
	Number    string   `json:"exerciseNumber,omitempty"`
	Topic     string   `json:"topic"`
	Content   string   `json:"content"`
	Subject   string   `json:"subject"`
	InputType string   `json:"inputType"` // "text" | "canvas" | "choice" | "inline"
	Position  Position `json:"position"`

	QuestionLatex *string      `json:"questionLatex"` // math agent
	InputConfig   *InputConfig `json:"inputConfig"`   // science agent
	GrammarFocus  *string      `json:"grammarFocus"`  // language agent
}

// Result is the merged output of one analysis run. Both slices are sorted
// ascending by StartY and exercise numbers are unique within the result.
// A new Result wholly replaces any previous one for the same page.
type Result struct {
	Type      string `json:"type"`
	Subject   string `json:"subject"`
	Lessons   []Unit `json:"lessons"`
	Exercises []Unit `json:"exercises"`
}

// IsEmpty reports whether the run produced no units at all.
func (r Result) IsEmpty() bool { return len(r.Lessons) == 0 && len(r.Exercises) == 0 }

// AnswerType distinguishes how a stored answer was captured.
type AnswerType string

const (
	AnswerCanvas AnswerType = "canvas"
	AnswerText   AnswerType = "text"
	AnswerInline AnswerType = "inline"
)

// AnswerKey joins an exercise to its stored answer. Stable only while the
// exercise number and StartY are stable: re-analysis invalidates old keys
// unless answers are carried over explicitly.
func AnswerKey(exerciseNumber string, startY float64, t AnswerType) string {
	return exerciseNumber + "_" + strconv.FormatFloat(startY, 'f', -1, 64) + "_" + string(t)
}

// Key returns the unit's answer key for the given answer type.
func (u Unit) Key(t AnswerType) string { return AnswerKey(u.Number, u.Position.StartY, t) }

// PageAnalysis is one archived page: its result, any stored answers keyed
// by AnswerKey, the method that produced it and when.
type PageAnalysis struct {
	Result     Result            `json:"result"`
	Answers    map[string][]byte `json:"answers,omitempty"`
	Method     string            `json:"analysisMethod"`
	AnalyzedAt time.Time         `json:"analyzedAt"`
}

// Archive maps 1-indexed page numbers to their analyses for a multi-page
// source. Entries are added or overwritten per page, never implicitly
// deleted. Safe for concurrent use.
type Archive struct {
	mu    sync.RWMutex
	pages map[int]PageAnalysis
}

func NewArchive() *Archive {
	return &Archive{pages: make(map[int]PageAnalysis)}
}

// Put stores or replaces one page's entry, leaving other pages untouched.
func (a *Archive) Put(page int, pa PageAnalysis) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pa.Answers == nil {
		pa.Answers = make(map[string][]byte)
	}
	a.pages[page] = pa
}

func (a *Archive) Get(page int) (PageAnalysis, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pa, ok := a.pages[page]
	return pa, ok
}

// SaveAnswer attaches answer bytes to an archived page. Returns false when
// the page has no entry yet.
func (a *Archive) SaveAnswer(page int, key string, data []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	pa, ok := a.pages[page]
	if !ok {
		return false
	}
	pa.Answers[key] = data
	a.pages[page] = pa
	return true
}

// Pages returns the archived page numbers in ascending order.
func (a *Archive) Pages() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int, 0, len(a.pages))
	for p := range a.pages {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of archived pages.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pages)
}
