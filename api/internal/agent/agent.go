// Package agent routes a page to a subject-specialized extraction strategy
// and converts model output into analysis units. Agents differ in prompt
// content and optional fields but converge on the same required fields, so
// the aggregator treats them uniformly.
package agent

import (
	"context"
	"fmt"
	"strings"

	"homework-analyzer/api/internal/analysis"
	"homework-analyzer/api/internal/jsonrepair"
	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/segment"
)

// Routing is the subject classification for one page.
type Routing struct {
	Subject    string  `json:"subject"` // "math" | "science" | "language" | "other"
	GradeLevel int     `json:"gradeLevel"`
	Confidence float64 `json:"confidence"`
}

// DefaultRouting is the fallback when classification fails.
func DefaultRouting() Routing { return Routing{Subject: "other"} }

// Input is everything one extraction call sees: the page image, whole-page
// OCR context (read-only, shared across calls), the segment under
// extraction and its index.
type Input struct {
	Image        []byte
	MIME         string
	PageText     string
	Blocks       []segment.OCRBlock
	Routing      Routing
	Segment      segment.ImageSegment
	SegmentIndex int
	SegmentCount int
}

// Agent is one subject-specialized extraction strategy.
type Agent interface {
	Subject() string
	Extract(ctx context.Context, eng llm.Engine, in Input) (analysis.Result, error)
}

// ForSubject picks the agent for a routed subject; unknown subjects get the
// generic agent.
func ForSubject(subject string) Agent {
	switch subject {
	case "math":
		return &subjectAgent{subject: "math", extras: mathExtras}
	case "science":
		return &subjectAgent{subject: "science", extras: scienceExtras}
	case "language":
		return &subjectAgent{subject: "language", extras: languageExtras}
	default:
		return &subjectAgent{subject: "other"}
	}
}

// subjectAgent implements the shared extraction flow; subjects differ only
// in prompt extras and which optional fields the schema mentions.
type subjectAgent struct {
	subject string
	extras  string
}

func (a *subjectAgent) Subject() string { return a.subject }

func (a *subjectAgent) Extract(ctx context.Context, eng llm.Engine, in Input) (analysis.Result, error) {
	raw, err := eng.Extract(ctx, llm.Request{
		System: a.systemPrompt(),
		User:   userPrompt(in),
		Image:  in.Image,
		MIME:   in.MIME,
	})
	if err != nil {
		return analysis.Result{}, err
	}

	var payload wirePayload
	if err := jsonrepair.ExtractInto(raw, &payload); err != nil {
		return analysis.Result{}, fmt.Errorf("%s agent: %w", a.subject, err)
	}
	return payload.toResult(a.subject, in.Segment), nil
}

func (a *subjectAgent) systemPrompt() string {
	return extractionRules + a.extras + "\nResponse schema:\n" + extractionSchema
}

func userPrompt(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Segment %d of %d, vertical range %.3f–%.3f of the page.\n",
		in.SegmentIndex+1, in.SegmentCount, in.Segment.StartY, in.Segment.EndY)
	if in.Routing.Subject != "" {
		fmt.Fprintf(&sb, "Routed subject: %s", in.Routing.Subject)
		if in.Routing.GradeLevel > 0 {
			fmt.Fprintf(&sb, ", grade %d", in.Routing.GradeLevel)
		}
		sb.WriteString(".\n")
	}
	sb.WriteString("\n--- OCR text of the WHOLE page (context only) ---\n")
	sb.WriteString(in.PageText)
	sb.WriteString("\n\n--- OCR text of THIS segment (extract from this) ---\n")
	sb.WriteString(in.Segment.Text())
	sb.WriteString("\n\nReturn ONLY JSON per the schema. No comments.")
	return sb.String()
}

// Route classifies the page subject and grade from its whole-page OCR text.
// On failure it returns the default routing plus an error wrapping
// analysis.ErrRoutingFailed; callers fall back rather than abort.
func Route(ctx context.Context, eng llm.Engine, pageText string) (Routing, error) {
	raw, err := eng.Extract(ctx, llm.Request{
		System: routeSystem,
		User:   "Page OCR text:\n" + pageText + "\n\nReturn ONLY JSON per the schema.",
	})
	if err != nil {
		return DefaultRouting(), fmt.Errorf("%w: %w", analysis.ErrRoutingFailed, err)
	}
	var r Routing
	if err := jsonrepair.ExtractInto(raw, &r); err != nil {
		return DefaultRouting(), fmt.Errorf("%w: %w", analysis.ErrRoutingFailed, err)
	}
	switch r.Subject {
	case "math", "science", "language", "other":
	default:
		r.Subject = "other"
	}
	return r, nil
}

// wirePayload mirrors the extraction schema.
type wirePayload struct {
	Type      string     `json:"type"`
	Subject   string     `json:"subject"`
	Lessons   []wireUnit `json:"lessons"`
	Exercises []wireUnit `json:"exercises"`
}

type wireUnit struct {
	ExerciseNumber string                `json:"exerciseNumber"`
	Topic          string                `json:"topic"`
	Content        string                `json:"content"`
	InputType      string                `json:"inputType"`
	Position       *analysis.Position    `json:"position"`
	QuestionLatex  *string               `json:"questionLatex"`
	InputConfig    *analysis.InputConfig `json:"inputConfig"`
	GrammarFocus   *string               `json:"grammarFocus"`
}

// toResult converts wire units to analysis units, inheriting the segment's
// span when the model omits or misplaces a position.
func (p wirePayload) toResult(subject string, seg segment.ImageSegment) analysis.Result {
	if p.Subject == "" {
		p.Subject = subject
	}
	out := analysis.Result{Type: p.Type, Subject: p.Subject}
	for _, w := range p.Lessons {
		out.Lessons = append(out.Lessons, w.toUnit(analysis.KindLesson, p.Subject, seg))
	}
	for _, w := range p.Exercises {
		out.Exercises = append(out.Exercises, w.toUnit(analysis.KindExercise, p.Subject, seg))
	}
	return out
}

func (w wireUnit) toUnit(kind analysis.Kind, subject string, seg segment.ImageSegment) analysis.Unit {
	u := analysis.Unit{
		Kind:          kind,
		Number:        strings.TrimSpace(w.ExerciseNumber),
		Topic:         w.Topic,
		Content:       w.Content,
		Subject:       subject,
		InputType:     w.InputType,
		QuestionLatex: w.QuestionLatex,
		InputConfig:   w.InputConfig,
		GrammarFocus:  w.GrammarFocus,
	}
	if w.Position != nil && w.Position.EndY > w.Position.StartY {
		u.Position = *w.Position
	} else {
		u.Position = analysis.Position{StartY: seg.StartY, EndY: seg.EndY}
	}
	return u
}
