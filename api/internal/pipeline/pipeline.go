// Package pipeline drives a full page analysis: segmentation, subject
// routing, one extraction call per segment with whole-page context, and
// aggregation into one ordered result. A failed segment is logged and
// skipped; only a run where every segment fails is an error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"homework-analyzer/api/internal/agent"
	"homework-analyzer/api/internal/analysis"
	"homework-analyzer/api/internal/geometry"
	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/segment"
	"homework-analyzer/api/internal/util"
)

// Progress reports (current, total) after each segment completes, whether
// it succeeded or not. Called before aggregation; never after the run
// returns.
type Progress func(current, total int)

// Config tunes one Analyzer. Zero values mean defaults.
type Config struct {
	Segmentation segment.Config
	// Parallelism bounds concurrent segment calls. <= 1 means sequential.
	Parallelism int
	// CropPadding expands each segment's image crop, as a fraction of page
	// height per side. <= 0 means the default.
	CropPadding float64
}

// Analyzer runs page analyses. Stateless between runs: per-run state
// (progress counter, partial results) lives on the stack of AnalyzePage,
// so concurrent runs for different pages share nothing mutable.
type Analyzer struct {
	engines     *llm.Engines
	segmenter   *segment.Segmenter
	parallelism int
	cropPadding float64
}

func New(engines *llm.Engines, cfg Config) *Analyzer {
	p := cfg.Parallelism
	if p < 1 {
		p = 1
	}
	pad := cfg.CropPadding
	if pad <= 0 {
		pad = geometry.DefaultCropPadding
	}
	return &Analyzer{
		engines:     engines,
		segmenter:   segment.NewWithConfig(cfg.Segmentation),
		parallelism: p,
		cropPadding: pad,
	}
}

// PageInput is one page to analyze. FullText and Blocks come from the OCR
// collaborator; Image is optional and forwarded to the extraction calls.
type PageInput struct {
	Image    []byte
	MIME     string
	FullText string
	Blocks   []segment.OCRBlock
	LLMName  string // engine selector; empty picks the default
	Progress Progress
}

// AnalyzePage runs the whole pipeline for one page. Best-effort: the
// result contains whatever segments succeeded. Errors are run-level only:
// invalid source, unavailable engine, cancellation, or all segments failed.
func (a *Analyzer) AnalyzePage(ctx context.Context, in PageInput) (analysis.Result, error) {
	if len(in.Blocks) == 0 {
		return analysis.Result{}, analysis.ErrInvalidSource
	}

	eng, err := a.engines.GetEngine(in.LLMName)
	if err != nil {
		return analysis.Result{}, err
	}

	routing, err := agent.Route(ctx, eng, in.FullText)
	if err != nil {
		// Recoverable: fall back to the generic agent.
		log.Printf("pipeline: routing failed, using generic agent: %v", err)
	}
	ag := agent.ForSubject(routing.Subject)

	segs := a.segmenter.Segment(in.Blocks)
	total := len(segs)

	parts := make([]*analysis.Result, total)
	errs := make([]error, total)

	var (
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
	)
	sem := make(chan struct{}, a.parallelism)

	for i, seg := range segs {
		// Cancellation stops scheduling further segments; in-flight calls
		// finish and their results are discarded below.
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, seg segment.ImageSegment) {
			defer wg.Done()
			defer func() { <-sem }()

			img, mime := a.segmentImage(in, seg)
			res, err := ag.Extract(ctx, eng, agent.Input{
				Image:        img,
				MIME:         mime,
				PageText:     in.FullText,
				Blocks:       in.Blocks,
				Routing:      routing,
				Segment:      seg,
				SegmentIndex: i,
				SegmentCount: total,
			})

			mu.Lock()
			if err != nil {
				errs[i] = err
				log.Printf("pipeline: segment %d/%d failed, skipping: %v", i+1, total, err)
			} else {
				parts[i] = &res
			}
			completed++
			current := completed
			mu.Unlock()

			if in.Progress != nil {
				in.Progress(current, total)
			}
		}(i, seg)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return analysis.Result{}, err
	}

	// Collect in segment order; completion order is irrelevant because the
	// aggregator re-sorts by StartY anyway.
	ok := make([]analysis.Result, 0, total)
	var lastErr error
	for i := range parts {
		if parts[i] != nil {
			ok = append(ok, *parts[i])
			continue
		}
		if errs[i] != nil {
			if errors.Is(errs[i], llm.ErrUnavailable) {
				return analysis.Result{}, errs[i]
			}
			lastErr = errs[i]
		}
	}
	if len(ok) == 0 {
		if lastErr != nil {
			return analysis.Result{}, fmt.Errorf("%w: %w", analysis.ErrAllSegmentsFailed, lastErr)
		}
		return analysis.Result{}, analysis.ErrAllSegmentsFailed
	}

	out := analysis.Aggregate(ok)
	if out.Subject == "" || out.Subject == "other" {
		if routing.Subject != "" {
			out.Subject = routing.Subject
		}
	}
	return out, nil
}

// segmentImage crops the segment's band out of the page image so each
// extraction call sees only its region. Crop failures fall back to the
// whole page rather than failing the segment.
func (a *Analyzer) segmentImage(in PageInput, seg segment.ImageSegment) ([]byte, string) {
	if len(in.Image) == 0 {
		return nil, ""
	}
	img, mime, err := util.CropSegment(in.Image, seg.StartY, seg.EndY, a.cropPadding)
	if err != nil {
		log.Printf("pipeline: segment crop failed, sending full page: %v", err)
		return in.Image, in.MIME
	}
	return img, mime
}

// AnalyzeDocument analyzes a multi-page source, archiving each page under
// its 1-indexed page number. One page failing does not stop the others;
// the error returned is the last page-level failure, if any. Re-analyzing
// a single page is just AnalyzePage + Archive.Put for that page.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, pages []PageInput, arch *analysis.Archive, method string) error {
	var lastErr error
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := a.AnalyzePage(ctx, p)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", i+1, err)
			log.Printf("pipeline: %v", lastErr)
			continue
		}
		arch.Put(i+1, analysis.PageAnalysis{
			Result:     res,
			Method:     method,
			AnalyzedAt: time.Now(),
		})
	}
	return lastErr
}
