package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"homework-analyzer/api/internal/analysis"
	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/segment"
)

// scriptedEngine dispatches routing and per-segment extraction calls to a
// responder function.
type scriptedEngine struct {
	respond func(in llm.Request) (string, error)
}

func (s *scriptedEngine) Name() string     { return "scripted" }
func (s *scriptedEngine) GetModel() string { return "scripted" }
func (s *scriptedEngine) Extract(ctx context.Context, in llm.Request) (string, error) {
	return s.respond(in)
}

const routingOK = `{"subject":"math","gradeLevel":3,"confidence":0.95}`

// segmentIndex parses "Segment i of n" from an extraction prompt; returns
// 0,0 for routing calls.
func segmentIndex(in llm.Request) (i, n int) {
	if !strings.HasPrefix(in.User, "Segment ") {
		return 0, 0
	}
	fmt.Sscanf(in.User, "Segment %d of %d", &i, &n)
	return i, n
}

func segmentResponse(i int, startY float64) string {
	return fmt.Sprintf(`{
  "type": "exercises",
  "subject": "math",
  "lessons": [],
  "exercises": [{
    "exerciseNumber": "%d", "topic": "t", "content": "c",
    "inputType": "text",
    "position": {"startY": %.3f, "endY": %.3f}
  }]
}`, i, startY, startY+0.05)
}

// fiveSegmentBlocks makes five well-separated zero-height blocks.
func fiveSegmentBlocks() []segment.OCRBlock {
	var blocks []segment.OCRBlock
	for i := 0; i < 5; i++ {
		y := 0.05 + float64(i)*0.2
		blocks = append(blocks, segment.OCRBlock{Text: fmt.Sprintf("task %d", i+1), StartY: y, EndY: y})
	}
	return blocks
}

func newAnalyzer(eng llm.Engine, parallelism int) *Analyzer {
	return New(&llm.Engines{Gemini: eng}, Config{Parallelism: parallelism})
}

func TestAnalyzePage_SkipsFailedSegment(t *testing.T) {
	eng := &scriptedEngine{respond: func(in llm.Request) (string, error) {
		i, _ := segmentIndex(in)
		if i == 0 {
			return routingOK, nil
		}
		if i == 3 {
			return "", errors.New("model exploded")
		}
		return segmentResponse(i, float64(i)*0.1), nil
	}}

	var mu sync.Mutex
	var progress [][2]int
	in := PageInput{
		FullText: "five tasks",
		Blocks:   fiveSegmentBlocks(),
		Progress: func(cur, total int) {
			mu.Lock()
			progress = append(progress, [2]int{cur, total})
			mu.Unlock()
		},
	}
	res, err := newAnalyzer(eng, 1).AnalyzePage(context.Background(), in)
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}
	if len(res.Exercises) != 4 {
		t.Errorf("expected units from 4 segments, got %d", len(res.Exercises))
	}
	for _, e := range res.Exercises {
		if e.Number == "3" {
			t.Error("failed segment's unit leaked into the result")
		}
	}
	want := [][2]int{{1, 5}, {2, 5}, {3, 5}, {4, 5}, {5, 5}}
	if !reflect.DeepEqual(progress, want) {
		t.Errorf("progress = %v, want %v", progress, want)
	}
}

func TestAnalyzePage_AllSegmentsFailed(t *testing.T) {
	eng := &scriptedEngine{respond: func(in llm.Request) (string, error) {
		if i, _ := segmentIndex(in); i == 0 {
			return routingOK, nil
		}
		return "", errors.New("nope")
	}}
	_, err := newAnalyzer(eng, 1).AnalyzePage(context.Background(), PageInput{
		FullText: "t", Blocks: fiveSegmentBlocks(),
	})
	if !errors.Is(err, analysis.ErrAllSegmentsFailed) {
		t.Errorf("expected ErrAllSegmentsFailed, got %v", err)
	}
}

func TestAnalyzePage_NoBlocks(t *testing.T) {
	eng := &scriptedEngine{respond: func(llm.Request) (string, error) { return "", nil }}
	_, err := newAnalyzer(eng, 1).AnalyzePage(context.Background(), PageInput{})
	if !errors.Is(err, analysis.ErrInvalidSource) {
		t.Errorf("expected ErrInvalidSource, got %v", err)
	}
}

func TestAnalyzePage_RoutingFailureFallsBack(t *testing.T) {
	eng := &scriptedEngine{respond: func(in llm.Request) (string, error) {
		i, _ := segmentIndex(in)
		if i == 0 {
			return "", errors.New("router down")
		}
		return segmentResponse(i, float64(i)*0.1), nil
	}}
	res, err := newAnalyzer(eng, 1).AnalyzePage(context.Background(), PageInput{
		FullText: "t", Blocks: fiveSegmentBlocks(),
	})
	if err != nil {
		t.Fatalf("routing failure must not fail the run: %v", err)
	}
	if len(res.Exercises) != 5 {
		t.Errorf("expected 5 exercises via generic agent, got %d", len(res.Exercises))
	}
}

func TestAnalyzePage_EngineUnavailable(t *testing.T) {
	eng := &scriptedEngine{respond: func(llm.Request) (string, error) {
		return "", fmt.Errorf("no key: %w", llm.ErrUnavailable)
	}}
	_, err := newAnalyzer(eng, 1).AnalyzePage(context.Background(), PageInput{
		FullText: "t", Blocks: fiveSegmentBlocks(),
	})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestAnalyzePage_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &scriptedEngine{respond: func(in llm.Request) (string, error) {
		if i, _ := segmentIndex(in); i == 0 {
			return routingOK, nil
		}
		t.Error("segment call scheduled after cancellation")
		return "", nil
	}}
	_, err := newAnalyzer(eng, 1).AnalyzePage(ctx, PageInput{
		FullText: "t", Blocks: fiveSegmentBlocks(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyzePage_ParallelMatchesSequential(t *testing.T) {
	respond := func(in llm.Request) (string, error) {
		i, _ := segmentIndex(in)
		if i == 0 {
			return routingOK, nil
		}
		return segmentResponse(i, float64(i)*0.1), nil
	}
	in := PageInput{FullText: "t", Blocks: fiveSegmentBlocks()}

	seq, err := newAnalyzer(&scriptedEngine{respond: respond}, 1).AnalyzePage(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	par, err := newAnalyzer(&scriptedEngine{respond: respond}, 4).AnalyzePage(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Errorf("parallel result differs from sequential:\n%+v\nvs\n%+v", par, seq)
	}
}

func TestAnalyzeDocument_ArchivesPerPage(t *testing.T) {
	respond := func(in llm.Request) (string, error) {
		i, _ := segmentIndex(in)
		if i == 0 {
			return routingOK, nil
		}
		return segmentResponse(i, 0.1), nil
	}
	a := newAnalyzer(&scriptedEngine{respond: respond}, 1)
	arch := analysis.NewArchive()

	pages := []PageInput{
		{FullText: "p1", Blocks: fiveSegmentBlocks()},
		{FullText: "p2"}, // no blocks: this page fails, others survive
		{FullText: "p3", Blocks: fiveSegmentBlocks()},
	}
	err := a.AnalyzeDocument(context.Background(), pages, arch, "gemini")
	if !errors.Is(err, analysis.ErrInvalidSource) {
		t.Errorf("expected the failing page's error, got %v", err)
	}
	if want := []int{1, 3}; !reflect.DeepEqual(arch.Pages(), want) {
		t.Errorf("archived pages = %v, want %v", arch.Pages(), want)
	}
	p1, _ := arch.Get(1)
	if p1.Method != "gemini" || p1.AnalyzedAt.IsZero() {
		t.Errorf("archive metadata missing: %+v", p1)
	}
}
