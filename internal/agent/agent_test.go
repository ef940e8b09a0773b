package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"VoxelBench/internal/llm"
	"VoxelBench/internal/sim/glyph"
)

type stubLLM struct {
	text string
	err  error
	wait time.Duration
}

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.text, Model: "stub"}, nil
}

// perfectScript 为目标字符串生成恰好覆盖掩码的 setblock 命令流。
func perfectScript(t *testing.T, target, block string) string {
	t.Helper()
	font, err := glyph.LookupFont(glyph.DefaultFontName)
	if err != nil {
		t.Fatalf("lookup font: %v", err)
	}
	mask, err := font.Render(target)
	if err != nil {
		t.Fatalf("render mask: %v", err)
	}
	var lines []string
	for _, cell := range mask.Cells() {
		lines = append(lines, fmt.Sprintf("/setblock %d 0 %d %s", cell[0], cell[1], block))
	}
	return strings.Join(lines, "\n")
}

func TestAgentExecutePerfectBuild(t *testing.T) {
	script := perfectScript(t, "A", "stone")
	ag := New(&stubLLM{text: script}, nil)

	result, err := ag.Execute(context.Background(), TaskRequest{TargetString: "A", ModelID: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Metrics.ShapeOverlap != 1.0 {
		t.Fatalf("expected perfect overlap, got %v", result.Metrics.ShapeOverlap)
	}
	if len(result.Commands) == 0 {
		t.Fatalf("expected committed command plan")
	}
	if result.TaskID == "" {
		t.Fatalf("expected generated task id")
	}
	if result.Difficulty != 1 {
		t.Fatalf("expected difficulty defaulted to string length, got %d", result.Difficulty)
	}
}

func TestAgentExecuteModelTimeoutYieldsEmptyStream(t *testing.T) {
	ag := New(&stubLLM{wait: 50 * time.Millisecond}, nil, WithLLMTimeout(10*time.Millisecond))

	result, err := ag.Execute(context.Background(), TaskRequest{TargetString: "AB"})
	if err != nil {
		t.Fatalf("model timeout must not fail the task: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one recorded error, got %v", result.Errors)
	}
	if result.Metrics.ShapeOverlap != 0 || result.Metrics.Components != 0 {
		t.Fatalf("empty build must score zero overlap and components: %+v", result.Metrics)
	}
	if result.Metrics.Adjacency != 1 {
		t.Fatalf("empty build adjacency must be 1, got %v", result.Metrics.Adjacency)
	}
}

func TestAgentExecuteEmptyTarget(t *testing.T) {
	ag := New(&stubLLM{text: ""}, nil)
	if _, err := ag.Execute(context.Background(), TaskRequest{TargetString: "  "}); err == nil {
		t.Fatalf("expected error for empty target string")
	}
}

func TestAgentExecuteUnsupportedGlyph(t *testing.T) {
	ag := New(&stubLLM{text: ""}, nil)
	if _, err := ag.Execute(context.Background(), TaskRequest{TargetString: "好"}); err == nil {
		t.Fatalf("expected unsupported glyph to abort the task")
	}
}

func TestAgentScoreScan(t *testing.T) {
	ag := New(&stubLLM{}, nil)

	font, err := glyph.LookupFont(glyph.DefaultFontName)
	if err != nil {
		t.Fatalf("lookup font: %v", err)
	}
	mask, err := font.Render("A")
	if err != nil {
		t.Fatalf("render mask: %v", err)
	}
	cells := make(map[[2]int]string)
	for _, cell := range mask.Cells() {
		cells[[2]int{cell[0], cell[1]}] = "stone"
	}

	metrics, err := ag.ScoreScan("A", 1, cells)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.ShapeOverlap != 1.0 {
		t.Fatalf("expected perfect overlap from scan, got %v", metrics.ShapeOverlap)
	}
}
