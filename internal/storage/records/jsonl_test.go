package records

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"VoxelBench/internal/sim/score"
)

func sampleRecord(taskID string) Record {
	return Record{
		TaskID:     taskID,
		String:     "AB",
		Difficulty: 2,
		ModelID:    "demo-model",
		Metrics: score.Metrics{
			ShapeOverlap: 0.9,
			Components:   1,
			Adjacency:    0.5,
			Mean:         0.8,
		},
		Commands:  []string{"setblock 0 0 0 stone"},
		CreatedAt: 1700000000,
	}
}

func TestJSONLStoreAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"task-1", "task-2", "task-3"} {
		if err := store.Append(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	latest, err := store.ListLatest(ctx, 2)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 records, got %d", len(latest))
	}
	if latest[0].TaskID != "task-3" || latest[1].TaskID != "task-2" {
		t.Fatalf("记录应按时间倒序: %+v", latest)
	}
}

func TestJSONLStoreRestoresFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")

	first, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := first.Append(context.Background(), sampleRecord("task-restore")); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = first.Close()

	second, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	latest, err := second.ListLatest(context.Background(), 0)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 1 || latest[0].TaskID != "task-restore" {
		t.Fatalf("重启后应恢复已有记录: %+v", latest)
	}
	if latest[0].Metrics.ShapeOverlap != 0.9 {
		t.Fatalf("unexpected metrics: %+v", latest[0].Metrics)
	}
}

func TestJSONLStoreSkipsCorruptedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	raw, err := json.Marshal(sampleRecord("task-good"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	content := "not-json\n" + string(raw) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	latest, err := store.ListLatest(context.Background(), 0)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 1 || latest[0].TaskID != "task-good" {
		t.Fatalf("损坏行应被跳过: %+v", latest)
	}
}

func TestJSONLStoreRejectsEmptyPath(t *testing.T) {
	if _, err := NewJSONLStore("   "); err == nil {
		t.Fatal("空路径应返回错误")
	}
}

func TestRecordMCMetrics(t *testing.T) {
	record := sampleRecord("task-mc")
	record.SetMCMetrics(score.Metrics{ShapeOverlap: 0.7, Components: 1, Adjacency: 1, Mean: 0.9})

	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(raw)
	for _, field := range []string{"mc_score_shape_overlap", "mc_score_components", "mc_score_s3", "mc_score_mean"} {
		if !strings.Contains(text, field) {
			t.Errorf("序列化结果缺少 %s: %s", field, text)
		}
	}

	plain, err := json.Marshal(sampleRecord("task-plain"))
	if err != nil {
		t.Fatalf("marshal plain: %v", err)
	}
	if strings.Contains(string(plain), "mc_score_shape_overlap") {
		t.Fatal("未设置扫描指标时 mc_ 字段应省略")
	}
}
