package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func sampleHints() []Hint {
	return []Hint{
		{Title: "通用", Content: "always free", Keywords: nil},
		{Title: "羊毛", Content: "wool tips", Keywords: []string{"wool"}},
		{Title: "玻璃", Content: "glass tips", Keywords: []string{"glass"}, Tags: []string{"transparent"}},
	}
}

func TestStaticProviderQuery(t *testing.T) {
	provider := NewStaticProvider(sampleHints(), 3)

	hits := provider.Query("AB", []string{"white_wool"})
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if hits[0].Title != "通用" || hits[1].Title != "羊毛" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestStaticProviderMatchesTags(t *testing.T) {
	provider := NewStaticProvider(sampleHints(), 3)
	hits := provider.Query("transparent letters", nil)
	found := false
	for _, h := range hits {
		if h.Title == "玻璃" {
			found = true
		}
	}
	if !found {
		t.Fatalf("标签匹配应命中玻璃条目: %+v", hits)
	}
}

func TestStaticProviderMaxResults(t *testing.T) {
	provider := NewStaticProvider(sampleHints(), 1)
	hits := provider.Query("wool glass", nil)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestLoadStaticProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hints.json")
	raw, err := json.Marshal(sampleHints())
	if err != nil {
		t.Fatalf("marshal hints: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write hints: %v", err)
	}

	provider, err := LoadStaticProvider(path, 0)
	if err != nil {
		t.Fatalf("load provider: %v", err)
	}
	if hits := provider.Query("wool", nil); len(hits) == 0 {
		t.Fatal("加载后的提示库应可检索")
	}
}

func TestLoadStaticProviderErrors(t *testing.T) {
	if _, err := LoadStaticProvider("   ", 3); err == nil {
		t.Fatal("空路径应返回错误")
	}
	if _, err := LoadStaticProvider(filepath.Join(t.TempDir(), "missing.json"), 3); err == nil {
		t.Fatal("不存在的文件应返回错误")
	}
}
