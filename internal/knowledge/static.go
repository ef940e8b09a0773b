package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider 定义建造提示检索的通用接口。
type Provider interface {
	Query(target string, materials []string) []Hint
}

// Hint 描述可以注入提示词的一条建造经验。
type Hint struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Tags     []string `json:"tags"`
}

// StaticProvider 通过加载 JSON 文件提供静态建造提示检索能力。
type StaticProvider struct {
	items      []Hint
	maxResults int
}

// NewStaticProvider 创建静态提示库实例。
func NewStaticProvider(items []Hint, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// LoadStaticProvider 从 JSON 文件加载提示条目。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("提示库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析提示库路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取提示库文件失败: %w", err)
	}
	defer file.Close()

	var entries []Hint
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析提示库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Query 根据建造目标字符串与可用材料做关键词匹配。
func (p *StaticProvider) Query(target string, materials []string) []Hint {
	if p == nil {
		return nil
	}

	target = strings.ToLower(strings.TrimSpace(target))
	haystack := target
	for _, m := range materials {
		haystack += " " + strings.ToLower(strings.TrimSpace(m))
	}

	results := make([]Hint, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, haystack) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

func matches(hint Hint, haystack string) bool {
	if len(hint.Keywords) == 0 {
		return true
	}
	for _, keyword := range hint.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(haystack, normalized) {
			return true
		}
	}
	for _, tag := range hint.Tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if strings.Contains(haystack, normalized) {
			return true
		}
	}
	return false
}

var _ Provider = (*StaticProvider)(nil)
