package records

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxCachedRecords 限制内存中保留的最近记录数量。
const maxCachedRecords = 512

// JSONLStore 以 JSON Lines 追加写的方式保存评测记录，便于离线跑批后直接喂给数据集脚本。
type JSONLStore struct {
	mu      sync.RWMutex
	path    string
	records []Record
}

// NewJSONLStore 创建 JSONL 记录仓库并恢复已有内容。
func NewJSONLStore(path string) (*JSONLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("记录文件路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建记录目录失败: %w", err)
	}
	store := &JSONLStore{path: path}
	if err := store.loadFromDisk(); err != nil {
		return nil, err
	}
	return store, nil
}

// Append 将一条评测记录追加到文件尾部。
func (s *JSONLStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开记录文件失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化评测记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入记录文件失败: %w", err)
	}

	s.records = append([]Record{record}, s.records...)
	if len(s.records) > maxCachedRecords {
		s.records = s.records[:maxCachedRecords]
	}
	return nil
}

// ListLatest 返回最近的若干条评测记录，按时间倒序排列。
func (s *JSONLStore) ListLatest(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	results := make([]Record, limit)
	copy(results, s.records[:limit])
	return results, nil
}

// Close 对于文件仓库无需额外清理。
func (s *JSONLStore) Close() error { return nil }

func (s *JSONLStore) loadFromDisk() error {
	file, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取记录文件失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var restored []Record
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]Record{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析记录文件失败: %w", err)
	}

	if len(restored) > maxCachedRecords {
		restored = restored[:maxCachedRecords]
	}
	s.records = restored
	return nil
}

var _ Store = (*JSONLStore)(nil)
