// Package records persists the per-task scoring output consumed by the
// dataset pipeline: one record per evaluated build, either appended to a
// JSONL file or written to MySQL.
package records

import (
	"context"

	"VoxelBench/internal/sim/score"
)

// Record 表示一次建造评测的落盘结构。
type Record struct {
	TaskID     string        `json:"task_id"`
	String     string        `json:"string"`
	Difficulty int           `json:"difficulty"`
	ModelID    string        `json:"model_id"`
	Metrics    score.Metrics `json:"metrics"`

	// 来自真实服务器扫描的评分，仅在实跑模式下出现。
	MCShapeOverlap *float64 `json:"mc_score_shape_overlap,omitempty"`
	MCComponents   *float64 `json:"mc_score_components,omitempty"`
	MCAdjacency    *float64 `json:"mc_score_s3,omitempty"`
	MCMean         *float64 `json:"mc_score_mean,omitempty"`

	RawOutput  string   `json:"raw_output,omitempty"`
	Commands   []string `json:"commands,omitempty"`
	Violations []string `json:"violations,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	CreatedAt  int64    `json:"created_at"`
}

// SetMCMetrics 将实跑扫描得到的评分写入 mc_ 前缀字段。
func (r *Record) SetMCMetrics(m score.Metrics) {
	r.MCShapeOverlap = &m.ShapeOverlap
	r.MCComponents = &m.Components
	r.MCAdjacency = &m.Adjacency
	r.MCMean = &m.Mean
}

// Store 抽象评测记录的持久化接口。
type Store interface {
	Append(ctx context.Context, record Record) error
	ListLatest(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
