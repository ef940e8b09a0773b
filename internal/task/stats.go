package task

// TaskStats 聚合了评测任务的统计信息，常用于仪表盘或健康检查。
// MeanScore 是所有成功任务综合得分的平均值，可按过滤条件对比不同模型。
type TaskStats struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	Running         int     `json:"running"`
	Succeeded       int     `json:"succeeded"`
	Failed          int     `json:"failed"`
	MeanScore       float64 `json:"mean_score,omitempty"`
	OldestUpdatedAt int64   `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64   `json:"newest_updated_at,omitempty"`
}
