package task

import (
	"context"
	"fmt"

	"VoxelBench/internal/agent"
)

// RecoveryHandler 定义了在任务执行失败时的补偿策略。
type RecoveryHandler interface {
	// Recover 尝试根据失败原因进行补偿或降级。
	// 返回的 ExecutionResult 将作为降级结果写入任务；若返回 nil 则继续按照失败流程处理。
	Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error)
}

// EmptyBuildRecovery 把无法评测的任务降级为空建造的最差评分记录，
// 保证失败任务也能在数据集中留下一条完整的记录。
type EmptyBuildRecovery struct {
	Agent *agent.Agent
}

// Recover 实现 RecoveryHandler。
func (r *EmptyBuildRecovery) Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error) {
	if r == nil || r.Agent == nil || task == nil {
		return nil, nil
	}
	fallback := r.Agent.EmptyResult(agent.TaskRequest{
		ID:           task.ID,
		TargetString: task.TargetString,
		Difficulty:   task.Difficulty,
		ModelID:      task.ModelID,
	}, []string{fmt.Sprintf("degraded: %v", cause)})
	if err := r.Agent.PersistResult(ctx, fallback); err != nil {
		return nil, err
	}
	return &ExecutionResult{
		Metrics:   fallback.Metrics,
		Errors:    fallback.Errors,
		RawOutput: "",
	}, nil
}

var _ RecoveryHandler = (*EmptyBuildRecovery)(nil)
