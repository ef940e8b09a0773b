package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"VoxelBench/internal/agent"
	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/sim/score"
)

type fakeExecutor struct {
	processed atomic.Int32
	latency   time.Duration
	err       error
}

func (f *fakeExecutor) Execute(ctx context.Context, req agent.TaskRequest) (*agent.TaskResult, error) {
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	f.processed.Add(1)
	return &agent.TaskResult{
		TaskID:       req.ID,
		TargetString: req.TargetString,
		Metrics:      score.Metrics{ShapeOverlap: 1, Components: 1, Adjacency: 1, Mean: 1},
		Commands:     []string{"setblock 0 0 0 stone"},
	}, nil
}

func TestProcessorHandlesConcurrentTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	executor := &fakeExecutor{latency: 10 * time.Millisecond}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithWorkerCount(8))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 200
	for i := 0; i < total; i++ {
		target := fmt.Sprintf("T%d", i)
		if _, err := service.Submit(ctx, agent.TaskRequest{TargetString: target}); err != nil {
			t.Fatalf("提交任务失败: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		if int(executor.processed.Load()) >= total {
			cancel()
			break
		}
		select {
		case <-deadline:
			t.Fatalf("任务未能及时处理，已完成 %d", executor.processed.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

type fallbackRecovery struct {
	invoked atomic.Int32
}

func (r *fallbackRecovery) Recover(_ context.Context, task *Task, cause error) (*ExecutionResult, error) {
	r.invoked.Add(1)
	return &ExecutionResult{
		Metrics: score.Metrics{Adjacency: 1, Mean: 1.0 / 3.0},
		Errors:  []string{fmt.Sprintf("degraded: %v", cause)},
	}, nil
}

func TestProcessorDegradesNonRetryableFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeExecutor{err: xerrors.New(xerrors.CodeInvalidArgument, "目标字符串不能为空")}
	recovery := &fallbackRecovery{}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithRecoveryHandler(recovery))

	go func() {
		_ = processor.Start(ctx)
	}()

	submitted, err := service.Submit(ctx, agent.TaskRequest{TargetString: "XY"})
	if err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	finished, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("等待任务完成失败: %v", err)
	}
	if finished.Status != StatusSucceeded {
		t.Fatalf("expected degraded task to succeed, got %s (%s)", finished.Status, finished.LastError)
	}
	if recovery.invoked.Load() == 0 {
		t.Fatalf("expected recovery handler to run")
	}
	if finished.Result == nil || len(finished.Result.Errors) == 0 {
		t.Fatalf("expected degraded result to carry error list: %+v", finished.Result)
	}
}
