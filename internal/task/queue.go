package task

import (
	"context"
)

// Handler 处理从队列中取出的评测任务 ID。队列里只流转任务 ID,
// 任务内容始终以 Store 为准。
type Handler func(ctx context.Context, taskID string) error

// Producer 负责向队列投递待评测的任务。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 负责从队列中消费任务并交给评测 worker。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力，守护进程默认用同一个实例收发。
type Queue interface {
	Producer
	Consumer
}
