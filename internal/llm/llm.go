// Package llm 定义了获取建造命令文本的统一接口。模型产出的文本
// 是唯一可能阻塞或耗时不受控的环节，调用方必须带显式超时调用；
// 超时或调用失败对模拟核心表现为"没有产出任何命令"，而不是崩溃。
package llm

import (
	"context"

	xerrors "VoxelBench/internal/errors"
)

// 模型调用相关错误码。
const (
	CodeModelCallFailure xerrors.Code = "MODEL_CALL_FAILURE"
	CodeModelTimeout     xerrors.Code = "MODEL_TIMEOUT"
)

func init() {
	xerrors.Register(CodeModelCallFailure, xerrors.Attributes{
		Message:   "model call failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeModelTimeout, xerrors.Attributes{
		Message:   "model call timed out",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// Request 描述一次建造命令生成请求。
type Request struct {
	TaskID      string
	Prompt      string  // 完整的建造提示词（目标、范围、可用材质等）
	System      string  // 系统提示词；为空时由 provider 给默认值
	Model       string  // 覆盖 provider 默认模型标识
	Temperature float64 // <= 0 表示贪心采样
	MaxTokens   int     // <= 0 使用 provider 默认值
}

// Response 是模型产出的原始命令文本。围栏、注释等由解析层剥离，
// 这里保留原样以便记录。
type Response struct {
	Text  string
	Model string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// DefaultSystemPrompt 是未显式配置时使用的系统提示词。
const DefaultSystemPrompt = "You are a Minecraft building agent. " +
	"Output only /fill and /setblock commands, one per line. No extra text."
