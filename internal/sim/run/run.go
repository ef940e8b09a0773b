package run

import (
	"context"

	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/sim/command"
	"VoxelBench/internal/sim/materials"
	"VoxelBench/internal/sim/voxel"
)

// 校验与合并相关错误码。
const (
	CodeDisallowedMaterial xerrors.Code = "DISALLOWED_MATERIAL"
)

func init() {
	xerrors.Register(CodeDisallowedMaterial, xerrors.Attributes{
		Message:   "agent used material outside its whitelist",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// MergePolicy 决定多智能体命令流的合并顺序。两种策略都是确定性的：
// 相同输入必然得到相同的提交顺序。
type MergePolicy string

const (
	// MergeSequential 先完整应用 1 号智能体通过校验的命令流，再应用
	// 2 号智能体的；同一格子被两者写入时后写者（2 号）胜出。
	MergeSequential MergePolicy = "sequential"
	// MergeInterleave 按行号轮流从各命令流取操作。
	MergeInterleave MergePolicy = "interleave"
)

// Valid 判断合并策略是否受支持。
func (p MergePolicy) Valid() bool {
	return p == MergeSequential || p == MergeInterleave
}

// Stream 是一个智能体提交的原始命令流及其材质白名单。
type Stream struct {
	AgentID string
	Script  string
	Allowed *materials.Set
}

// Violation 记录一条被丢弃的命令及其原因。丢弃从不中止整次模拟。
type Violation struct {
	AgentID string `json:"agent_id"`
	LineNo  int    `json:"line_no"`
	Line    string `json:"line"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// Options 控制一次模拟的环境。
type Options struct {
	Extent   voxel.Extent
	Registry *materials.Registry
	Policy   MergePolicy
}

// Result 汇总一次模拟的产出。
type Result struct {
	Snapshot   voxel.Snapshot
	Committed  []voxel.Op // 按提交顺序排列、已真正写入世界的操作
	Violations []Violation
}

type pendingOp struct {
	agentID string
	lineNo  int
	line    string
	op      voxel.Op
}

// Simulate 对一个或多个命令流做校验、合并并在一个私有世界上重放。
// 每行命令依次经过解析、材质注册表、白名单三道校验，任何一道失败
// 都记录违例并继续下一行；越界操作在应用阶段被整体拒绝并记录。
// 取消只在操作间生效：被取消打断的 Fill 要么已完整写入要么完全未写。
func Simulate(ctx context.Context, streams []Stream, opts Options) (*Result, error) {
	if !opts.Policy.Valid() {
		opts.Policy = MergeSequential
	}
	registry := opts.Registry
	if registry == nil {
		def, err := materials.Default()
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "加载默认材质注册表失败")
		}
		registry = def
	}

	result := &Result{}

	// 第一阶段：逐流校验，得到各流内部保持提交顺序的待应用操作。
	validated := make([][]pendingOp, len(streams))
	for i, stream := range streams {
		validated[i] = validateStream(stream, registry, result)
	}

	// 第二阶段：按策略确定合并顺序。
	var merged []pendingOp
	switch opts.Policy {
	case MergeInterleave:
		merged = interleave(validated)
	default:
		for _, ops := range validated {
			merged = append(merged, ops...)
		}
	}

	// 第三阶段：按合并顺序应用到共享世界。
	world := voxel.NewWorld(opts.Extent)
	for _, p := range merged {
		select {
		case <-ctx.Done():
			return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "simulation cancelled")
		default:
		}
		if err := world.Apply(p.op); err != nil {
			result.Violations = append(result.Violations, Violation{
				AgentID: p.agentID,
				LineNo:  p.lineNo,
				Line:    p.line,
				Code:    string(xerrors.CodeOf(err)),
				Reason:  errMessage(err),
			})
			continue
		}
		result.Committed = append(result.Committed, p.op)
	}

	result.Snapshot = world.Snapshot()
	return result, nil
}

func validateStream(stream Stream, registry *materials.Registry, result *Result) []pendingOp {
	var out []pendingOp
	for _, line := range command.SplitScript(stream.Script) {
		op, err := command.ParseLine(line.Text)
		if err != nil {
			result.Violations = append(result.Violations, Violation{
				AgentID: stream.AgentID,
				LineNo:  line.Number,
				Line:    line.Text,
				Code:    string(xerrors.CodeOf(err)),
				Reason:  errMessage(err),
			})
			continue
		}
		if err := registry.Check(op.Block.Name); err != nil {
			result.Violations = append(result.Violations, Violation{
				AgentID: stream.AgentID,
				LineNo:  line.Number,
				Line:    line.Text,
				Code:    string(materials.CodeUnknownMaterial),
				Reason:  errMessage(err),
			})
			continue
		}
		if !stream.Allowed.Allows(op.Block.Name) {
			result.Violations = append(result.Violations, Violation{
				AgentID: stream.AgentID,
				LineNo:  line.Number,
				Line:    line.Text,
				Code:    string(CodeDisallowedMaterial),
				Reason:  "material " + op.Block.Name + " not in whitelist",
			})
			continue
		}
		out = append(out, pendingOp{
			agentID: stream.AgentID,
			lineNo:  line.Number,
			line:    line.Text,
			op:      op,
		})
	}
	return out
}

func interleave(validated [][]pendingOp) []pendingOp {
	var merged []pendingOp
	for i := 0; ; i++ {
		progressed := false
		for _, ops := range validated {
			if i < len(ops) {
				merged = append(merged, ops[i])
				progressed = true
			}
		}
		if !progressed {
			return merged
		}
	}
}

func errMessage(err error) string {
	if e, ok := xerrors.From(err); ok {
		msg := e.Message()
		if meta := e.Metadata(); meta != nil {
			if line, ok := meta["line"]; ok && line != "" {
				return msg + " (" + line + ")"
			}
		}
		return msg
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
