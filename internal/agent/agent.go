package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/knowledge"
	"VoxelBench/internal/llm"
	"VoxelBench/internal/sim/command"
	"VoxelBench/internal/sim/glyph"
	"VoxelBench/internal/sim/materials"
	"VoxelBench/internal/sim/run"
	"VoxelBench/internal/sim/score"
	"VoxelBench/internal/sim/voxel"
	"VoxelBench/internal/storage/records"
)

// TaskRequest 描述一次建造评测任务。
type TaskRequest struct {
	ID           string         `json:"id,omitempty"`
	TargetString string         `json:"string"`
	Difficulty   int            `json:"difficulty,omitempty"` // <=0 时取目标字符串长度
	ModelID      string         `json:"model_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TaskResult 汇总一次评测的产出：提交的命令计划、违例与三项评分。
type TaskResult struct {
	TaskID       string        `json:"task_id"`
	TargetString string        `json:"string"`
	Difficulty   int           `json:"difficulty"`
	ModelID      string        `json:"model_id"`
	Metrics      score.Metrics `json:"metrics"`
	RawOutputs   []string      `json:"raw_outputs,omitempty"`
	Commands     []string      `json:"commands,omitempty"`
	Violations   []string      `json:"violations,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
	CreatedAt    int64         `json:"created_at"`
}

// Agent 协调大模型、离线模拟器与评分引擎，是系统的业务核心。
type Agent struct {
	llmClient   llm.Client
	recordStore records.Store
	registry    *materials.Registry
	knowledge   knowledge.Provider

	fontName    string
	extent      voxel.Extent
	buildPlaneY int
	originX     int
	originZ     int
	policy      run.MergePolicy

	agentCount int
	allowed    [2][]string

	llmTimeout time.Duration
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithKnowledgeProvider 配置建造提示库，用于在提示词中补充经验。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Agent) {
		a.knowledge = provider
	}
}

// WithLLMTimeout 设置单次调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithFont 指定目标掩码使用的字模。
func WithFont(name string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(name) != "" {
			a.fontName = name
		}
	}
}

// WithExtent 指定世界的可建造范围。
func WithExtent(extent voxel.Extent) Option {
	return func(a *Agent) {
		if extent.Valid() {
			a.extent = extent
		}
	}
}

// WithBuildPlane 指定评分平面高度与掩码原点的世界坐标。
func WithBuildPlane(y, originX, originZ int) Option {
	return func(a *Agent) {
		a.buildPlaneY = y
		a.originX = originX
		a.originZ = originZ
	}
}

// WithMergePolicy 指定双智能体命令流的合并策略。
func WithMergePolicy(policy run.MergePolicy) Option {
	return func(a *Agent) {
		if policy.Valid() {
			a.policy = policy
		}
	}
}

// WithAgents 指定智能体数量（1 或 2）及各自的材质白名单。
// 空白名单表示不限制。
func WithAgents(count int, allow1, allow2 []string) Option {
	return func(a *Agent) {
		if count == 1 || count == 2 {
			a.agentCount = count
		}
		a.allowed[0] = allow1
		a.allowed[1] = allow2
	}
}

// WithRegistry 替换默认的材质注册表。
func WithRegistry(registry *materials.Registry) Option {
	return func(a *Agent) {
		if registry != nil {
			a.registry = registry
		}
	}
}

// New 创建一个 Agent。recordStore 可以为 nil，此时评测结果不落盘。
func New(llmClient llm.Client, recordStore records.Store, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:   llmClient,
		recordStore: recordStore,
		fontName:    glyph.DefaultFontName,
		extent:      voxel.DefaultExtent(),
		buildPlaneY: 0,
		policy:      run.MergeSequential,
		agentCount:  1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Execute 执行一次完整的评测:渲染目标掩码、向模型索要建造命令、
// 离线重放并评分,最后把记录落盘。模型调用失败不会让任务失败,
// 对应的命令流按空流处理并记入错误列表;只有目标字符串本身无法
// 渲染(UnsupportedGlyph)才会使任务整体失败。
func (a *Agent) Execute(ctx context.Context, req TaskRequest) (*TaskResult, error) {
	if a.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if strings.TrimSpace(req.TargetString) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "目标字符串不能为空")
	}

	taskID := req.ID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	difficulty := req.Difficulty
	if difficulty <= 0 {
		difficulty = len([]rune(req.TargetString))
	}

	font, err := glyph.LookupFont(a.fontName)
	if err != nil {
		return nil, err
	}
	mask, err := font.Render(req.TargetString)
	if err != nil {
		// 目标本身渲染不出来，评分无从谈起。
		return nil, err
	}

	var (
		rawOutputs []string
		taskErrors []string
		streams    []run.Stream
	)
	for i := 0; i < a.agentCount; i++ {
		agentID := fmt.Sprintf("agent%d", i+1)
		allowed := a.allowedSet(i)
		raw, genErr := a.generate(ctx, req, mask, agentID, allowed)
		if genErr != nil {
			// 模型失败只意味着该智能体提交了空命令流。
			taskErrors = append(taskErrors, fmt.Sprintf("%s: %s: %v", agentID, xerrors.CodeOf(genErr), genErr))
			raw = ""
		}
		rawOutputs = append(rawOutputs, raw)
		streams = append(streams, run.Stream{
			AgentID: agentID,
			Script:  raw,
			Allowed: allowed,
		})
	}

	simResult, err := run.Simulate(ctx, streams, run.Options{
		Extent:   a.extent,
		Registry: a.registry,
		Policy:   a.policy,
	})
	if err != nil {
		return nil, err
	}

	grid := score.GridFromPlane(simResult.Snapshot.PlaneMaterials(a.buildPlaneY), a.originX, a.originZ)
	metrics := score.Evaluate(grid, mask, difficulty)

	result := &TaskResult{
		TaskID:       taskID,
		TargetString: req.TargetString,
		Difficulty:   difficulty,
		ModelID:      req.ModelID,
		Metrics:      metrics,
		RawOutputs:   rawOutputs,
		Commands:     command.Render(simResult.Committed),
		Violations:   formatViolations(simResult.Violations),
		Errors:       taskErrors,
		CreatedAt:    time.Now().Unix(),
	}

	if a.recordStore != nil {
		record := records.Record{
			TaskID:     result.TaskID,
			String:     result.TargetString,
			Difficulty: result.Difficulty,
			ModelID:    result.ModelID,
			Metrics:    result.Metrics,
			RawOutput:  strings.Join(rawOutputs, "\n---\n"),
			Commands:   result.Commands,
			Violations: result.Violations,
			Errors:     result.Errors,
			CreatedAt:  result.CreatedAt,
		}
		if err := a.recordStore.Append(ctx, record); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存评测记录失败")
		}
	}

	return result, nil
}

// ScoreScan 对任意来源的平面网格评分,与离线世界无关。实跑模式下
// 把真实服务器扫描出的坐标到材质映射喂进来即可得到 mc_ 指标。
func (a *Agent) ScoreScan(targetString string, difficulty int, cells map[[2]int]string) (score.Metrics, error) {
	if strings.TrimSpace(targetString) == "" {
		return score.Metrics{}, xerrors.New(xerrors.CodeInvalidArgument, "目标字符串不能为空")
	}
	if difficulty <= 0 {
		difficulty = len([]rune(targetString))
	}
	font, err := glyph.LookupFont(a.fontName)
	if err != nil {
		return score.Metrics{}, err
	}
	mask, err := font.Render(targetString)
	if err != nil {
		return score.Metrics{}, err
	}
	grid := score.GridFromPlane(cells, a.originX, a.originZ)
	return score.Evaluate(grid, mask, difficulty), nil
}

// EmptyResult 为无法取得任何命令的任务构造最差评分结果,
// 使失败任务仍然产出一条可入库的记录。
func (a *Agent) EmptyResult(req TaskRequest, taskErrors []string) *TaskResult {
	difficulty := req.Difficulty
	if difficulty <= 0 {
		difficulty = len([]rune(req.TargetString))
	}
	metrics := score.Metrics{ShapeOverlap: 0, Components: 0, Adjacency: 1}
	metrics.Mean = (metrics.ShapeOverlap + metrics.Components + metrics.Adjacency) / 3
	return &TaskResult{
		TaskID:       req.ID,
		TargetString: req.TargetString,
		Difficulty:   difficulty,
		ModelID:      req.ModelID,
		Metrics:      metrics,
		Errors:       taskErrors,
		CreatedAt:    time.Now().Unix(),
	}
}

// PersistScanMetrics 在离线指标之外补写一条携带 mc_ 前缀扫描指标的记录,
// 对应实跑模式下游戏端扫描回读的评分。
func (a *Agent) PersistScanMetrics(ctx context.Context, taskID, modelID, targetString string, difficulty int, offline, scan score.Metrics) error {
	if a.recordStore == nil {
		return nil
	}
	if difficulty <= 0 {
		difficulty = len([]rune(targetString))
	}
	record := records.Record{
		TaskID:     taskID,
		String:     targetString,
		Difficulty: difficulty,
		ModelID:    modelID,
		Metrics:    offline,
		CreatedAt:  time.Now().Unix(),
	}
	record.SetMCMetrics(scan)
	if err := a.recordStore.Append(ctx, record); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存扫描评分记录失败")
	}
	return nil
}

// PersistResult 把一个已经构造好的结果写入记录仓库。
func (a *Agent) PersistResult(ctx context.Context, result *TaskResult) error {
	if a.recordStore == nil || result == nil {
		return nil
	}
	record := records.Record{
		TaskID:     result.TaskID,
		String:     result.TargetString,
		Difficulty: result.Difficulty,
		ModelID:    result.ModelID,
		Metrics:    result.Metrics,
		RawOutput:  strings.Join(result.RawOutputs, "\n---\n"),
		Commands:   result.Commands,
		Violations: result.Violations,
		Errors:     result.Errors,
		CreatedAt:  result.CreatedAt,
	}
	if err := a.recordStore.Append(ctx, record); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存评测记录失败")
	}
	return nil
}

func (a *Agent) allowedSet(index int) *materials.Set {
	// 单智能体模式不做白名单限制，除非显式配置。
	if index < 0 || index >= len(a.allowed) {
		return nil
	}
	names := a.allowed[index]
	if len(names) == 0 {
		return nil
	}
	return materials.NewSet(names)
}

func (a *Agent) generate(ctx context.Context, req TaskRequest, mask *glyph.Mask, agentID string, allowed *materials.Set) (string, error) {
	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}

	resp, err := a.llmClient.Generate(llmCtx, llm.Request{
		TaskID: req.ID,
		Prompt: a.buildPrompt(req, mask, agentID, allowed),
		Model:  req.ModelID,
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(llm.CodeModelTimeout, err, "大模型推理超时")
		}
		return "", err
	}
	return resp.Text, nil
}

// buildPrompt 组装面向建造智能体的提示词:目标字符串、建造平面、
// 掩码尺寸、可用材质以及命令格式约束。
func (a *Agent) buildPrompt(req TaskRequest, mask *glyph.Mask, agentID string, allowed *materials.Set) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Build the text %q as block letters on the plane y=%d.\n", req.TargetString, a.buildPlaneY)
	fmt.Fprintf(&sb, "The letters start at x=%d, z=%d and span %d x %d cells (x grows right, z grows down).\n",
		a.originX, a.originZ, mask.Width(), mask.Height())
	fmt.Fprintf(&sb, "You are %s.\n", agentID)
	if allowed != nil {
		fmt.Fprintf(&sb, "You may only place these blocks: %s.\n", strings.Join(allowed.Names(), ", "))
	}
	sb.WriteString("Use /setblock x y z block and /fill x1 y1 z1 x2 y2 z2 block, one command per line.\n")

	if a.knowledge != nil {
		var names []string
		if allowed != nil {
			names = allowed.Names()
		}
		for _, hint := range a.knowledge.Query(req.TargetString, names) {
			if strings.TrimSpace(hint.Content) == "" {
				continue
			}
			fmt.Fprintf(&sb, "Hint (%s): %s\n", hint.Title, hint.Content)
		}
	}
	return sb.String()
}

func formatViolations(violations []run.Violation) []string {
	if len(violations) == 0 {
		return nil
	}
	formatted := make([]string, 0, len(violations))
	for _, v := range violations {
		formatted = append(formatted, fmt.Sprintf("%s line %d [%s]: %s", v.AgentID, v.LineNo, v.Code, v.Reason))
	}
	return formatted
}
