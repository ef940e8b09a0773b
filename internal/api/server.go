package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"VoxelBench/internal/agent"
	"VoxelBench/internal/auth"
	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/observability/metrics"
	"VoxelBench/internal/sim/score"
	"VoxelBench/internal/task"
)

// Server 负责暴露 REST 接口，供外部提交评测任务并读取结果。
type Server struct {
	addr  string
	tasks *task.Service
	agent *agent.Agent
	auth  *auth.Service
}

// Option 配置 Server 的可选能力。
type Option func(*Server)

// WithAuth 启用静态令牌认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, tasks *task.Service, ag *agent.Agent, opts ...Option) *Server {
	s := &Server{addr: addr, tasks: tasks, agent: ag}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 返回完整的路由处理器，便于测试和嵌入。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tasks", s.instrument("tasks", s.handleTasks))
	mux.HandleFunc("/api/v1/tasks/", s.instrument("task_detail", s.handleTaskDetail))
	mux.HandleFunc("/api/v1/stats", s.instrument("stats", s.handleStats))
	mux.HandleFunc("/api/v1/scores/scan", s.instrument("scan_score", s.handleScanScore))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	var handler http.Handler = mux
	if s.auth != nil && s.auth.Enabled() {
		handler = s.auth.Middleware(handler)
	}
	return handler
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateTask(w, r)
	case http.MethodGet:
		s.handleListTasks(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleCreateTask 处理提交评测任务的请求。
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req agent.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	created, err := s.tasks.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, created)
}

// handleListTasks 按过滤条件列出任务。
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// handleTaskDetail 查询单个任务的当前状态与结果。
func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.tasks == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "任务 ID 无效", http.StatusBadRequest)
		return
	}

	found, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, found)
}

// handleStats 返回任务的聚合统计。
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.tasks == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// scanCell 描述扫描平面上的一个非空单元。
type scanCell struct {
	X     int    `json:"x"`
	Z     int    `json:"z"`
	Block string `json:"block"`
}

type scanScoreRequest struct {
	TaskID       string     `json:"task_id,omitempty"`
	TargetString string     `json:"string"`
	Difficulty   int        `json:"difficulty"`
	Cells        []scanCell `json:"cells"`
}

type scanScoreResponse struct {
	TaskID         string        `json:"task_id,omitempty"`
	TargetString   string        `json:"string"`
	Metrics        score.Metrics `json:"metrics"`
	MCShapeOverlap float64       `json:"mc_score_shape_overlap"`
	MCComponents   float64       `json:"mc_score_components"`
	MCAdjacency    float64       `json:"mc_score_s3"`
	MCMean         float64       `json:"mc_score_mean"`
}

// handleScanScore 对外部采集的体素平面做一次离线打分。带 task_id 时
// 会关联已有任务，把扫描指标作为 mc_ 字段连同离线指标补写入记录仓库。
func (s *Server) handleScanScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	var req scanScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	var linked *task.Task
	if req.TaskID != "" {
		if s.tasks == nil {
			http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
			return
		}
		found, err := s.tasks.Get(r.Context(), req.TaskID)
		if err != nil {
			writeError(w, err)
			return
		}
		linked = found
		if strings.TrimSpace(req.TargetString) == "" {
			req.TargetString = found.TargetString
		}
		if req.Difficulty <= 0 {
			req.Difficulty = found.Difficulty
		}
	}

	cells := make(map[[2]int]string, len(req.Cells))
	for _, cell := range req.Cells {
		cells[[2]int{cell.X, cell.Z}] = cell.Block
	}

	m, err := s.agent.ScoreScan(req.TargetString, req.Difficulty, cells)
	if err != nil {
		writeError(w, err)
		return
	}

	if linked != nil {
		var offline score.Metrics
		if linked.Result != nil {
			offline = linked.Result.Metrics
		}
		if err := s.agent.PersistScanMetrics(r.Context(), linked.ID, linked.ModelID,
			req.TargetString, req.Difficulty, offline, m); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, scanScoreResponse{
		TaskID:         req.TaskID,
		TargetString:   req.TargetString,
		Metrics:        m,
		MCShapeOverlap: m.ShapeOverlap,
		MCComponents:   m.Components,
		MCAdjacency:    m.Adjacency,
		MCMean:         m.Mean,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument 包装处理器，记录请求量与时延指标。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	}
}

// statusWriter 捕获响应状态码供指标使用。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// listOptionsFromQuery 解析 limit/offset/status/query 查询参数。
func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	var opts []task.ListOption
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, errors.New("limit 参数无效")
		}
		opts = append(opts, task.WithLimit(parsed))
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return nil, errors.New("offset 参数无效")
		}
		opts = append(opts, task.WithOffset(parsed))
	}
	if raw := query.Get("status"); raw != "" {
		var statuses []task.Status
		for _, piece := range strings.Split(raw, ",") {
			status := task.Status(strings.TrimSpace(piece))
			if !task.IsValidStatus(status) {
				return nil, errors.New("status 参数无效: " + string(status))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := query.Get("model_id"); raw != "" {
		opts = append(opts, task.WithModelID(raw))
	}
	if raw := query.Get("query"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	return opts, nil
}

// writeError 把内部错误映射为合适的 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case task.CodeTaskNotFound:
		status = http.StatusNotFound
	case task.CodeTaskConflict, task.CodeTaskCompleted:
		status = http.StatusConflict
	case task.CodeTaskValidation, xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
