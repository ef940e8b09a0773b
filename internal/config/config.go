package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 VoxelBench 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	TaskQueue TaskQueueConfig `json:"task_queue"`
	LLM       LLMConfig       `json:"llm"`
	Sim       SimConfig       `json:"sim"`
	Minecraft MinecraftConfig `json:"minecraft"`
	Agents    AgentsConfig    `json:"agents"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Alerting  AlertingConfig  `json:"alerting"`
	Runtime   RuntimeConfig   `json:"runtime"`
	Logging   LoggingConfig   `json:"logging"`
}

// AlertingConfig 配置终态失败的告警通知渠道，留空则不启用。
type AlertingConfig struct {
	DingTalkWebhook string `json:"dingtalk_webhook"`
	SlackWebhook    string `json:"slack_webhook"`
	SlackChannel    string `json:"slack_channel"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

// Enabled 判断是否配置了至少一个通知渠道。
func (c AlertingConfig) Enabled() bool {
	return c.DingTalkWebhook != "" || c.SlackWebhook != ""
}

// Timeout 返回 webhook 调用超时。
func (c AlertingConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServerConfig 控制 API 服务的监听地址与访问令牌。
type ServerConfig struct {
	Address   string `json:"address"`
	AuthToken string `json:"auth_token"`
}

// StorageConfig 统一描述任务存储与评分记录落盘的后端。
type StorageConfig struct {
	TaskStore TaskStoreConfig `json:"task_store"`
	Records   RecordsConfig   `json:"records"`
}

// TaskStoreConfig 支持 memory、mysql 与 sqlite 三种驱动。
type TaskStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	Path                   string `json:"path"` // sqlite 数据库文件
	Retries                int    `json:"retries"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// RecordsConfig 描述评分记录的输出端：jsonl 追加文件或 MySQL。
type RecordsConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	DSN    string `json:"dsn"`
}

// TaskQueueConfig 支持 memory、redis 与 rabbitmq 三种驱动。
type TaskQueueConfig struct {
	Driver   string         `json:"driver"`
	Worker   int            `json:"worker"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列连接参数。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// LLMConfig 用于配置命令文本生成的调用方式。
type LLMConfig struct {
	Provider       string             `json:"provider"`
	TimeoutSeconds int                `json:"timeout_seconds"`
	Python         PythonBridgeConfig `json:"python_bridge"`
	OpenAI         OpenAIConfig       `json:"openai"`
}

// Timeout 返回模型调用超时。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `json:"python_executable"`
	ScriptPath       string `json:"script_path"`
	WorkingDir       string `json:"working_dir"`
	Model            string `json:"model"`
}

// OpenAIConfig 描述 OpenAI 兼容服务的调用参数。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回 HTTP 客户端超时。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SimConfig 控制离线模拟与打分的参数。
type SimConfig struct {
	Extent      ExtentConfig `json:"extent"`
	BuildPlaneY int          `json:"build_plane_y"`
	OriginX     int          `json:"origin_x"`
	OriginZ     int          `json:"origin_z"`
	Font        string       `json:"font"`
	Formula     string       `json:"formula"`
	MergePolicy string       `json:"merge_policy"`
	Materials   []string     `json:"materials"` // 追加到内置注册表的额外材质
}

// ExtentConfig 描述世界的有界范围。
type ExtentConfig struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MinZ int `json:"min_z"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
	MaxZ int `json:"max_z"`
}

// Zero 判断范围是否未配置。
func (e ExtentConfig) Zero() bool {
	return e == ExtentConfig{}
}

// MinecraftConfig 控制是否把任务同时交给真实游戏端执行。
// 打开后评分记录会在离线指标之外追加扫描回读产生的 mc_ 前缀指标。
type MinecraftConfig struct {
	Enabled bool `json:"enabled"`
}

// AgentsConfig 描述参与建造的智能体数量与各自的材质白名单。
type AgentsConfig struct {
	Count       int      `json:"count"`
	BlockAgent1 []string `json:"block_agent1"`
	BlockAgent2 []string `json:"block_agent2"`
}

// KnowledgeConfig 指向提示词补充知识库。
type KnowledgeConfig struct {
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.TaskStore.Driver == "" {
		c.Storage.TaskStore.Driver = "memory"
	}
	if c.Storage.TaskStore.Retries <= 0 {
		c.Storage.TaskStore.Retries = 3
	}
	if c.Storage.Records.Driver == "" {
		c.Storage.Records.Driver = "jsonl"
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Worker <= 0 {
		c.TaskQueue.Worker = 4
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "python_bridge"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Sim.Font == "" {
		c.Sim.Font = "5x5"
	}
	if c.Sim.Formula == "" {
		c.Sim.Formula = "iou"
	}
	if c.Sim.MergePolicy == "" {
		c.Sim.MergePolicy = "sequential"
	}

	if c.Agents.Count <= 0 {
		c.Agents.Count = 1
	}

	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Storage.Records.Driver == "jsonl" && c.Storage.Records.Path == "" {
		c.Storage.Records.Path = filepath.Join(c.Runtime.DataDir, "records.jsonl")
	}
}

// validate 拒绝无法被任何组件接受的配置组合。
func (c *Config) validate() error {
	switch c.Sim.Formula {
	case "iou":
	default:
		// 历史上存在过掺入距离项的混合公式；两种公式语义不同，
		// 这里只接受其中一种，绝不静默混用。
		return fmt.Errorf("不支持的打分公式: %q（当前仅支持 \"iou\"）", c.Sim.Formula)
	}
	switch c.Sim.MergePolicy {
	case "sequential", "interleave":
	default:
		return fmt.Errorf("不支持的合并策略: %q", c.Sim.MergePolicy)
	}
	if c.Agents.Count < 1 || c.Agents.Count > 2 {
		return fmt.Errorf("agents.count 只支持 1 或 2，收到 %d", c.Agents.Count)
	}
	return nil
}
