package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"VoxelBench/internal/agent"
	"VoxelBench/internal/api"
	"VoxelBench/internal/auth"
	"VoxelBench/internal/config"
	"VoxelBench/internal/knowledge"
	"VoxelBench/internal/llm"
	"VoxelBench/internal/llm/openai"
	"VoxelBench/internal/llm/pythonbridge"
	"VoxelBench/internal/observability/alerting"
	"VoxelBench/internal/sim/materials"
	simrun "VoxelBench/internal/sim/run"
	"VoxelBench/internal/sim/voxel"
	"VoxelBench/internal/storage/records"
	"VoxelBench/internal/task"
	"VoxelBench/pkg/logger"
)

// main 是 VoxelBench 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("voxelbenchd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("VOXELBENCH_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "voxelbench.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// 初始化大模型客户端。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	recordStore, err := createRecordStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := recordStore.Close(); err != nil {
			log.Printf("关闭评分记录存储失败: %v", err)
		}
	}()

	taskStore, err := createTaskStore(cfg, dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if taskStore != nil {
			_ = taskStore.Close()
		}
	}()

	taskQueue, err := createTaskQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if taskQueue != nil {
			if err := taskQueue.Close(); err != nil {
				log.Printf("关闭任务队列失败: %v", err)
			}
		}
	}()

	registry, err := materials.Default()
	if err != nil {
		return err
	}
	if len(cfg.Sim.Materials) > 0 {
		registry = registry.Extend(cfg.Sim.Materials)
	}

	var knowledgeProvider knowledge.Provider
	if cfg.Knowledge.Source != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		knowledgeProvider = provider
	}

	opts := []agent.Option{
		agent.WithRegistry(registry),
		agent.WithKnowledgeProvider(knowledgeProvider),
		agent.WithLLMTimeout(cfg.LLM.Timeout()),
		agent.WithFont(cfg.Sim.Font),
		agent.WithBuildPlane(cfg.Sim.BuildPlaneY, cfg.Sim.OriginX, cfg.Sim.OriginZ),
		agent.WithMergePolicy(simrun.MergePolicy(cfg.Sim.MergePolicy)),
		agent.WithAgents(cfg.Agents.Count, cfg.Agents.BlockAgent1, cfg.Agents.BlockAgent2),
	}
	if !cfg.Sim.Extent.Zero() {
		opts = append(opts, agent.WithExtent(voxel.Extent{
			Min: voxel.Vec3i{X: cfg.Sim.Extent.MinX, Y: cfg.Sim.Extent.MinY, Z: cfg.Sim.Extent.MinZ},
			Max: voxel.Vec3i{X: cfg.Sim.Extent.MaxX, Y: cfg.Sim.Extent.MaxY, Z: cfg.Sim.Extent.MaxZ},
		}))
	}

	ag := agent.New(llmClient, recordStore, opts...)

	if cfg.Minecraft.Enabled {
		// 真实游戏端执行由外部机器人消费任务结果里的指令列表完成，
		// 扫描回读后的 mc_ 指标通过 /api/v1/scores/scan 写回。
		log.Printf("已启用游戏端联动模式，离线模拟指标仍会照常产出")
	}

	taskService := task.NewService(taskStore, taskQueue, cfg.Storage.TaskStore.Retries)
	processorOpts := []task.ProcessorOption{
		task.WithWorkerCount(cfg.TaskQueue.Worker),
		task.WithProcessorLogger(logger.Named("processor")),
		task.WithRecoveryHandler(&task.EmptyBuildRecovery{Agent: ag}),
	}
	if dispatcher := buildAlertDispatcher(cfg.Alerting); dispatcher != nil {
		processorOpts = append(processorOpts, task.WithAlertDispatcher(dispatcher))
	}
	processor := task.NewProcessor(ag, taskStore, taskQueue, taskQueue, processorOpts...)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("任务处理器异常退出: %v", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, taskService, ag,
		api.WithAuth(auth.NewService(cfg.Server.AuthToken)),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "python_bridge":
		scriptPath := pythonbridge.ResolveScriptPath(cfg.LLM.Python.WorkingDir, cfg.LLM.Python.ScriptPath)
		return pythonbridge.NewClient(cfg.LLM.Python.PythonExecutable, scriptPath, cfg.LLM.Python.WorkingDir, cfg.LLM.Python.Model)
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createRecordStore(cfg *config.Config) (records.Store, error) {
	switch cfg.Storage.Records.Driver {
	case "", "jsonl":
		return records.NewJSONLStore(cfg.Storage.Records.Path)
	case "mysql":
		return records.NewSQLStore(cfg.Storage.Records.DSN)
	default:
		return nil, fmt.Errorf("未知的评分记录驱动: %s", cfg.Storage.Records.Driver)
	}
}

func createTaskStore(cfg *config.Config, dataDir string) (task.Store, error) {
	switch cfg.Storage.TaskStore.Driver {
	case "", "memory":
		return task.NewMemoryStore(), nil
	case "mysql":
		return task.NewMySQLStore(cfg.Storage.TaskStore.DSN)
	case "sqlite":
		path := cfg.Storage.TaskStore.Path
		if path == "" {
			path = filepath.Join(dataDir, "tasks.db")
		}
		return task.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("未知的任务存储驱动: %s", cfg.Storage.TaskStore.Driver)
	}
}

func createTaskQueue(cfg *config.Config) (task.Queue, error) {
	switch cfg.TaskQueue.Driver {
	case "", "memory":
		return task.NewMemoryQueue(1024), nil
	case "redis":
		return task.NewRedisQueue(task.RedisQueueConfig{
			Address:   cfg.TaskQueue.Redis.Address,
			Password:  cfg.TaskQueue.Redis.Password,
			DB:        cfg.TaskQueue.Redis.DB,
			Queue:     cfg.TaskQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.TaskQueue.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.TaskQueue.RabbitMQ.URL,
			Queue:      cfg.TaskQueue.RabbitMQ.Queue,
			Prefetch:   cfg.TaskQueue.RabbitMQ.Prefetch,
			Durable:    cfg.TaskQueue.RabbitMQ.Durable,
			AutoDelete: cfg.TaskQueue.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.TaskQueue.Driver)
	}
}

// buildAlertDispatcher 按配置组装告警分发器，未配置任何渠道时返回 nil。
func buildAlertDispatcher(cfg config.AlertingConfig) *alerting.FanoutDispatcher {
	if !cfg.Enabled() {
		return nil
	}
	var notifiers []alerting.Notifier
	if cfg.DingTalkWebhook != "" {
		notifiers = append(notifiers, &alerting.DingTalkNotifier{
			Sender: alerting.NewDingTalkWebhook(cfg.DingTalkWebhook, cfg.Timeout()),
		})
	}
	if cfg.SlackWebhook != "" {
		notifiers = append(notifiers, &alerting.SlackNotifier{
			Sender:    alerting.NewSlackWebhook(cfg.SlackWebhook, cfg.Timeout()),
			ChannelID: cfg.SlackChannel,
		})
	}
	return alerting.NewFanout(notifiers...)
}
