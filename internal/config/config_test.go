package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxelbench.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Storage.TaskStore.Driver != "memory" || cfg.Storage.TaskStore.Retries != 3 {
		t.Errorf("unexpected task store defaults: %+v", cfg.Storage.TaskStore)
	}
	if cfg.Storage.Records.Driver != "jsonl" || cfg.Storage.Records.Path == "" {
		t.Errorf("unexpected records defaults: %+v", cfg.Storage.Records)
	}
	if cfg.TaskQueue.Driver != "memory" || cfg.TaskQueue.Worker != 4 {
		t.Errorf("unexpected queue defaults: %+v", cfg.TaskQueue)
	}
	if cfg.Sim.Font != "5x5" || cfg.Sim.Formula != "iou" || cfg.Sim.MergePolicy != "sequential" {
		t.Errorf("unexpected sim defaults: %+v", cfg.Sim)
	}
	if cfg.Agents.Count != 1 {
		t.Errorf("unexpected agents defaults: %+v", cfg.Agents)
	}
	if !filepath.IsAbs(cfg.Runtime.DataDir) {
		t.Errorf("data dir 应被解析为绝对路径: %s", cfg.Runtime.DataDir)
	}
}

func TestLoadAlertingChannels(t *testing.T) {
	path := writeConfig(t, `{"alerting": {"dingtalk_webhook": "https://oapi.dingtalk.com/robot/send?access_token=x", "timeout_seconds": 5}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Alerting.Enabled() {
		t.Fatal("配置了 webhook 后告警应当启用")
	}
	if cfg.Alerting.Timeout() != 5*time.Second {
		t.Errorf("unexpected alerting timeout: %v", cfg.Alerting.Timeout())
	}

	var empty AlertingConfig
	if empty.Enabled() {
		t.Error("空配置不应启用告警")
	}
	if empty.Timeout() != 0 {
		t.Errorf("空配置应返回零超时: %v", empty.Timeout())
	}
}

func TestLoadRejectsUnknownFormula(t *testing.T) {
	path := writeConfig(t, `{"sim": {"formula": "iou_distance_mix"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("未知打分公式应被拒绝")
	}
}

func TestLoadRejectsUnknownMergePolicy(t *testing.T) {
	path := writeConfig(t, `{"sim": {"merge_policy": "random"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("未知合并策略应被拒绝")
	}
}

func TestLoadRejectsBadAgentCount(t *testing.T) {
	path := writeConfig(t, `{"agents": {"count": 3}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("超出范围的智能体数量应被拒绝")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("不存在的配置文件应返回错误")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("空路径应返回错误")
	}
}

func TestExtentConfigZero(t *testing.T) {
	if !(ExtentConfig{}).Zero() {
		t.Fatal("零值范围应判定为未配置")
	}
	if (ExtentConfig{MaxX: 10}).Zero() {
		t.Fatal("非零范围不应判定为未配置")
	}
}
