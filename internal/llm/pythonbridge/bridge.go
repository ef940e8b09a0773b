package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	xerrors "VoxelBench/internal/errors"
	"VoxelBench/internal/llm"
)

// Client 通过调用 Python 脚本完成命令文本生成。脚本从 stdin 读取
// 一个 JSON 请求，向 stdout 输出恰好一行 JSON 结果（{"text": ...,
// "model": ..., "device": ...}），诊断信息走 stderr。
type Client struct {
	pythonExec string
	scriptPath string
	workingDir string
	model      string
}

// NewClient 创建 Python Bridge 客户端。
func NewClient(pythonExec, scriptPath, workingDir, model string) (*Client, error) {
	if scriptPath == "" {
		return nil, fmt.Errorf("未指定 Python 脚本路径")
	}
	if pythonExec == "" {
		pythonExec = "python3"
	}
	return &Client{
		pythonExec: pythonExec,
		scriptPath: scriptPath,
		workingDir: workingDir,
		model:      model,
	}, nil
}

// Generate 调用外部脚本，并解析输出。
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	system := req.System
	if system == "" {
		system = llm.DefaultSystemPrompt
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	payload := map[string]any{
		"prompt":    req.Prompt,
		"system":    system,
		"timestamp": time.Now().Unix(),
	}
	if model != "" {
		payload["model"] = model
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_new_tokens"] = req.MaxTokens
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Wrap(llm.CodeModelCallFailure, err, "序列化请求失败")
	}

	command := exec.CommandContext(ctx, c.pythonExec, c.scriptPath)
	if c.workingDir != "" {
		command.Dir = c.workingDir
	}
	command.Stdin = bytes.NewReader(encoded)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, xerrors.Wrap(llm.CodeModelTimeout, ctx.Err(), "Python 脚本执行超时")
		}
		return nil, xerrors.Wrap(llm.CodeModelCallFailure, err,
			fmt.Sprintf("执行 Python 脚本失败, stderr=%s", strings.TrimSpace(stderr.String())))
	}

	// 脚本可能在结果行之前打印加载进度之类的内容，取最后一个非空行。
	line := lastLine(stdout.String())
	if line == "" {
		return nil, xerrors.New(llm.CodeModelCallFailure, "Python 脚本没有输出结果")
	}

	var resp struct {
		Text  string `json:"text"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, xerrors.Wrap(llm.CodeModelCallFailure, err, "解析 Python 输出失败")
	}
	if resp.Model == "" {
		resp.Model = model
	}

	return &llm.Response{Text: resp.Text, Model: resp.Model}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// ResolveScriptPath 根据工作目录推导脚本绝对路径。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" {
		return ""
	}
	if filepath.IsAbs(script) {
		return script
	}
	if baseDir == "" {
		return script
	}
	return filepath.Join(baseDir, script)
}
