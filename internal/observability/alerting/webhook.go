package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultWebhookTimeout 控制 webhook 调用默认超时。
const defaultWebhookTimeout = 10 * time.Second

// DingTalkWebhook 通过钉钉自定义机器人的 webhook 发送文本消息。
type DingTalkWebhook struct {
	URL    string
	Client *http.Client
}

// NewDingTalkWebhook 创建钉钉 webhook 发送器。
func NewDingTalkWebhook(url string, timeout time.Duration) *DingTalkWebhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &DingTalkWebhook{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Send 以钉钉机器人 text 消息格式投递告警内容。
func (w *DingTalkWebhook) Send(ctx context.Context, content string) error {
	payload := map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": content},
	}
	return postJSON(ctx, w.Client, w.URL, payload)
}

// SlackWebhook 通过 Slack incoming webhook 发送消息。
type SlackWebhook struct {
	URL    string
	Client *http.Client
}

// NewSlackWebhook 创建 Slack webhook 发送器。
func NewSlackWebhook(url string, timeout time.Duration) *SlackWebhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &SlackWebhook{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Send 向指定 Slack 渠道投递文本消息。
func (w *SlackWebhook) Send(ctx context.Context, channel, content string) error {
	payload := map[string]string{
		"channel": channel,
		"text":    content,
	}
	return postJSON(ctx, w.Client, w.URL, payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化 webhook 请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造 webhook 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("调用 webhook 失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook 返回非预期状态码 %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
