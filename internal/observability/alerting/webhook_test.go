package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDingTalkWebhookSendsTextMessage(t *testing.T) {
	var got struct {
		MsgType string `json:"msgtype"`
		Text    struct {
			Content string `json:"content"`
		} `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	sender := NewDingTalkWebhook(srv.URL, time.Second)
	if err := sender.Send(context.Background(), "任务 task-1 失败"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.MsgType != "text" {
		t.Fatalf("unexpected msgtype %q", got.MsgType)
	}
	if !strings.Contains(got.Text.Content, "task-1") {
		t.Fatalf("unexpected content %q", got.Text.Content)
	}
}

func TestSlackWebhookSendsChannelMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	sender := NewSlackWebhook(srv.URL, time.Second)
	if err := sender.Send(context.Background(), "#alerts", "task-1 failed"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["channel"] != "#alerts" || got["text"] != "task-1 failed" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestWebhookRejectsNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewSlackWebhook(srv.URL, time.Second)
	err := sender.Send(context.Background(), "#alerts", "task-1 failed")
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotifierDeliversThroughWebhook(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		body = payload.Text.Content
	}))
	defer srv.Close()

	dispatcher := NewFanout(&DingTalkNotifier{Sender: NewDingTalkWebhook(srv.URL, time.Second)})
	if err := dispatcher.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(body, "task-1") || !strings.Contains(body, "TASK_RETRIES_EXHAUSTED") {
		t.Fatalf("unexpected webhook body %q", body)
	}
}
