// Package voxelbench provides a typed Go client for the VoxelBench REST API.
package voxelbench

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the VoxelBench REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Metrics carries the geometric scores of one evaluated build.
type Metrics struct {
	ShapeOverlap float64 `json:"score_shape_overlap"`
	Components   float64 `json:"score_components"`
	Adjacency    float64 `json:"score_s3"`
	Mean         float64 `json:"score_mean"`
}

// TaskSubmission represents the payload required to create a new build task.
type TaskSubmission struct {
	ID           string            `json:"id,omitempty"`
	TargetString string            `json:"string"`
	Difficulty   int               `json:"difficulty,omitempty"`
	ModelID      string            `json:"model_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ExecutionResult contains the scored outcome of a finished task.
type ExecutionResult struct {
	Metrics    Metrics  `json:"metrics"`
	Commands   []string `json:"commands,omitempty"`
	Violations []string `json:"violations,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	RawOutput  string   `json:"raw_output,omitempty"`
}

// Task mirrors the server-side view of a build task.
type Task struct {
	ID           string            `json:"id"`
	TargetString string            `json:"string"`
	Difficulty   int               `json:"difficulty"`
	ModelID      string            `json:"model_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	MaxRetries   int               `json:"max_retries"`
	LastError    string            `json:"last_error,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	Result       *ExecutionResult  `json:"result,omitempty"`
	CreatedAt    int64             `json:"created_at"`
	UpdatedAt    int64             `json:"updated_at"`
}

// TaskStats aggregates task counts per status. MeanScore is the average
// mean score across succeeded tasks matching the filter.
type TaskStats struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	Running         int     `json:"running"`
	Succeeded       int     `json:"succeeded"`
	Failed          int     `json:"failed"`
	MeanScore       float64 `json:"mean_score,omitempty"`
	OldestUpdatedAt int64   `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64   `json:"newest_updated_at,omitempty"`
}

// ScanCell describes one occupied cell of an externally captured voxel plane.
type ScanCell struct {
	X     int    `json:"x"`
	Z     int    `json:"z"`
	Block string `json:"block"`
}

// ScanScoreRequest asks the server to score a captured plane offline.
type ScanScoreRequest struct {
	// TaskID links the scan to a completed task; when set, the server
	// persists the scan metrics as mc_-prefixed fields on the task record.
	TaskID       string     `json:"task_id,omitempty"`
	TargetString string     `json:"string"`
	Difficulty   int        `json:"difficulty,omitempty"`
	Cells        []ScanCell `json:"cells"`
}

// ScanScoreResult is the server response for offline scan scoring.
type ScanScoreResult struct {
	TaskID         string  `json:"task_id,omitempty"`
	TargetString   string  `json:"string"`
	Metrics        Metrics `json:"metrics"`
	MCShapeOverlap float64 `json:"mc_score_shape_overlap"`
	MCComponents   float64 `json:"mc_score_components"`
	MCAdjacency    float64 `json:"mc_score_s3"`
	MCMean         float64 `json:"mc_score_mean"`
}

// ListOptions filters ListTasks and Stats calls.
type ListOptions struct {
	Limit    int
	Offset   int
	Statuses []string
	ModelID  string
	Query    string
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("voxelbench api error (%d): %s", e.StatusCode, e.Message)
}

// ErrTaskNotCompleted is returned by WaitForTask when the deadline expires
// before the task reaches a terminal status.
var ErrTaskNotCompleted = errors.New("voxelbench: task not completed")

// NewClient instantiates a client for the VoxelBench API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAccessToken stores the bearer token sent with subsequent requests.
// Leaving it empty talks to servers with authentication disabled.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = strings.TrimSpace(token)
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SubmitTask creates a new build task and returns its queued representation.
func (c *Client) SubmitTask(ctx context.Context, submission TaskSubmission) (Task, error) {
	var created Task
	if err := c.post(ctx, "/api/v1/tasks", submission, &created); err != nil {
		return Task{}, err
	}
	return created, nil
}

// GetTask fetches task details by identifier.
func (c *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return Task{}, errors.New("voxelbench: task id is required")
	}
	var detail Task
	if err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(taskID), &detail); err != nil {
		return Task{}, err
	}
	return detail, nil
}

// ListTasks returns tasks matching the supplied filters.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) ([]Task, error) {
	var tasks []Task
	if err := c.get(ctx, "/api/v1/tasks"+opts.encode(), &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Stats returns aggregate task counts matching the supplied filters.
func (c *Client) Stats(ctx context.Context, opts ListOptions) (TaskStats, error) {
	var stats TaskStats
	if err := c.get(ctx, "/api/v1/stats"+opts.encode(), &stats); err != nil {
		return TaskStats{}, err
	}
	return stats, nil
}

// ScoreScan scores an externally captured voxel plane without queueing a task.
func (c *Client) ScoreScan(ctx context.Context, req ScanScoreRequest) (ScanScoreResult, error) {
	var result ScanScoreResult
	if err := c.post(ctx, "/api/v1/scores/scan", req, &result); err != nil {
		return ScanScoreResult{}, err
	}
	return result, nil
}

// WaitForTask polls until the task reaches a terminal status or the context is
// cancelled. A zero interval defaults to one second.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (Task, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		detail, err := c.GetTask(ctx, taskID)
		if err != nil {
			return Task{}, err
		}
		if detail.Status == "succeeded" || detail.Status == "failed" {
			return detail, nil
		}
		select {
		case <-ctx.Done():
			return detail, fmt.Errorf("%w: %s", ErrTaskNotCompleted, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (o ListOptions) encode() string {
	values := url.Values{}
	if o.Limit > 0 {
		values.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		values.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(o.Statuses) > 0 {
		values.Set("status", strings.Join(o.Statuses, ","))
	}
	if o.ModelID != "" {
		values.Set("model_id", o.ModelID)
	}
	if o.Query != "" {
		values.Set("query", o.Query)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
