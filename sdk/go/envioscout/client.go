// Package envioscout is a Go client for the EnvioScout HTTP API.
package envioscout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Chat calls wait for model generation, so it is longer than a plain REST timeout.
const DefaultHTTPTimeout = 2 * time.Minute

// Client wraps the HTTP interactions with the EnvioScout REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// ChatReply is the answer to a chat message.
type ChatReply struct {
	Success   bool     `json:"success"`
	Response  string   `json:"response"`
	ToolsUsed []string `json:"toolsUsed"`
	Timestamp string   `json:"timestamp"`
	Intent    string   `json:"intent,omitempty"`
	Chains    []string `json:"chains,omitempty"`
}

// Turn is one entry of the server side conversation history.
type Turn struct {
	Message   string   `json:"message"`
	Response  string   `json:"response"`
	Intent    string   `json:"intent"`
	ToolsUsed []string `json:"toolsUsed"`
	Timestamp string   `json:"timestamp"`
}

// Job is an asynchronous chat job.
type Job struct {
	ID         string     `json:"id"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
	LastError  string     `json:"lastError,omitempty"`
	ErrorCode  string     `json:"errorCode,omitempty"`
	Result     *ChatReply `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Done reports whether the job reached a final status.
func (j Job) Done() bool {
	return j.Status == "succeeded" || j.Status == "failed"
}

// Block is one row of the dashboard block table.
type Block struct {
	Number           int64     `json:"number"`
	Hash             string    `json:"hash"`
	Timestamp        time.Time `json:"timestamp"`
	TransactionCount int       `json:"transactionCount"`
	GasUsed          uint64    `json:"gasUsed"`
	Size             int64     `json:"size"`
	BaseFeePerGas    string    `json:"baseFeePerGas,omitempty"`
	AvgGasPrice      float64   `json:"avgGasPrice"`
	GasFee           float64   `json:"gasFee"`
}

// Metrics summarizes the analyzed blocks.
type Metrics struct {
	AvgBlockTime   float64 `json:"avgBlockTime"`
	TPS            float64 `json:"tps"`
	TotalTxs       int     `json:"totalTxs"`
	BlocksAnalyzed int     `json:"blocksAnalyzed"`
}

// DashboardStats is the per-chain dashboard snapshot.
type DashboardStats struct {
	Success       bool                `json:"success"`
	Chain         string              `json:"chain"`
	Timestamp     string              `json:"timestamp"`
	Blocks        []Block             `json:"blocks"`
	GasStats      jsoniter.RawMessage `json:"gasStats,omitempty"`
	ArchiveHeight int64               `json:"archiveHeight"`
	Metrics       Metrics             `json:"metrics"`
}

// APIError represents a non-2xx answer. Response carries the user-safe reply
// the server attaches to failed chat messages.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Response   string `json:"response,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("envioscout api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the EnvioScout API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
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

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("envioscout: unexpected health status %q", out.Status)
	}
	return nil
}

// SendMessage asks a question and waits for the answer.
func (c *Client) SendMessage(ctx context.Context, message string) (ChatReply, error) {
	var reply ChatReply
	err := c.post(ctx, "/api/chat/message", map[string]string{"message": message}, &reply)
	return reply, err
}

// History returns up to limit recent turns, oldest first. limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, limit int) ([]Turn, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		History []Turn `json:"history"`
	}
	if err := c.get(ctx, "/api/chat/history", query, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// ClearHistory drops the server side conversation history.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.post(ctx, "/api/chat/clear", struct{}{}, nil)
}

// SubmitJob queues a message for asynchronous processing. An empty id lets the server pick one;
// resubmitting an existing id returns the existing job.
func (c *Client) SubmitJob(ctx context.Context, id, message string) (Job, error) {
	var out struct {
		Job Job `json:"job"`
	}
	payload := map[string]string{"message": message}
	if id != "" {
		payload["id"] = id
	}
	if err := c.post(ctx, "/api/chat/jobs", payload, &out); err != nil {
		return Job{}, err
	}
	return out.Job, nil
}

// GetJob fetches a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var out struct {
		Job Job `json:"job"`
	}
	if err := c.get(ctx, "/api/chat/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return Job{}, err
	}
	return out.Job, nil
}

// WaitForJob polls until the job is done or ctx ends.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return Job{}, err
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DashboardStats returns the dashboard snapshot of a chain.
func (c *Client) DashboardStats(ctx context.Context, chain string) (DashboardStats, error) {
	var stats DashboardStats
	err := c.get(ctx, "/api/dashboard/stats/"+url.PathEscape(chain), nil, &stats)
	return stats, err
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
