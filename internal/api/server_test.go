package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"EnvioScout/internal/agent"
	"EnvioScout/internal/config"
	"EnvioScout/internal/dashboard"
	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/task"
)

type stubChat struct {
	result   *agent.ChatResult
	err      error
	messages []string
	history  []agent.Turn
	cleared  bool
}

func (s *stubChat) Chat(_ context.Context, message string) (*agent.ChatResult, error) {
	s.messages = append(s.messages, message)
	return s.result, s.err
}

func (s *stubChat) History(limit int) []agent.Turn {
	if limit < len(s.history) {
		return s.history[len(s.history)-limit:]
	}
	return s.history
}

func (s *stubChat) ClearHistory() { s.cleared = true }

type stubStats struct {
	snapshot *dashboard.Snapshot
	err      error
}

func (s stubStats) Stats(context.Context, string) (*dashboard.Snapshot, error) {
	return s.snapshot, s.err
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(chat ChatService, stats StatsService, opts ...Option) http.Handler {
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	return NewServer(config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}}, chat, stats, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	payload := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, payload
}

func TestHealth(t *testing.T) {
	h := newTestServer(&stubChat{}, stubStats{})
	rec, body := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", rec.Code, body)
	}
	if body["timestamp"] != "2025-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %v", body["timestamp"])
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestPostMessageSuccess(t *testing.T) {
	chat := &stubChat{result: &agent.ChatResult{
		Response:  "Block 100 has 3 transactions.",
		ToolsUsed: []string{"getBlocks"},
		Timestamp: "2025-03-01T12:00:00Z",
		Intent:    "blocks",
	}}
	h := newTestServer(chat, stubStats{})

	rec, body := do(t, h, http.MethodPost, "/api/chat/message", `{"message":"show latest blocks on base"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["success"] != true || body["response"] != "Block 100 has 3 transactions." {
		t.Fatalf("unexpected body: %v", body)
	}
	tools, ok := body["toolsUsed"].([]any)
	if !ok || len(tools) != 1 || tools[0] != "getBlocks" {
		t.Fatalf("unexpected tools: %v", body["toolsUsed"])
	}
	if len(chat.messages) != 1 || chat.messages[0] != "show latest blocks on base" {
		t.Fatalf("unexpected forwarded messages: %v", chat.messages)
	}
}

func TestPostMessageValidation(t *testing.T) {
	cases := map[string]string{
		"missing": `{}`,
		"empty":   `{"message":""}`,
		"number":  `{"message":42}`,
		"invalid": `{`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			chat := &stubChat{}
			h := newTestServer(chat, stubStats{})
			rec, body := do(t, h, http.MethodPost, "/api/chat/message", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if body["success"] != false || body["error"] != msgMessageRequired {
				t.Fatalf("unexpected body: %v", body)
			}
			if len(chat.messages) != 0 {
				t.Fatalf("orchestrator should not be called")
			}
		})
	}
}

func TestPostMessageTerminalFailure(t *testing.T) {
	err := xerrors.New(xerrors.CodeRetriesExhausted, "gemini 503 after 3 attempts")
	chat := &stubChat{
		result: &agent.ChatResult{Response: xerrors.PublicMessage(err)},
		err:    err,
	}
	h := newTestServer(chat, stubStats{})

	rec, body := do(t, h, http.MethodPost, "/api/chat/message", `{"message":"what is the gas price?"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["success"] != false || body["error"] != msgProcessFailed {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["response"] != "The AI service is currently overloaded. Please try again in a moment." {
		t.Fatalf("unexpected response: %v", body["response"])
	}
	if strings.Contains(rec.Body.String(), "gemini 503") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestHistoryAndClear(t *testing.T) {
	chat := &stubChat{history: []agent.Turn{
		{Message: "one", Response: "1"},
		{Message: "two", Response: "2"},
	}}
	h := newTestServer(chat, stubStats{})

	rec, body := do(t, h, http.MethodGet, "/api/chat/history?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	history, ok := body["history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("unexpected history: %v", body["history"])
	}

	rec, body = do(t, h, http.MethodPost, "/api/chat/clear", "")
	if rec.Code != http.StatusOK || body["message"] != "Conversation history cleared" {
		t.Fatalf("unexpected clear response: %d %v", rec.Code, body)
	}
	if !chat.cleared {
		t.Fatalf("expected history to be cleared")
	}
}

func TestDashboardStats(t *testing.T) {
	snapshot := &dashboard.Snapshot{
		Success:       true,
		Chain:         "eth",
		Timestamp:     "2025-03-01T12:00:00Z",
		ArchiveHeight: 21000000,
		Metrics:       dashboard.Metrics{AvgBlockTime: 12, TPS: 14.5, TotalTxs: 870, BlocksAnalyzed: 5},
	}
	h := newTestServer(&stubChat{}, stubStats{snapshot: snapshot})

	rec, body := do(t, h, http.MethodGet, "/api/dashboard/stats/eth", "")
	if rec.Code != http.StatusOK || body["success"] != true || body["chain"] != "eth" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
	m, ok := body["metrics"].(map[string]any)
	if !ok || m["tps"] != 14.5 || m["blocksAnalyzed"] != float64(5) {
		t.Fatalf("unexpected metrics: %v", body["metrics"])
	}
}

func TestDashboardStatsFailureIsSanitized(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.7:443: connection refused")
	h := newTestServer(&stubChat{}, stubStats{err: xerrors.Wrap(xerrors.CodeUpstreamFailure, cause, "hypersync query failed")})

	rec, body := do(t, h, http.MethodGet, "/api/dashboard/stats/base", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["success"] != false || body["error"] != "The blockchain data source is temporarily unavailable." {
		t.Fatalf("unexpected body: %v", body)
	}
	blocks, ok := body["blocks"].([]any)
	if !ok || len(blocks) != 0 {
		t.Fatalf("expected empty blocks, got %v", body["blocks"])
	}
	if strings.Contains(rec.Body.String(), "10.0.0.7") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestJobsEndpoints(t *testing.T) {
	store := task.NewMemoryStore()
	jobs := task.NewService(store, task.NewMemoryQueue(4), 3)
	h := newTestServer(&stubChat{}, stubStats{}, WithJobs(jobs))

	rec, body := do(t, h, http.MethodPost, "/api/chat/jobs", `{"id":"job-1","message":"analyze 0xabc"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%v)", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/chat/jobs/job-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	job, ok := body["job"].(map[string]any)
	if !ok || job["status"] != string(task.StatusPending) || job["message"] != "analyze 0xabc" {
		t.Fatalf("unexpected job: %v", body["job"])
	}

	rec, _ = do(t, h, http.MethodGet, "/api/chat/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/chat/jobs", `{"message":7}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestJobsDisabled(t *testing.T) {
	h := newTestServer(&stubChat{}, stubStats{})
	rec, _ := do(t, h, http.MethodGet, "/api/chat/jobs/any", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&stubChat{}, stubStats{}, WithMetrics("/metrics"))
	do(t, h, http.MethodGet, "/health", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "envioscout_http_requests_total") {
		t.Fatalf("expected http metrics in scrape output")
	}
}
