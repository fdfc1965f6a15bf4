package envioscout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendMessage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/message" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["message"] != "gas on base" {
			t.Errorf("unexpected body: %v %v", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"response":"Gas is low.","toolsUsed":["getGasPrice"],"timestamp":"2025-03-01T12:00:00Z"}`))
	})

	reply, err := client.SendMessage(context.Background(), "gas on base")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if reply.Response != "Gas is low." || len(reply.ToolsUsed) != 1 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestSendMessageFailureCarriesSafeResponse(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"Failed to process message","response":"The request timed out. Please try again."}`))
	})

	_, err := client.SendMessage(context.Background(), "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "Failed to process message" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if apiErr.Response != "The request timed out. Please try again." {
		t.Fatalf("unexpected safe response %q", apiErr.Response)
	}
}

func TestHistoryPassesLimit(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("expected limit=2, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"success":true,"history":[{"message":"a","response":"b"}]}`))
	})
	history, err := client.History(context.Background(), 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Message != "a" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestWaitForJob(t *testing.T) {
	calls := 0
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/jobs/job-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		calls++
		status := "pending"
		if calls >= 2 {
			status = "succeeded"
		}
		_, _ = w.Write([]byte(`{"success":true,"job":{"id":"job-1","status":"` + status + `","result":{"response":"done"}}}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := client.WaitForJob(ctx, "job-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != "succeeded" || job.Result == nil || job.Result.Response != "done" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if calls != 2 {
		t.Fatalf("expected 2 polls, got %d", calls)
	}
}

func TestGetJobNotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"The requested job was not found."}`))
	})
	_, err := client.GetJob(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard/stats/polygon" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"chain":"polygon","blocks":[{"number":10,"transactionCount":4}],"archiveHeight":10,"gasStats":null,"metrics":{"avgBlockTime":2.1,"tps":40.5,"totalTxs":4,"blocksAnalyzed":1}}`))
	})
	stats, err := client.DashboardStats(context.Background(), "polygon")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Chain != "polygon" || len(stats.Blocks) != 1 || stats.Metrics.TPS != 40.5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
