package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gateguard/gateguard-api/internal/api/handler"
	"github.com/gateguard/gateguard-api/internal/auth"
	"github.com/gateguard/gateguard-api/internal/faultinject"
	"github.com/gateguard/gateguard-api/internal/scoring"
	"github.com/gateguard/gateguard-api/pkg/client"
)

// ── Servers ─────────────────────────────────────────────────────────────

// scoreServer runs the real scoring handler with the fault delay disabled.
func scoreServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler.NewScoreHandler(
		scoring.NewEngine(scoring.DefaultThreshold, "urlclf-test"),
		faultinject.New(time.Second, faultinject.WithSleep(func(time.Duration) {})),
		auth.NewGate("s3cret"),
		zap.NewNop(),
	).Register(r.Group("/v1"))
	handler.NewHealthHandler("gateguard-ai-api", "urlclf-test", nil, zap.NewNop()).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func stubLogServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var lastQuery string
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/logs", func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"log_id": 3, "request_id": "req-3", "detect_timestamp": "2025-03-01T12:00:00Z",
					"decision": "BLOCK", "decision_stage": "AI_STAGE", "host": "shop.example",
					"client_ip": nil, "ai_score": 0.91, "ai_label": "malicious"},
			},
			"total": 1, "limit": 20, "offset": 0, "sort": "timestamp", "dir": "desc",
		})
	})
	mux.HandleFunc("/v1/logs/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/logs/")
		if id != "3" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"log not found"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"log": map[string]any{"log_id": 3, "request_id": "req-3",
				"detect_timestamp": "2025-03-01T12:00:00Z", "decision": "BLOCK", "decision_stage": "AI_STAGE"},
			"analyses": []map[string]any{
				{"ai_analysis_id": 9, "log_id": 3, "analysis_seq": 1, "analyzed_at": "2025-03-01T12:00:01Z"},
				{"ai_analysis_id": 8, "log_id": 3, "analysis_seq": 0, "analyzed_at": "2025-03-01T12:00:00Z"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastQuery
}

// ── Construction ────────────────────────────────────────────────────────

func TestNew_validation(t *testing.T) {
	if _, err := client.New(""); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := client.New("http://x", client.WithTimeout(0)); err == nil {
		t.Error("expected error for zero timeout")
	}
	if _, err := client.New("http://x", client.WithHTTPClient(nil)); err == nil {
		t.Error("expected error for nil http client")
	}
}

// ── Score ───────────────────────────────────────────────────────────────

func TestScore_success(t *testing.T) {
	srv := scoreServer(t)
	c := client.MustNew(srv.URL+"/", client.WithToken("s3cret"))

	res, err := c.Score(context.Background(), client.ScoreRequest{RequestID: "r-1", Host: "example.com", Path: "/"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.RequestID != "r-1" || res.ModelVersion != "urlclf-test" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Malicious() {
		t.Errorf("example.com should be benign, got score %v", res.Score)
	}
}

func TestScore_requiresHost(t *testing.T) {
	c := client.MustNew("http://unused.invalid")
	if _, err := c.Score(context.Background(), client.ScoreRequest{}); err == nil {
		t.Error("expected error for empty host")
	}
}

func TestScore_authErrors(t *testing.T) {
	srv := scoreServer(t)

	_, err := client.MustNew(srv.URL).Score(context.Background(), client.ScoreRequest{Host: "example.com"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "missing_credential" {
		t.Errorf("missing token: got %v", err)
	}

	_, err = client.MustNew(srv.URL, client.WithToken("nope")).Score(context.Background(), client.ScoreRequest{Host: "example.com"})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("wrong token: got %v", err)
	}
}

func TestScore_faultModes(t *testing.T) {
	srv := scoreServer(t)
	c := client.MustNew(srv.URL, client.WithToken("s3cret"))

	_, err := c.Score(context.Background(), client.ScoreRequest{Host: "error_test.example"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("error_test: got %v", err)
	}
	if apiErr.Message != faultinject.ServerErrorDetail {
		t.Errorf("message = %q", apiErr.Message)
	}

	_, err = c.Score(context.Background(), client.ScoreRequest{Host: "example.com", Path: "/invalid_test"})
	if !errors.Is(err, client.ErrMalformedResponse) {
		t.Errorf("invalid_test: expected ErrMalformedResponse, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := scoreServer(t)
	h, err := client.MustNew(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "ok" || h.Service != "gateguard-ai-api" {
		t.Errorf("unexpected health: %+v", h)
	}
}

// ── Logs ────────────────────────────────────────────────────────────────

func TestListLogs(t *testing.T) {
	srv, lastQuery := stubLogServer(t)
	c := client.MustNew(srv.URL)

	page, err := c.ListLogs(context.Background(), client.ListOptions{Decision: "BLOCK", Host: "shop", Limit: 20})
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if *lastQuery != "decision=BLOCK&host=shop&limit=20" {
		t.Errorf("query = %q", *lastQuery)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	item := page.Items[0]
	if item.LogID != 3 || item.AIScore == nil || *item.AIScore != 0.91 {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.ClientIP != nil {
		t.Errorf("client_ip should decode as nil")
	}
}

func TestListLogs_noOptions(t *testing.T) {
	srv, lastQuery := stubLogServer(t)
	if _, err := client.MustNew(srv.URL).ListLogs(context.Background(), client.ListOptions{}); err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if *lastQuery != "" {
		t.Errorf("expected no query string, got %q", *lastQuery)
	}
}

func TestGetLog(t *testing.T) {
	srv, _ := stubLogServer(t)
	c := client.MustNew(srv.URL)

	d, err := c.GetLog(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if d.Log.RequestID != "req-3" || len(d.Analyses) != 2 || d.Analyses[0].AnalysisSeq != 1 {
		t.Errorf("unexpected detail: %+v", d)
	}

	if _, err := c.GetLog(context.Background(), 4); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
