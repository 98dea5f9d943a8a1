package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gateguard/gateguard-api/internal/api/handler"
	"github.com/gateguard/gateguard-api/internal/auditlog/model"
	"github.com/gateguard/gateguard-api/internal/auditlog/repository"
	"github.com/gateguard/gateguard-api/internal/auditlog/service"
)

// ── Stubs ────────────────────────────────────────────────────────────────────

type stubLogStore struct {
	mu      sync.Mutex
	items   []*model.LogListItem
	details map[int64]*model.LogDetail
	err     error
	last    model.Page
}

func (s *stubLogStore) List(_ context.Context, p model.Page) ([]*model.LogListItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = p
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.items, len(s.items), nil
}

func (s *stubLogStore) Detail(_ context.Context, id int64) (*model.LogDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	d, ok := s.details[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (s *stubLogStore) lastPage() model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func strp(s string) *string { return &s }

func setupLogRouter(t *testing.T, store *stubLogStore, mw ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		t.Fatalf("SetTrustedProxies: %v", err)
	}
	svc := service.NewLogService(store, zap.NewNop())
	h := handler.NewLogHandler(svc, zap.NewNop())
	h.Register(r.Group("/v1"), mw...)
	return r
}

func getJSON(t *testing.T, router *gin.Engine, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func fixtureStore() *stubLogStore {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 0.82
	return &stubLogStore{
		items: []*model.LogListItem{
			{
				AccessLogEntry: model.AccessLogEntry{
					LogID: 7, RequestID: "req-7", DetectTimestamp: now,
					ClientIP: strp("203.0.113.9"), Host: strp("shop.example"),
					Decision: model.DecisionBlock, DecisionStage: model.StageAI,
				},
				AIScore: &score, AILabel: strp("malicious"),
			},
		},
		details: map[int64]*model.LogDetail{
			7: {
				Log: &model.AccessLogEntry{LogID: 7, RequestID: "req-7", DetectTimestamp: now,
					Decision: model.DecisionBlock, DecisionStage: model.StageAI},
				Analyses: []*model.AiAnalysis{
					{AIAnalysisID: 2, LogID: 7, AnalysisSeq: 1, AnalyzedAt: now},
					{AIAnalysisID: 1, LogID: 7, AnalysisSeq: 0, AnalyzedAt: now},
				},
			},
			8: {
				Log: &model.AccessLogEntry{LogID: 8, RequestID: "req-8", DetectTimestamp: now,
					Decision: model.DecisionAllow, DecisionStage: model.StagePolicy},
			},
		},
	}
}

// ── List ─────────────────────────────────────────────────────────────────────

func TestListLogs_200_defaults(t *testing.T) {
	store := fixtureStore()
	router := setupLogRouter(t, store)

	w, body := getJSON(t, router, "/v1/logs")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["total"] != float64(1) {
		t.Errorf("total = %v", body["total"])
	}
	if body["limit"] != float64(50) || body["offset"] != float64(0) {
		t.Errorf("limit/offset = %v/%v", body["limit"], body["offset"])
	}
	if body["sort"] != "timestamp" || body["dir"] != "desc" {
		t.Errorf("sort/dir = %v/%v", body["sort"], body["dir"])
	}
	items := body["items"].([]any)
	first := items[0].(map[string]any)
	if first["ai_label"] != "malicious" {
		t.Errorf("ai_label = %v", first["ai_label"])
	}
	if first["path"] != nil {
		t.Errorf("absent path should serialize as null, got %v", first["path"])
	}
}

func TestListLogs_passesFiltersAndSort(t *testing.T) {
	store := fixtureStore()
	router := setupLogRouter(t, store)

	w, _ := getJSON(t, router, "/v1/logs?limit=10&offset=20&decision=BLOCK&stage=all&host=shop&client_ip=203.&sort=host&dir=ASC")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	p := store.lastPage()
	if p.Limit != 10 || p.Offset != 20 {
		t.Errorf("limit/offset = %d/%d", p.Limit, p.Offset)
	}
	if p.Filter.Decision != "BLOCK" || p.Filter.Stage != "all" || p.Filter.Host != "shop" || p.Filter.ClientIP != "203." {
		t.Errorf("filter = %+v", p.Filter)
	}
	if p.Sort != model.SortHost || p.Dir != model.SortAsc {
		t.Errorf("sort/dir = %s/%s", p.Sort, p.Dir)
	}
}

func TestListLogs_unknownSortFallsBack(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	w, body := getJSON(t, router, "/v1/logs?sort=evil_column&dir=sideways")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["sort"] != "timestamp" || body["dir"] != "desc" {
		t.Errorf("sort/dir = %v/%v", body["sort"], body["dir"])
	}
}

func TestListLogs_emptyItemsIsArray(t *testing.T) {
	router := setupLogRouter(t, &stubLogStore{})

	w, body := getJSON(t, router, "/v1/logs")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 0 {
		t.Errorf("items = %#v, want []", body["items"])
	}
}

func TestListLogs_400(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	for _, q := range []string{"limit=0", "limit=501", "offset=-1", "limit=abc", "offset=1.5"} {
		w, _ := getJSON(t, router, "/v1/logs?"+q)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestListLogs_400_fields(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	w, body := getJSON(t, router, "/v1/logs?limit=900")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	fields, _ := body["fields"].(map[string]any)
	if _, ok := fields["limit"]; !ok {
		t.Errorf("expected a limit field error, got %v", body)
	}
}

func TestListLogs_500(t *testing.T) {
	router := setupLogRouter(t, &stubLogStore{err: errors.New("connection refused")})

	w, body := getJSON(t, router, "/v1/logs")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body["error"] != "internal error" {
		t.Errorf("error = %v", body["error"])
	}
}

// ── Detail ───────────────────────────────────────────────────────────────────

func TestGetLog_200(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	w, body := getJSON(t, router, "/v1/logs/7")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	log := body["log"].(map[string]any)
	if log["request_id"] != "req-7" {
		t.Errorf("request_id = %v", log["request_id"])
	}
	analyses := body["analyses"].([]any)
	if len(analyses) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(analyses))
	}
	if seq := analyses[0].(map[string]any)["analysis_seq"]; seq != float64(1) {
		t.Errorf("first analysis_seq = %v, want 1", seq)
	}
	if _, ok := body["geo"]; ok {
		t.Errorf("geo should be omitted without a locator")
	}
}

func TestGetLog_200_noAnalyses(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	w, body := getJSON(t, router, "/v1/logs/8")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	analyses, ok := body["analyses"].([]any)
	if !ok || len(analyses) != 0 {
		t.Errorf("analyses = %#v, want []", body["analyses"])
	}
}

func TestGetLog_404(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	w, body := getJSON(t, router, "/v1/logs/999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body["error"] != "log not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGetLog_400_invalidID(t *testing.T) {
	router := setupLogRouter(t, fixtureStore())

	w, _ := getJSON(t, router, "/v1/logs/abc")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLogs_rateLimited(t *testing.T) {
	router := setupLogRouter(t, fixtureStore(), handler.NewIPRateLimiter(1, 1).Middleware())

	if w, _ := getJSON(t, router, "/v1/logs"); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	w, body := getJSON(t, router, "/v1/logs/7")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if body["error"] != "rate limit exceeded" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestLogs_rateLimitIgnoresForwardedFor(t *testing.T) {
	router := setupLogRouter(t, fixtureStore(), handler.NewIPRateLimiter(1, 1).Middleware())

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/logs", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := send("198.51.100.2"); code != http.StatusTooManyRequests {
		t.Errorf("a spoofed X-Forwarded-For must not get a fresh bucket, got %d", code)
	}
}
