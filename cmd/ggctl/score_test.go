package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		in, host, path string
	}{
		{"example.com", "example.com", ""},
		{"example.com/", "example.com", "/"},
		{"example.com/a/b?x=1", "example.com", "/a/b?x=1"},
		{"198.51.100.23:8080/wp-admin", "198.51.100.23:8080", "/wp-admin"},
	}
	for _, tt := range tests {
		host, path := splitTarget(tt.in)
		if host != tt.host || path != tt.path {
			t.Errorf("splitTarget(%q) = %q, %q; want %q, %q", tt.in, host, path, tt.host, tt.path)
		}
	}
}

// ── Stub server ─────────────────────────────────────────────────────────

// stubScoreServer answers 500 for hosts containing error_test and a benign
// score otherwise.
func stubScoreServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/score", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Host string `json:"host"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Host, "error_test") {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"forced 500 for engine test"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"request_id": "r", "model_version": "m", "score": 0.1, "label": "benign", "threshold": 0.5,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func executeRoot(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		scoreConcurrency = 8
		serverURL = ""
	})
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// ── score ───────────────────────────────────────────────────────────────

func TestScore_rejectsNonPositiveConcurrency(t *testing.T) {
	srv := stubScoreServer(t)
	for _, n := range []string{"0", "-3"} {
		err := executeRoot(t, "--server", srv.URL, "score", "--concurrency", n, "example.com")
		if err == nil || !strings.Contains(err.Error(), "--concurrency") {
			t.Errorf("--concurrency %s: expected a flag error, got %v", n, err)
		}
	}
}

func TestScore_allTargetsSucceed(t *testing.T) {
	srv := stubScoreServer(t)
	if err := executeRoot(t, "--server", srv.URL, "score", "--concurrency", "1", "a.example", "b.example/x"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestScore_failedTargetIsAnError(t *testing.T) {
	srv := stubScoreServer(t)
	err := executeRoot(t, "--server", srv.URL, "score", "--concurrency", "2", "a.example", "error_test.example")
	if err == nil {
		t.Fatal("expected an error when a target fails")
	}
	if !strings.Contains(err.Error(), "1 of 2 targets failed") {
		t.Errorf("unexpected error: %v", err)
	}
}
