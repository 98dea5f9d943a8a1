// cmd/seed: populates access_log and ai_analysis with realistic rows for
// local development of the admin UI, standing in for the inspection engine.
//
// Running twice is safe: rows whose request_id starts with "seed-" are
// deleted and re-inserted.
//
// Usage:
//
//	go run ./cmd/seed
//	DATABASE_DRIVER=sqlite DATABASE_URL=gateguard.db go run ./cmd/seed
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gateguard/gateguard-api/internal/auditlog/model"
	"github.com/gateguard/gateguard-api/internal/config"
	"github.com/gateguard/gateguard-api/internal/faultinject"
	"github.com/gateguard/gateguard-api/internal/scoring"
	"github.com/gateguard/gateguard-api/internal/store"
)

const seedPrefix = "seed-"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultOptions())
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer st.Close()
	fmt.Printf("connected to %s database\n", st.Driver)

	if _, err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	engine := scoring.NewEngine(cfg.Scoring.Threshold, cfg.Scoring.ModelVersion)
	if err := seedLogs(ctx, st.DB, engine); err != nil {
		return fmt.Errorf("seed logs: %w", err)
	}

	fmt.Println("\nseed complete")
	return nil
}

// ── Access logs ──────────────────────────────────────────────────────────────

type seedRequest struct {
	ClientIP  string
	Host      string
	Path      string
	Method    string
	UserAgent string
	PolicyID  *int64
	// Attempts is the number of scoring calls the engine made; 0 means the
	// request was settled by policy before reaching the scorer.
	Attempts int
}

func policy(id int64) *int64 { return &id }

var requests = []seedRequest{
	{ClientIP: "203.0.113.10", Host: "shop.example.com", Path: "/cart", Method: "GET", UserAgent: "Mozilla/5.0", Attempts: 1},
	{ClientIP: "203.0.113.10", Host: "shop.example.com", Path: "/checkout", Method: "POST", UserAgent: "Mozilla/5.0", Attempts: 1},
	{ClientIP: "198.51.100.23", Host: "198.51.100.23", Path: "/wp-admin/admin-ajax.php?action=1&id=2", Method: "GET", UserAgent: "curl/8.4.0", Attempts: 2},
	{ClientIP: "198.51.100.77", Host: "login-verify-0x1f.example", Path: "/%2e%2e/%2e%2e/etc/passwd", Method: "GET", UserAgent: "python-requests/2.31", Attempts: 1},
	{ClientIP: "192.0.2.45", Host: "blocked.example.org", Path: "/", Method: "GET", UserAgent: "Mozilla/5.0", PolicyID: policy(12)},
	{ClientIP: "192.0.2.46", Host: "intranet.example.org", Path: "/health", Method: "GET", UserAgent: "kube-probe/1.29", PolicyID: policy(3)},
	{ClientIP: "10.20.30.40", Host: "api.example.com", Path: "/v2/items/12345", Method: "GET", UserAgent: "okhttp/4.12", Attempts: 3},
	{ClientIP: "10.20.30.41", Host: "timeout_test.example.com", Path: "/", Method: "GET", UserAgent: "engine-selftest", Attempts: 1},
	{ClientIP: "10.20.30.41", Host: "example.com", Path: "/error_test", Method: "GET", UserAgent: "engine-selftest", Attempts: 1},
	{ClientIP: "10.20.30.41", Host: "example.com", Path: "/invalid_test", Method: "GET", UserAgent: "engine-selftest", Attempts: 1},
}

func seedLogs(ctx context.Context, db *sql.DB, engine *scoring.Engine) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ai_analysis
		WHERE log_id IN (SELECT log_id FROM access_log WHERE request_id LIKE $1)`, seedPrefix+"%"); err != nil {
		return fmt.Errorf("clear analyses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM access_log WHERE request_id LIKE $1`, seedPrefix+"%"); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Duration(len(requests)) * 7 * time.Minute)
	for i, r := range requests {
		ts := base.Add(time.Duration(i) * 7 * time.Minute)
		outcome := decide(engine, r)

		var logID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO access_log (request_id, detect_timestamp, client_ip, client_port, server_ip, server_port,
			                        host, path, method, url_norm, decision, reason, decision_stage, policy_id,
			                        user_agent, engine_latency_ms, inject_attempted, inject_send, inject_errno,
			                        inject_latency_ms, inject_status_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			RETURNING log_id`,
			seedPrefix+uuid.NewString(), ts, r.ClientIP, 40000+i, "10.0.0.1", 443,
			r.Host, r.Path, r.Method, "https://"+r.Host+r.Path, outcome.decision, outcome.reason, outcome.stage,
			r.PolicyID, r.UserAgent, outcome.engineLatency, outcome.injectAttempted, outcome.injectSend, 0,
			outcome.injectLatency, outcome.injectStatus,
		).Scan(&logID); err != nil {
			return fmt.Errorf("insert log %d: %w", i, err)
		}

		for seq, a := range outcome.analyses {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ai_analysis (log_id, analysis_seq, analyzed_at, score, label, ai_response,
				                         latency_ms, model_version, error_code)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				logID, seq, ts.Add(time.Duration(seq+1)*time.Second), a.score, a.label, a.response,
				a.latency, engine.ModelVersion(), a.errorCode,
			); err != nil {
				return fmt.Errorf("insert analysis %d/%d: %w", logID, seq, err)
			}
		}
		fmt.Printf("  log %-4d %-7s %-13s %s%s\n", logID, outcome.decision, outcome.stage, r.Host, r.Path)
	}

	return tx.Commit()
}

// ── Engine simulation ────────────────────────────────────────────────────────

type seedAnalysis struct {
	score     *float64
	label     *string
	response  *string
	latency   int
	errorCode *string
}

type seedOutcome struct {
	decision        string
	reason          string
	stage           string
	engineLatency   int
	injectAttempted int
	injectSend      int
	injectLatency   *int
	injectStatus    *int
	analyses        []seedAnalysis
}

func ptr[T any](v T) *T { return &v }

// decide replays what the engine would have recorded for r, including the
// failure paths the fault markers provoke.
func decide(engine *scoring.Engine, r seedRequest) seedOutcome {
	if r.Attempts == 0 {
		return seedOutcome{
			decision:      model.DecisionBlock,
			reason:        "policy " + strconv.FormatInt(*r.PolicyID, 10),
			stage:         model.StagePolicy,
			engineLatency: 1,
		}
	}

	plan := faultinject.Inspect(r.Host, r.Path)
	switch {
	case plan.Delay:
		return failed("AI_TIMEOUT", r.Attempts, 2000)
	case plan.Fault == faultinject.FaultServerError:
		return failed("AI_HTTP_500", r.Attempts, 4)
	case plan.Fault == faultinject.FaultMalformedBody:
		return failed("AI_PARSE_ERROR", r.Attempts, 3)
	}

	res := engine.Evaluate(r.Host, r.Path)
	out := seedOutcome{
		decision:      model.DecisionAllow,
		reason:        "ai score below threshold",
		stage:         model.StageAI,
		engineLatency: 8 + 5*r.Attempts,
	}
	if res.Label == scoring.LabelMalicious {
		out.decision = model.DecisionBlock
		out.reason = "ai score above threshold"
		out.injectAttempted = 1
		out.injectSend = 1
		out.injectLatency = ptr(2)
		out.injectStatus = ptr(403)
	}
	// Earlier attempts are recorded as timeouts that the engine retried.
	for i := 0; i < r.Attempts-1; i++ {
		out.analyses = append(out.analyses, seedAnalysis{latency: 2000, errorCode: ptr("AI_TIMEOUT")})
	}
	score := scoring.Round4(res.Score)
	out.analyses = append(out.analyses, seedAnalysis{
		score:    &score,
		label:    ptr(res.Label),
		response: ptr("1"),
		latency:  5,
	})
	return out
}

func failed(code string, attempts, latency int) seedOutcome {
	out := seedOutcome{
		decision:      model.DecisionError,
		reason:        code,
		stage:         model.StageFail,
		engineLatency: latency * attempts,
	}
	for i := 0; i < attempts; i++ {
		out.analyses = append(out.analyses, seedAnalysis{latency: latency, errorCode: ptr(code)})
	}
	return out
}
