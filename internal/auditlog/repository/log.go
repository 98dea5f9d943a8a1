// Package repository reads the engine's audit tables. It only ever issues
// SELECT statements; every user-supplied value is a bound parameter and every
// identifier placed in query text comes from a fixed whitelist.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gateguard/gateguard-api/internal/auditlog/model"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("log not found")

// sortColumns maps each whitelisted sort key to its ORDER BY fragment.
var sortColumns = map[model.SortField]string{
	model.SortTimestamp:       "al.detect_timestamp",
	model.SortClientIP:        "al.client_ip",
	model.SortHost:            "al.host",
	model.SortPath:            "al.path",
	model.SortDecision:        "al.decision",
	model.SortDecisionStage:   "al.decision_stage",
	model.SortPolicyID:        "al.policy_id",
	model.SortEngineLatencyMS: "al.engine_latency_ms",
}

var sortDirections = map[model.SortDir]string{
	model.SortAsc:  "ASC",
	model.SortDesc: "DESC",
}

const logColumns = `
	al.log_id, al.request_id, al.detect_timestamp,
	al.client_ip, al.client_port, al.server_ip, al.server_port,
	al.host, al.path, al.method, al.url_norm,
	al.decision, al.reason, al.decision_stage, al.policy_id,
	al.user_agent, al.engine_latency_ms,
	al.inject_attempted, al.inject_send, al.inject_errno,
	al.inject_latency_ms, al.inject_status_code`

// latestAnalysisJoin attaches at most one analysis per log: the one whose
// analysis_seq is the maximum for that log_id.
const latestAnalysisJoin = `
	LEFT JOIN (
		SELECT x.log_id, x.score, x.label, x.model_version, x.analysis_seq
		FROM ai_analysis x
		JOIN (
			SELECT log_id, MAX(analysis_seq) AS max_seq
			FROM ai_analysis
			GROUP BY log_id
		) m ON m.log_id = x.log_id AND m.max_seq = x.analysis_seq
	) aa ON aa.log_id = al.log_id`

const analysisColumns = `
	ai_analysis_id, log_id, analysis_seq, analyzed_at,
	score, label, ai_response, latency_ms, model_version, error_code`

// LogRepository reads access_log and ai_analysis.
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

// List returns one page of logs joined to their latest analysis, and the
// number of logs matching the filter regardless of paging.
func (r *LogRepository) List(ctx context.Context, p model.Page) ([]*model.LogListItem, int, error) {
	countSQL, dataSQL, args := buildListQuery(p)

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var total int
	filterArgs := args[:len(args)-2]
	if err := conn.QueryRowContext(ctx, countSQL, filterArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	rows, err := conn.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	items := make([]*model.LogListItem, 0, p.Limit)
	for rows.Next() {
		var it model.LogListItem
		dest := append(entryDest(&it.AccessLogEntry),
			&it.AIScore, &it.AILabel, &it.AIModelVersion, &it.AIAnalysisSeq)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan log: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate logs: %w", err)
	}
	return items, total, nil
}

// Detail returns one log entry and all of its analyses ordered by
// analysis_seq descending. Both reads share a single connection.
func (r *LogRepository) Detail(ctx context.Context, logID int64) (*model.LogDetail, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var entry model.AccessLogEntry
	err = conn.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM access_log al WHERE al.log_id = $1`, logID,
	).Scan(entryDest(&entry)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log %d: %w", logID, err)
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM ai_analysis WHERE log_id = $1 ORDER BY analysis_seq DESC`, logID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]*model.AiAnalysis, 0)
	for rows.Next() {
		var a model.AiAnalysis
		if err := rows.Scan(
			&a.AIAnalysisID, &a.LogID, &a.AnalysisSeq, &a.AnalyzedAt,
			&a.Score, &a.Label, &a.AIResponse, &a.LatencyMS, &a.ModelVersion, &a.ErrorCode,
		); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}

	return &model.LogDetail{Log: &entry, Analyses: analyses}, nil
}

// Ping checks that a connection can be acquired.
func (r *LogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// buildWhere returns the WHERE clause for f and its arguments. Placeholders
// are numbered from $1.
func buildWhere(f model.LogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if v := f.Decision; v != "" && v != "all" {
		add("al.decision = ?", v)
	}
	if v := f.Stage; v != "" && v != "all" {
		add("al.decision_stage = ?", v)
	}
	if v := f.Host; v != "" {
		add("LOWER(al.host) LIKE LOWER(?)", "%"+v+"%")
	}
	if v := f.ClientIP; v != "" {
		add("LOWER(al.client_ip) LIKE LOWER(?)", "%"+v+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// buildListQuery returns the count and page queries for p. args holds the
// filter values followed by limit and offset; the count query uses only the
// filter values.
func buildListQuery(p model.Page) (countSQL, dataSQL string, args []any) {
	where, args := buildWhere(p.Filter)

	col, ok := sortColumns[p.Sort]
	if !ok {
		col = sortColumns[model.DefaultSort]
	}
	dir, ok := sortDirections[p.Dir]
	if !ok {
		dir = sortDirections[model.SortDesc]
	}

	countSQL = `SELECT COUNT(*) FROM access_log al ` + where

	n := len(args)
	dataSQL = `SELECT ` + logColumns + `,
	aa.score, aa.label, aa.model_version, aa.analysis_seq
	FROM access_log al` + latestAnalysisJoin + `
	` + where + `
	ORDER BY ` + col + ` ` + dir + `, al.log_id ` + dir + `
	LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)

	args = append(args, p.Limit, p.Offset)
	return countSQL, dataSQL, args
}

func entryDest(e *model.AccessLogEntry) []any {
	return []any{
		&e.LogID, &e.RequestID, &e.DetectTimestamp,
		&e.ClientIP, &e.ClientPort, &e.ServerIP, &e.ServerPort,
		&e.Host, &e.Path, &e.Method, &e.URLNorm,
		&e.Decision, &e.Reason, &e.DecisionStage, &e.PolicyID,
		&e.UserAgent, &e.EngineLatencyMS,
		&e.InjectAttempted, &e.InjectSend, &e.InjectErrno,
		&e.InjectLatencyMS, &e.InjectStatusCode,
	}
}
