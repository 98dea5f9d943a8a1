package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// LogEntry is an access log row. Pointer fields are null on the wire when
// the engine did not record them.
type LogEntry struct {
	LogID            int64     `json:"log_id"`
	RequestID        string    `json:"request_id"`
	DetectTimestamp  time.Time `json:"detect_timestamp"`
	ClientIP         *string   `json:"client_ip"`
	ClientPort       *int      `json:"client_port"`
	ServerIP         *string   `json:"server_ip"`
	ServerPort       *int      `json:"server_port"`
	Host             *string   `json:"host"`
	Path             *string   `json:"path"`
	Method           *string   `json:"method"`
	URLNorm          *string   `json:"url_norm"`
	Decision         string    `json:"decision"`
	Reason           *string   `json:"reason"`
	DecisionStage    string    `json:"decision_stage"`
	PolicyID         *int64    `json:"policy_id"`
	UserAgent        *string   `json:"user_agent"`
	EngineLatencyMS  *int      `json:"engine_latency_ms"`
	InjectAttempted  *int      `json:"inject_attempted"`
	InjectSend       *int      `json:"inject_send"`
	InjectErrno      *int      `json:"inject_errno"`
	InjectLatencyMS  *int      `json:"inject_latency_ms"`
	InjectStatusCode *int      `json:"inject_status_code"`
}

// LogSummary is a list row: a log plus its latest analysis, if any.
type LogSummary struct {
	LogEntry
	AIScore        *float64 `json:"ai_score"`
	AILabel        *string  `json:"ai_label"`
	AIModelVersion *string  `json:"ai_model_version"`
	AIAnalysisSeq  *int     `json:"ai_analysis_seq"`
}

// Analysis is one scoring attempt recorded against a log.
type Analysis struct {
	AIAnalysisID int64     `json:"ai_analysis_id"`
	LogID        int64     `json:"log_id"`
	AnalysisSeq  int       `json:"analysis_seq"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	Score        *float64  `json:"score"`
	Label        *string   `json:"label"`
	AIResponse   *string   `json:"ai_response"`
	LatencyMS    *int      `json:"latency_ms"`
	ModelVersion *string   `json:"model_version"`
	ErrorCode    *string   `json:"error_code"`
}

// Geo is the location of a log's client address, when the server has a
// GeoIP database configured.
type Geo struct {
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// LogPage is one page of ListLogs.
type LogPage struct {
	Items  []LogSummary `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Sort   string       `json:"sort"`
	Dir    string       `json:"dir"`
}

// LogDetail is a log with all of its analyses, newest first.
type LogDetail struct {
	Log      LogEntry   `json:"log"`
	Analyses []Analysis `json:"analyses"`
	Geo      *Geo       `json:"geo,omitempty"`
}

// ListOptions narrows ListLogs. Zero values are left to the server defaults.
type ListOptions struct {
	Decision string
	Stage    string
	Host     string
	ClientIP string
	Sort     string
	Dir      string
	Limit    int
	Offset   int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("decision", o.Decision)
	set("stage", o.Stage)
	set("host", o.Host)
	set("client_ip", o.ClientIP)
	set("sort", o.Sort)
	set("dir", o.Dir)
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	return v
}

// ListLogs calls GET /v1/logs.
func (c *Client) ListLogs(ctx context.Context, opts ListOptions) (*LogPage, error) {
	path := "/v1/logs"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	var page LogPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetLog calls GET /v1/logs/{id}. A missing log yields ErrNotFound.
func (c *Client) GetLog(ctx context.Context, id int64) (*LogDetail, error) {
	var d LogDetail
	if err := c.getJSON(ctx, "/v1/logs/"+strconv.FormatInt(id, 10), &d); err != nil {
		return nil, err
	}
	return &d, nil
}
