package model

import "time"

// Decision values written by the engine.
const (
	DecisionAllow  = "ALLOW"
	DecisionBlock  = "BLOCK"
	DecisionReview = "REVIEW"
	DecisionError  = "ERROR"
)

// Decision stages written by the engine.
const (
	StagePolicy = "POLICY_STAGE"
	StageAI     = "AI_STAGE"
	StageFail   = "FAIL_STAGE"
)

// AccessLogEntry is one intercepted HTTP transaction as recorded by the engine.
type AccessLogEntry struct {
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

// AiAnalysis is one scoring attempt recorded against a log entry. AnalysisSeq
// increases per LogID; the highest one is the latest analysis.
type AiAnalysis struct {
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

// LogListItem is an access log row joined to its latest analysis. The AI
// fields are nil when the log has never been analysed.
type LogListItem struct {
	AccessLogEntry
	AIScore        *float64 `json:"ai_score"`
	AILabel        *string  `json:"ai_label"`
	AIModelVersion *string  `json:"ai_model_version"`
	AIAnalysisSeq  *int     `json:"ai_analysis_seq"`
}

// GeoLocation describes where a client address is registered.
type GeoLocation struct {
	CountryCode string  `json:"country_code"`
	City        string  `json:"city,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// LogDetail is a log entry with its full analysis history, newest first.
type LogDetail struct {
	Log      *AccessLogEntry `json:"log"`
	Analyses []*AiAnalysis   `json:"analyses"`
	Geo      *GeoLocation    `json:"geo,omitempty"`
}
