// Package model defines the audit-log rows written by the engine and the
// query types used to read them back.
package model

import "strings"

// Pagination bounds for log listings.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// SortField is a whitelisted sort key. Only values listed in sortFields ever
// reach the query builder.
type SortField string

const (
	SortTimestamp       SortField = "timestamp"
	SortClientIP        SortField = "client_ip"
	SortHost            SortField = "host"
	SortPath            SortField = "path"
	SortDecision        SortField = "decision"
	SortDecisionStage   SortField = "decision_stage"
	SortPolicyID        SortField = "policy_id"
	SortEngineLatencyMS SortField = "engine_latency_ms"
)

// DefaultSort is applied when the requested sort key is not whitelisted.
const DefaultSort = SortTimestamp

var sortFields = map[string]SortField{
	"timestamp":         SortTimestamp,
	"detect_timestamp":  SortTimestamp,
	"client_ip":         SortClientIP,
	"host":              SortHost,
	"path":              SortPath,
	"decision":          SortDecision,
	"decision_stage":    SortDecisionStage,
	"policy_id":         SortPolicyID,
	"engine_latency_ms": SortEngineLatencyMS,
}

// LookupSortField reports the whitelisted field named by raw.
func LookupSortField(raw string) (SortField, bool) {
	f, ok := sortFields[strings.TrimSpace(raw)]
	return f, ok
}

// ParseSortField maps raw to a whitelisted field, falling back to DefaultSort.
func ParseSortField(raw string) SortField {
	if f, ok := LookupSortField(raw); ok {
		return f
	}
	return DefaultSort
}

// SortDir is an ORDER BY direction.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// ParseSortDir accepts asc/desc in any case and falls back to SortDesc.
func ParseSortDir(raw string) SortDir {
	if strings.EqualFold(strings.TrimSpace(raw), string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// LogFilter narrows a listing. Empty fields, and "all" for the categorical
// fields, do not filter.
type LogFilter struct {
	Decision string `form:"decision"`
	Stage    string `form:"stage"`
	Host     string `form:"host"`
	ClientIP string `form:"client_ip"`
}

// ListQuery is a request for one page of logs.
type ListQuery struct {
	LogFilter
	Limit  int    `form:"limit,default=50"  validate:"min=1,max=500"`
	Offset int    `form:"offset,default=0"  validate:"min=0"`
	Sort   string `form:"sort"`
	Dir    string `form:"dir"`
}

// ListResult is one page of logs. Sort and Dir are the values actually applied.
type ListResult struct {
	Items  []*LogListItem `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Sort   SortField      `json:"sort"`
	Dir    SortDir        `json:"dir"`
}

// Page is the validated, normalised form of a ListQuery handed to storage.
type Page struct {
	Filter LogFilter
	Sort   SortField
	Dir    SortDir
	Limit  int
	Offset int
}
