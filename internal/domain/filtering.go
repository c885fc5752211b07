package domain

import (
	"strings"
	"time"
)

// Reserved explanation prefixes. They partition filter results for the
// downstream stages: ERROR rows count as failed, WARNING rows count as
// matched but are excluded from export and PDF retrieval.
const (
	ExplanationErrorPrefix   = "ERROR:"
	ExplanationWarningPrefix = "WARNING:"
)

// FilteringQuery is one execution of the LLM relevance filter.
type FilteringQuery struct {
	ID            int64     `json:"id"`
	Query         string    `json:"query"`
	Exclude       string    `json:"exclude,omitempty"`
	Model         string    `json:"model"`
	MaxConcurrent int       `json:"max_concurrent"`
	Timestamp     time.Time `json:"timestamp"`
	TotalRecords  int       `json:"total_records"`
	MatchedCount  int       `json:"matched_count"`
	FailedCount   int       `json:"failed_count"`
}

// FilteringResult is the decision for one (record, filtering query) pair.
type FilteringResult struct {
	ID               int64     `json:"id"`
	ArticleID        int64     `json:"article_id"`
	FilteringQueryID int64     `json:"filtering_query_id"`
	MatchResult      bool      `json:"match_result"`
	Explanation      string    `json:"explanation"`
	DecisionDatetime time.Time `json:"decision_datetime"`
}

// IsError reports whether the decision failed (model call error).
func (r *FilteringResult) IsError() bool {
	return strings.HasPrefix(r.Explanation, ExplanationErrorPrefix)
}

// IsWarning reports whether the decision carries a degraded explanation.
func (r *FilteringResult) IsWarning() bool {
	return strings.HasPrefix(r.Explanation, ExplanationWarningPrefix)
}

// Matched reports whether the record counts as matched for export and
// PDF retrieval: a positive decision with a clean explanation.
func (r *FilteringResult) Matched() bool {
	return r.MatchResult && !r.IsError() && !r.IsWarning()
}
