package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const explanationFallbackLimit = 200

// parseDecision turns raw model output into a (match, explanation)
// decision. Parsing never fails: malformed output degrades to a loose
// textual check, and a missing explanation is replaced with a WARNING
// sentinel so downstream stages can exclude the row from export.
func parseDecision(content string) (bool, string) {
	var parsed struct {
		Match       bool   `json:"match"`
		Explanation string `json:"explanation"`
	}

	var match bool
	var explanation string
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		match = parsed.Match
		explanation = strings.TrimSpace(parsed.Explanation)
	} else if strings.TrimSpace(content) != "" {
		lower := strings.ToLower(content)
		match = strings.Contains(lower, "true") && strings.Contains(lower, "match")
		explanation = strings.TrimSpace(truncate(content, explanationFallbackLimit))
	}

	if explanation == "" {
		explanation = fmt.Sprintf("WARNING: LLM returned match=%t without explanation", match)
	}
	return match, explanation
}

// errorExplanation formats a failed model call as an ERROR decision.
func errorExplanation(err error) string {
	return "ERROR: " + err.Error()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
