package qa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity labels for issues.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// RubricScores holds the per-rubric 1-100 scores.
type RubricScores struct {
	Structure    int `json:"structure"`
	Clarity      int `json:"clarity"`
	Faithfulness int `json:"faithfulness"`
	Repetition   int `json:"repetition"`
	Completeness int `json:"completeness"`
}

// Issue is one concrete problem found in the draft.
type Issue struct {
	Severity     string `json:"severity"`
	IssueType    string `json:"issue_type"`
	ChapterIndex int    `json:"chapter_index"`
	Heading      string `json:"heading,omitempty"`
	Location     string `json:"location,omitempty"`
	Message      string `json:"message"`
	Suggestion   string `json:"suggestion,omitempty"`
}

// Report is the analysis of one draft version, keyed by the draft hash so an
// unchanged draft reuses its report.
type Report struct {
	DraftHash       string       `json:"draft_hash"`
	OverallScore    int          `json:"overall_score"`
	RubricScores    RubricScores `json:"rubric_scores"`
	Issues          []Issue      `json:"issues"`
	Truncated       bool         `json:"truncated,omitempty"`
	TotalIssueCount int          `json:"total_issue_count"`
	AnalyzedAt      time.Time    `json:"analyzed_at"`
}

// Encode serializes the report for persistence.
func (r *Report) Encode() (string, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode qa report: %w", err)
	}
	return string(encoded), nil
}

// DecodeReport parses a persisted report. Empty input yields (nil, nil).
func DecodeReport(raw string) (*Report, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode qa report: %w", err)
	}
	return &r, nil
}

// DraftHash returns the sha256 hex digest identifying a draft version.
func DraftHash(draft string) string {
	sum := sha256.Sum256([]byte(draft))
	return hex.EncodeToString(sum[:])
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}
