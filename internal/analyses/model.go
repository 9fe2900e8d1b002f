package analyses

import "time"

// AnalysisType distinguishes stored standalone reviews from job-match runs.
type AnalysisType string

const (
	TypeStandard AnalysisType = "standard"
	TypeJobMatch AnalysisType = "job_match"
)

// Analysis is a persisted analysis run. Result always holds the full canonical
// result; premium gating happens at response time.
type Analysis struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Type           AnalysisType   `json:"type"`
	FileName       string         `json:"fileName,omitempty"`
	StorageKey     string         `json:"-"`
	DetectedField  DetectedField  `json:"detectedField"`
	Score          int            `json:"score"`
	JobDescription string         `json:"jobDescription,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Model          string         `json:"model,omitempty"`
	Result         map[string]any `json:"result,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
