package analyses

// Mode is the analysis flavor used for metrics and log labels.
type Mode string

const (
	ModeStandalone Mode = "standalone"
	ModeMatch      Mode = "match"
)

// Type returns the stored analysis type for the mode.
func (m Mode) Type() AnalysisType {
	if m == ModeMatch {
		return TypeJobMatch
	}
	return TypeStandard
}

// ModeForJob picks the mode implied by an optional job description.
func ModeForJob(jobText string) Mode {
	if jobText == "" {
		return ModeStandalone
	}
	return ModeMatch
}
