package analyses

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrEmptyText              = errors.New("no text to analyze")
	ErrJobDescriptionRequired = errors.New("job description is required")
	ErrUnsupportedFile        = errors.New("unsupported file type")
	ErrUnreadableFile         = errors.New("could not read text from file")
	ErrFileTooLarge           = errors.New("file exceeds upload limit")
)

// Stage names the orchestration step that failed.
type Stage string

const (
	StageModel    Stage = "model"
	StageExtract  Stage = "extract"
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
)

// Validation failure reasons.
const (
	ReasonInvalidScore       = "invalid score"
	ReasonMissingKey         = "missing key"
	ReasonIncompleteFeedback = "incomplete feedback"
	ReasonEmptyList          = "empty required list"
)

// StageError wraps the single terminal failure of an analysis run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis failed at %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TransportError reports a failed model call. Timeouts are reported the same
// way as any other network failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExtractionError reports that no JSON object could be located in model output.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Reason
}

// ValidationError reports the first field that broke the result contract.
type ValidationError struct {
	Reason string
	Field  string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason + ": " + e.Field
}

func (e *ValidationError) Unwrap() error { return e.Err }

func validationErr(reason, field string) *ValidationError {
	return &ValidationError{Reason: reason, Field: field}
}
