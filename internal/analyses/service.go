package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"resuradar/internal/extract"
	"resuradar/internal/llm"
	"resuradar/internal/shared/metrics"
	"resuradar/internal/shared/storage/object"
	"resuradar/internal/shared/telemetry"
	"resuradar/internal/usage"
)

const (
	// DefaultTimeout bounds the model call when Service.Timeout is unset.
	DefaultTimeout = 60 * time.Second
	// MaxUploadBytes is the largest résumé file accepted.
	MaxUploadBytes = 10 << 20
)

// PremiumChecker reports whether a user has unlocked premium feedback.
type PremiumChecker interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// Service runs analyses against the model and persists the results.
type Service struct {
	LLM      llm.Client
	Timeout  time.Duration
	Provider string
	Model    string

	Repo  Repo
	Store object.ObjectStore
	Usage *usage.Service
	Users PremiumChecker

	now func() time.Time
}

// Upload is a résumé file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Submission is the outcome of a persisted analysis run.
type Submission struct {
	Analysis Analysis
	Premium  bool
	// Usage is the caller's quota after this run; nil for premium users.
	Usage *usage.Usage
}

// Analyze scores a résumé on its own.
func (s *Service) Analyze(ctx context.Context, text string) (CanonicalAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return CanonicalAnalysis{}, ErrEmptyText
	}
	field := Classify(text)
	var out CanonicalAnalysis
	err := s.run(ctx, ModeStandalone, field, llm.BuildStandalonePrompt(text, string(field)), func(candidate map[string]any) error {
		result, err := ValidateStandalone(candidate)
		if err != nil {
			return err
		}
		result.DetectedField = field
		out = result
		return nil
	})
	return out, err
}

// AnalyzeMatch compares a résumé against a job description. The job text
// decides the detected field; the résumé is used when the job text is generic.
func (s *Service) AnalyzeMatch(ctx context.Context, resumeText, jobText string) (CanonicalMatchAnalysis, error) {
	if strings.TrimSpace(resumeText) == "" {
		return CanonicalMatchAnalysis{}, ErrEmptyText
	}
	if strings.TrimSpace(jobText) == "" {
		return CanonicalMatchAnalysis{}, ErrJobDescriptionRequired
	}
	field := Classify(jobText)
	if field == FieldGeneral {
		field = Classify(resumeText)
	}
	var out CanonicalMatchAnalysis
	err := s.run(ctx, ModeMatch, field, llm.BuildMatchPrompt(resumeText, jobText, string(field)), func(candidate map[string]any) error {
		result, err := ValidateMatch(candidate)
		if err != nil {
			return err
		}
		result.DetectedField = field
		out = result
		return nil
	})
	return out, err
}

// AnalyzeUpload stores an uploaded résumé, runs a standalone analysis on its
// text and persists the result for the user.
func (s *Service) AnalyzeUpload(ctx context.Context, userID string, upload Upload) (Submission, error) {
	return s.submit(ctx, userID, &upload, "", "")
}

// AnalyzeUploadMatch is AnalyzeUpload for a résumé-to-job comparison.
func (s *Service) AnalyzeUploadMatch(ctx context.Context, userID string, upload Upload, jobText string) (Submission, error) {
	if strings.TrimSpace(jobText) == "" {
		return Submission{}, ErrJobDescriptionRequired
	}
	return s.submit(ctx, userID, &upload, "", jobText)
}

// AnalyzeText persists an analysis of already-extracted résumé text. A
// non-empty jobText selects match mode.
func (s *Service) AnalyzeText(ctx context.Context, userID, text, jobText string) (Submission, error) {
	return s.submit(ctx, userID, nil, text, jobText)
}

// Get returns one of the user's analyses.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// List returns the user's analyses newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// IsPremium reports the caller's tier. Without a checker every user is free.
func (s *Service) IsPremium(ctx context.Context, userID string) (bool, error) {
	if s.Users == nil {
		return false, nil
	}
	return s.Users.IsPremium(ctx, userID)
}

func (s *Service) submit(ctx context.Context, userID string, upload *Upload, text, jobText string) (Submission, error) {
	if userID == "" {
		return Submission{}, errors.New("user id is required")
	}
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return Submission{}, fmt.Errorf("premium lookup: %w", err)
	}
	if !premium && s.Usage != nil {
		ok, _, err := s.Usage.CanConsume(ctx, userID, 1)
		if err != nil {
			return Submission{}, fmt.Errorf("usage check: %w", err)
		}
		if !ok {
			return Submission{}, usage.ErrLimitReached
		}
	}

	mode := ModeForJob(strings.TrimSpace(jobText))
	record := Analysis{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           mode.Type(),
		JobDescription: strings.TrimSpace(jobText),
		Provider:       s.Provider,
		Model:          s.Model,
	}

	// Uploads of runs that never reach the repository are removed again.
	var pending string
	defer func() {
		if pending != "" {
			s.discard(ctx, pending)
		}
	}()

	if upload != nil {
		record.FileName = upload.FileName
		record.StorageKey, text, err = s.ingest(ctx, userID, *upload)
		if err != nil {
			return Submission{}, err
		}
		pending = record.StorageKey
	}
	if strings.TrimSpace(text) == "" {
		return Submission{}, ErrEmptyText
	}

	var result any
	switch mode {
	case ModeMatch:
		match, err := s.AnalyzeMatch(WithAnalysisID(ctx, record.ID), text, record.JobDescription)
		if err != nil {
			return Submission{}, err
		}
		record.Score = match.MatchScore
		record.DetectedField = match.DetectedField
		result = match
	default:
		standalone, err := s.Analyze(WithAnalysisID(ctx, record.ID), text)
		if err != nil {
			return Submission{}, err
		}
		record.Score = standalone.Score
		record.DetectedField = standalone.DetectedField
		result = standalone
	}

	record.Result, err = toResultMap(result)
	if err != nil {
		return Submission{}, err
	}
	record.CreatedAt = s.clock()
	if err := s.Repo.Create(ctx, record); err != nil {
		return Submission{}, fmt.Errorf("persist analysis: %w", err)
	}
	pending = ""

	sub := Submission{Analysis: record, Premium: premium}
	if !premium && s.Usage != nil {
		u, err := s.Usage.Consume(ctx, userID, 1)
		if err != nil {
			// The analysis is already stored, so a failed count is only logged.
			telemetry.Warn("usage.consume_failed", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"user_id":     userID,
				"analysis_id": record.ID,
				"error":       err.Error(),
			})
		} else {
			sub.Usage = &u
		}
	}
	return sub, nil
}

// ingest validates the upload, saves the original file and extracts its text.
func (s *Service) ingest(ctx context.Context, userID string, upload Upload) (string, string, error) {
	if len(upload.Data) == 0 {
		return "", "", ErrEmptyText
	}
	if len(upload.Data) > MaxUploadBytes {
		return "", "", ErrFileTooLarge
	}
	mimeType := extract.DetectMime(upload.ContentType, upload.FileName, upload.Data)
	if !extract.Supported(mimeType) {
		return "", "", ErrUnsupportedFile
	}

	var storageKey string
	if s.Store != nil {
		key := object.UploadKey(userID, upload.FileName, s.clock())
		if _, err := s.Store.Put(ctx, key, mimeType, bytes.NewReader(upload.Data)); err != nil {
			return "", "", fmt.Errorf("store upload: %w", err)
		}
		storageKey = key
	}

	text, err := extract.ExtractTextFromBytes(ctx, upload.Data, mimeType, upload.FileName)
	if err != nil {
		telemetry.Warn("extract.failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"user_id":    userID,
			"mime_type":  mimeType,
			"error":      err.Error(),
		})
		s.discard(ctx, storageKey)
		return "", "", fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	return storageKey, text, nil
}

// discard removes a stored upload whose analysis did not complete.
func (s *Service) discard(ctx context.Context, key string) {
	if s.Store == nil || key == "" {
		return
	}
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		telemetry.Warn("storage.delete_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"storage_key": key,
			"error":       err.Error(),
		})
	}
}

// run executes the model stages for one analysis and records its outcome.
func (s *Service) run(ctx context.Context, mode Mode, field DetectedField, prompt string, validate func(map[string]any) error) error {
	startedAt := s.clock()
	metrics.IncAnalysisStarted(string(mode))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":     requestIDFromContext(ctx),
		"analysis_id":    analysisIDFromContext(ctx),
		"mode":           string(mode),
		"detected_field": string(field),
		"status":         "started",
	})

	err := s.stages(ctx, prompt, validate)
	elapsed := float64(s.clock().Sub(startedAt).Microseconds()) / 1000.0
	metrics.ObserveAnalysisDurationMs(string(mode), elapsed)

	if err != nil {
		stage := "unknown"
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stage = string(stageErr.Stage)
		}
		metrics.IncAnalysisFailed(string(mode), stage)
		telemetry.Warn("analysis.status", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisIDFromContext(ctx),
			"mode":        string(mode),
			"status":      "failed",
			"stage":       stage,
			"duration_ms": elapsed,
			"error":       err.Error(),
		})
		return err
	}

	metrics.IncAnalysisCompleted(string(mode))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisIDFromContext(ctx),
		"mode":        string(mode),
		"status":      "completed",
		"duration_ms": elapsed,
	})
	return nil
}

// stages runs model call, extraction, decoding and validation strictly in order.
func (s *Service) stages(ctx context.Context, prompt string, validate func(map[string]any) error) error {
	client := s.LLM
	if client == nil {
		client = llm.UnconfiguredClient{}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	raw, err := client.Complete(callCtx, prompt)
	cancel()
	if err != nil {
		return &StageError{Stage: StageModel, Err: &TransportError{Err: err}}
	}

	body, err := ExtractJSON(raw)
	if err != nil {
		return &StageError{Stage: StageExtract, Err: err}
	}

	candidate, err := decodeObject(body)
	if err != nil {
		return &StageError{Stage: StageDecode, Err: err}
	}

	if err := validate(candidate); err != nil {
		return &StageError{Stage: StageValidate, Err: err}
	}
	return nil
}

// decodeObject parses exactly one JSON object, keeping numbers as json.Number.
func decodeObject(body string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model JSON: %w", err)
	}
	if out == nil {
		return nil, errors.New("decode model JSON: not an object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode model JSON: unexpected content after object")
	}
	return out, nil
}

func toResultMap(result any) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out, nil
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}
