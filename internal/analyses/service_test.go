package analyses

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"resuradar/internal/shared/storage/object/local"
	"resuradar/internal/usage"
)

const validStandaloneOutput = "```json\n" + `{
  "score": "87.6",
  "free_feedback": {"strengths": ["Clear impact"], "improvements": ["Quantify results"], "summary": "Strong backend profile"},
  "premium_feedback": {
    "detailed_suggestions": ["Lead with outcomes"],
    "rewrites": ["Designed a Go service handling 2k rps"],
    "portfolio_tips": ["Link the GitHub profile"],
    "keywords": ["Go", "Kubernetes"],
    "professional_level": "Senior"
  }
}` + "\n```"

const validMatchOutput = `<think>compare the two</think>{
  "free_feedback": {
    "match_score": 71.2,
    "match_level": "Good Match",
    "summary": "Most requirements covered",
    "strengths": ["Go"],
    "gaps": ["Kafka"]
  },
  "premium_feedback": {
    "keyword_analysis": {"total_keywords_in_jd": 8, "matched_keywords": 5, "missing_keywords": ["Kafka"]},
    "role_fit_breakdown": {"technical_skills_fit": 80, "experience_fit": 65, "overall_fit": 99},
    "recommendations": ["Add streaming work"],
    "suggested_rewrites": [{"original": "Wrote services", "suggestion": "Built Go services"}]
  }
}`

type fakeLLM struct {
	mu      sync.Mutex
	resp    string
	err     error
	wait    bool
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.resp, f.err
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fixedPremium map[string]bool

func (f fixedPremium) IsPremium(ctx context.Context, userID string) (bool, error) {
	return f[userID], nil
}

func docxUpload(t *testing.T, text string) Upload {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		text + `</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return Upload{
		FileName:    "cv.docx",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:        buf.Bytes(),
	}
}

func newTestService(t *testing.T, client *fakeLLM) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	return &Service{
		LLM:      client,
		Timeout:  time.Second,
		Provider: "openrouter",
		Model:    "test-model",
		Repo:     repo,
		Store:    local.New(t.TempDir()),
		Usage:    usage.NewService(usage.Policy{Limit: 1}),
		Users:    fixedPremium{"google:premium": true},
	}, repo
}

func TestAnalyzeStandalone(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, _ := newTestService(t, client)

	got, err := svc.Analyze(context.Background(), "Senior Go developer building microservices")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Score != 88 {
		t.Fatalf("expected score 88, got %d", got.Score)
	}
	if got.DetectedField != FieldSoftwareEngineering {
		t.Fatalf("expected Software Engineering, got %q", got.DetectedField)
	}
	if client.calls() != 1 || !strings.Contains(client.prompts[0], "Software Engineering") {
		t.Fatalf("expected one prompt steered by detected field, got %v", client.prompts)
	}
}

func TestAnalyzeOverridesModelDetectedField(t *testing.T) {
	client := &fakeLLM{resp: strings.Replace(validStandaloneOutput, `"score": "87.6",`, `"score": 50, "detected_field": "Astronaut",`, 1)}
	svc, _ := newTestService(t, client)

	got, err := svc.Analyze(context.Background(), "Recruiter focused on talent acquisition")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.DetectedField != FieldHumanResources {
		t.Fatalf("expected Human Resources, got %q", got.DetectedField)
	}
}

func TestAnalyzeMatchFieldFallsBackToResume(t *testing.T) {
	client := &fakeLLM{resp: validMatchOutput}
	svc, _ := newTestService(t, client)

	got, err := svc.AnalyzeMatch(context.Background(), "Figma and wireframes for mobile apps", "We are hiring a great teammate")
	if err != nil {
		t.Fatalf("AnalyzeMatch: %v", err)
	}
	if got.DetectedField != FieldDesign {
		t.Fatalf("expected Design from resume text, got %q", got.DetectedField)
	}
	if got.MatchScore != 71 || got.PremiumFeedback.RoleFitBreakdown.OverallFit != 71 {
		t.Fatalf("expected synced score 71, got %d / %d", got.MatchScore, got.PremiumFeedback.RoleFitBreakdown.OverallFit)
	}

	got, err = svc.AnalyzeMatch(context.Background(), "Figma and wireframes", "Account executive owning quota attainment")
	if err != nil {
		t.Fatalf("AnalyzeMatch: %v", err)
	}
	if got.DetectedField != FieldSales {
		t.Fatalf("expected Sales from job text, got %q", got.DetectedField)
	}
}

func TestAnalyzeMatchRequiresJobText(t *testing.T) {
	client := &fakeLLM{resp: validMatchOutput}
	svc, _ := newTestService(t, client)

	if _, err := svc.AnalyzeMatch(context.Background(), "resume", "  "); !errors.Is(err, ErrJobDescriptionRequired) {
		t.Fatalf("expected ErrJobDescriptionRequired, got %v", err)
	}
	if client.calls() != 0 {
		t.Fatalf("model must not be called")
	}
}

func TestAnalyzeStageFailures(t *testing.T) {
	tests := []struct {
		name  string
		llm   *fakeLLM
		stage Stage
		check func(t *testing.T, err error)
	}{
		{
			name:  "transport",
			llm:   &fakeLLM{err: errors.New("http status 503")},
			stage: StageModel,
			check: func(t *testing.T, err error) {
				var te *TransportError
				if !errors.As(err, &te) {
					t.Fatalf("expected TransportError, got %v", err)
				}
			},
		},
		{
			name:  "no json",
			llm:   &fakeLLM{resp: "Sorry, I cannot review this resume."},
			stage: StageExtract,
			check: func(t *testing.T, err error) {
				var ee *ExtractionError
				if !errors.As(err, &ee) {
					t.Fatalf("expected ExtractionError, got %v", err)
				}
			},
		},
		{
			name:  "trailing content",
			llm:   &fakeLLM{resp: `{"score": 80} and also {"score": 90}`},
			stage: StageDecode,
		},
		{
			name:  "score out of range",
			llm:   &fakeLLM{resp: strings.Replace(validStandaloneOutput, `"87.6"`, `101`, 1)},
			stage: StageValidate,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Reason != ReasonInvalidScore {
					t.Fatalf("expected invalid score, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.llm)
			_, err := svc.Analyze(context.Background(), "Go developer")
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if stageErr.Stage != tt.stage {
				t.Fatalf("expected stage %s, got %s", tt.stage, stageErr.Stage)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
			if tt.llm.calls() != 1 {
				t.Fatalf("expected a single model call, got %d", tt.llm.calls())
			}
		})
	}
}

func TestAnalyzeTextKeepsFreeFormNestedContent(t *testing.T) {
	output := `{"score": 80, "free_feedback": {"summary": "Good"}, "premium_feedback": {"rewrites": [{"before": "a", "after": "b"}]}}`
	svc, repo := newTestService(t, &fakeLLM{resp: output})
	ctx := context.Background()

	sub, err := svc.AnalyzeText(ctx, "google:premium", "Go developer", "")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	stored, err := repo.GetByID(ctx, sub.Analysis.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	premium, _ := stored.Result["premium_feedback"].(map[string]any)
	rewrites, _ := premium["rewrites"].([]any)
	if len(rewrites) != 1 {
		t.Fatalf("expected rewrites in stored result, got %v", stored.Result)
	}
	if first, _ := rewrites[0].(map[string]any); first["after"] != "b" {
		t.Fatalf("unexpected rewrite %v", rewrites[0])
	}
}

func TestAnalyzeTimeoutIsTransportError(t *testing.T) {
	client := &fakeLLM{wait: true}
	svc, _ := newTestService(t, client)
	svc.Timeout = 20 * time.Millisecond

	_, err := svc.Analyze(context.Background(), "Go developer")
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageModel {
		t.Fatalf("expected model stage failure, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline to be wrapped, got %v", err)
	}
}

func TestAnalyzeUploadPersistsAndConsumesQuota(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, repo := newTestService(t, client)
	ctx := context.Background()

	sub, err := svc.AnalyzeUpload(ctx, "google:1", docxUpload(t, "Senior Go developer"))
	if err != nil {
		t.Fatalf("AnalyzeUpload: %v", err)
	}
	if sub.Premium || sub.Usage == nil || sub.Usage.Used != 1 {
		t.Fatalf("expected counted free submission, got %+v", sub)
	}
	stored, err := repo.GetByID(ctx, sub.Analysis.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Type != TypeStandard || stored.Score != 88 || stored.StorageKey == "" || stored.FileName != "cv.docx" {
		t.Fatalf("unexpected stored analysis: %+v", stored)
	}
	if _, ok := stored.Result["premium_feedback"]; !ok {
		t.Fatalf("stored result must keep premium feedback: %v", stored.Result)
	}
	if stored.Result["detected_field"] != string(FieldSoftwareEngineering) {
		t.Fatalf("unexpected detected field in result: %v", stored.Result["detected_field"])
	}

	_, err = svc.AnalyzeUpload(ctx, "google:1", docxUpload(t, "Senior Go developer"))
	if !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if client.calls() != 1 {
		t.Fatalf("quota rejection must not reach the model, got %d calls", client.calls())
	}
}

func TestAnalyzeUploadPremiumIsNotCounted(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, repo := newTestService(t, client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sub, err := svc.AnalyzeUpload(ctx, "google:premium", docxUpload(t, "Go developer"))
		if err != nil {
			t.Fatalf("AnalyzeUpload %d: %v", i, err)
		}
		if !sub.Premium || sub.Usage != nil {
			t.Fatalf("expected premium submission, got %+v", sub)
		}
	}
	n, _ := repo.CountByUser(ctx, "google:premium")
	if n != 3 {
		t.Fatalf("expected 3 stored analyses, got %d", n)
	}
}

func TestFailedAnalysisDoesNotConsumeQuota(t *testing.T) {
	client := &fakeLLM{resp: "not json"}
	svc, repo := newTestService(t, client)
	ctx := context.Background()

	if _, err := svc.AnalyzeUpload(ctx, "google:1", docxUpload(t, "Go developer")); err == nil {
		t.Fatalf("expected failure")
	}
	u, err := svc.Usage.Get(ctx, "google:1")
	if err != nil {
		t.Fatalf("usage Get: %v", err)
	}
	if u.Used != 0 {
		t.Fatalf("failed analysis consumed quota: %+v", u)
	}
	if n, _ := repo.CountByUser(ctx, "google:1"); n != 0 {
		t.Fatalf("failed analysis must not be stored, got %d", n)
	}
}

func TestAnalyzeUploadMatch(t *testing.T) {
	client := &fakeLLM{resp: validMatchOutput}
	svc, _ := newTestService(t, client)
	ctx := context.Background()

	if _, err := svc.AnalyzeUploadMatch(ctx, "google:1", docxUpload(t, "Go developer"), ""); !errors.Is(err, ErrJobDescriptionRequired) {
		t.Fatalf("expected ErrJobDescriptionRequired, got %v", err)
	}

	sub, err := svc.AnalyzeUploadMatch(ctx, "google:1", docxUpload(t, "Go developer"), "Backend engineer, Go and Kafka")
	if err != nil {
		t.Fatalf("AnalyzeUploadMatch: %v", err)
	}
	if sub.Analysis.Type != TypeJobMatch || sub.Analysis.Score != 71 || sub.Analysis.JobDescription == "" {
		t.Fatalf("unexpected analysis: %+v", sub.Analysis)
	}
}

func TestAnalyzeUploadRejectsUnsupportedFile(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, _ := newTestService(t, client)

	_, err := svc.AnalyzeUpload(context.Background(), "google:1", Upload{FileName: "cv.txt", ContentType: "text/plain", Data: []byte("Go developer")})
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
	if client.calls() != 0 {
		t.Fatalf("model must not be called")
	}
}

func TestAnalyzeTextRejectsBlankText(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, _ := newTestService(t, client)

	if _, err := svc.AnalyzeText(context.Background(), "google:1", " \n ", ""); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestGetHidesOtherUsersAnalyses(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, _ := newTestService(t, client)
	ctx := context.Background()

	sub, err := svc.AnalyzeText(ctx, "google:1", "Go developer", "")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if _, err := svc.Get(ctx, "google:1", sub.Analysis.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := svc.Get(ctx, "google:2", sub.Analysis.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
}

type recordingStore struct {
	*local.Store
	mu      sync.Mutex
	puts    []string
	deletes []string
}

func (r *recordingStore) Put(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	r.mu.Lock()
	r.puts = append(r.puts, key)
	r.mu.Unlock()
	return r.Store.Put(ctx, key, contentType, body)
}

func (r *recordingStore) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	r.deletes = append(r.deletes, key)
	r.mu.Unlock()
	return r.Store.Delete(ctx, key)
}

func TestFailedUploadRunRemovesStoredFile(t *testing.T) {
	client := &fakeLLM{resp: "no json here"}
	svc, _ := newTestService(t, client)
	store := &recordingStore{Store: local.New(t.TempDir())}
	svc.Store = store

	if _, err := svc.AnalyzeUpload(context.Background(), "google:1", docxUpload(t, "Senior Go developer")); err == nil {
		t.Fatalf("expected failure")
	}
	if len(store.puts) != 1 || len(store.deletes) != 1 || store.puts[0] != store.deletes[0] {
		t.Fatalf("expected stored upload to be removed, puts=%v deletes=%v", store.puts, store.deletes)
	}
	if !strings.HasPrefix(store.puts[0], "resumes/") || !strings.HasSuffix(store.puts[0], "_cv.docx") {
		t.Fatalf("unexpected storage key %q", store.puts[0])
	}
}

func TestSuccessfulUploadKeepsStoredFile(t *testing.T) {
	client := &fakeLLM{resp: validStandaloneOutput}
	svc, _ := newTestService(t, client)
	store := &recordingStore{Store: local.New(t.TempDir())}
	svc.Store = store

	sub, err := svc.AnalyzeUpload(context.Background(), "google:1", docxUpload(t, "Senior Go developer"))
	if err != nil {
		t.Fatalf("AnalyzeUpload: %v", err)
	}
	if len(store.deletes) != 0 {
		t.Fatalf("successful run must keep its upload, deleted %v", store.deletes)
	}
	rc, err := store.Open(context.Background(), sub.Analysis.StorageKey)
	if err != nil {
		t.Fatalf("Open stored upload: %v", err)
	}
	_ = rc.Close()
}
