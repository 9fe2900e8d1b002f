package analyses

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resuradar/internal/shared/server/middleware"
	"resuradar/internal/shared/server/respond"
	"resuradar/internal/usage"
)

const (
	uploadField       = "resume"
	jobField          = "jobDescription"
	maxJobDescription = 20000
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches résumé routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes/upload", h.uploadResume)
	rg.POST("/resumes/match", h.matchResume)
	rg.POST("/resumes/analyze", h.analyzeText)
	rg.GET("/resumes", h.listResumes)
	rg.GET("/resumes/:id", h.getResume)
}

type analyzeTextRequest struct {
	Text           string `json:"text" binding:"required"`
	JobDescription string `json:"jobDescription" binding:"omitempty,max=20000"`
}

func (h *Handler) uploadResume(c *gin.Context) {
	upload, ok := readUpload(c)
	if !ok {
		return
	}
	c.Set("analysisMode", string(ModeStandalone))
	sub, err := h.Svc.AnalyzeUpload(requestContext(c), middleware.UserIDFromContext(c), upload)
	h.writeSubmission(c, sub, err)
}

func (h *Handler) matchResume(c *gin.Context) {
	upload, ok := readUpload(c)
	if !ok {
		return
	}
	jobText := strings.TrimSpace(c.PostForm(jobField))
	if jobText == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Job description is required", []map[string]string{
			{"field": jobField, "issue": "required"},
		})
		return
	}
	if len(jobText) > maxJobDescription {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Job description is too long", []map[string]string{
			{"field": jobField, "issue": "max_length"},
		})
		return
	}
	c.Set("analysisMode", string(ModeMatch))
	sub, err := h.Svc.AnalyzeUploadMatch(requestContext(c), middleware.UserIDFromContext(c), upload, jobText)
	h.writeSubmission(c, sub, err)
}

func (h *Handler) analyzeText(c *gin.Context) {
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", nil)
		return
	}
	c.Set("analysisMode", string(ModeForJob(strings.TrimSpace(req.JobDescription))))
	sub, err := h.Svc.AnalyzeText(requestContext(c), middleware.UserIDFromContext(c), req.Text, req.JobDescription)
	h.writeSubmission(c, sub, err)
}

func (h *Handler) writeSubmission(c *gin.Context, sub Submission, err error) {
	if err != nil {
		writeAnalysisError(c, err)
		return
	}
	c.Set("analysisId", sub.Analysis.ID)

	data := presentAnalysis(sub.Analysis, sub.Premium)
	if sub.Usage != nil {
		data["usage"] = gin.H{
			"limit":     sub.Usage.Limit,
			"used":      sub.Usage.Used,
			"remaining": sub.Usage.Remaining(),
			"resetsAt":  sub.Usage.ResetsAt,
		}
	}
	respond.OK(c, gin.H{
		"success": true,
		"message": "Resume analyzed successfully",
		"data":    data,
	})
}

func (h *Handler) getResume(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysis, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	premium, err := h.Svc.IsPremium(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.OK(c, gin.H{"success": true, "data": presentAnalysis(analysis, premium)})
}

func (h *Handler) listResumes(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"id":            a.ID,
			"type":          a.Type,
			"filename":      a.FileName,
			"score":         a.Score,
			"detectedField": a.DetectedField,
			"createdAt":     a.CreatedAt,
		}
		if summary := resultSummary(a.Result); summary != "" {
			item["summary"] = summary
		}
		resp = append(resp, item)
	}
	respond.OK(c, resp)
}

// presentAnalysis shapes a stored analysis for the caller. Premium feedback
// is withheld from free users.
func presentAnalysis(a Analysis, premium bool) gin.H {
	data := gin.H{
		"id":            a.ID,
		"type":          a.Type,
		"filename":      a.FileName,
		"detectedField": a.DetectedField,
		"createdAt":     a.CreatedAt,
	}
	if a.Type == TypeJobMatch {
		data["jobDescription"] = a.JobDescription
	}
	for k, v := range a.Result {
		if k == "premium_feedback" && !premium {
			continue
		}
		data[k] = v
	}
	if !premium {
		data["premiumLocked"] = true
	}
	return data
}

func resultSummary(result map[string]any) string {
	free, ok := result["free_feedback"].(map[string]any)
	if !ok {
		return ""
	}
	summary, _ := free["summary"].(string)
	return summary
}

func readUpload(c *gin.Context) (Upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+1<<20)
	fh, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "Resume must be 10MB or smaller", nil)
			return Upload{}, false
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "resume file is required", []map[string]string{
			{"field": uploadField, "issue": "required"},
		})
		return Upload{}, false
	}
	if fh.Size > MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "Resume must be 10MB or smaller", nil)
		return Upload{}, false
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read resume file", nil)
		return Upload{}, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read resume file", nil)
		return Upload{}, false
	}
	return Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

// writeAnalysisError maps orchestration failures onto HTTP responses.
func writeAnalysisError(c *gin.Context, err error) {
	var (
		transportErr  *TransportError
		extractionErr *ExtractionError
		invalidErr    *ValidationError
		stageErr      *StageError
	)
	switch {
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, "limit_reached", "You've reached your free analysis limit. Upgrade to premium to continue.", []map[string]string{
			{"field": "usage", "issue": "limit_reached"},
		})
	case errors.Is(err, ErrJobDescriptionRequired):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Job description is required", []map[string]string{
			{"field": jobField, "issue": "required"},
		})
	case errors.Is(err, ErrUnsupportedFile):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file", "Only PDF or DOCX resumes are supported", nil)
	case errors.Is(err, ErrFileTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "Resume must be 10MB or smaller", nil)
	case errors.Is(err, ErrUnreadableFile), errors.Is(err, ErrEmptyText):
		respond.Error(c, http.StatusUnprocessableEntity, "unreadable_file", "Could not read any text from the resume", nil)
	case errors.As(err, &transportErr):
		respond.Error(c, http.StatusBadGateway, "model_unavailable", "The analysis model is unavailable. Please try again.", nil)
	case errors.As(err, &invalidErr):
		respond.Error(c, http.StatusBadGateway, "analysis_failed", "The analysis could not be completed", []map[string]string{
			{"stage": string(StageValidate), "field": invalidErr.Field, "issue": invalidErr.Reason},
		})
	case errors.As(err, &extractionErr), errors.As(err, &stageErr):
		stage := string(StageExtract)
		if stageErr != nil {
			stage = string(stageErr.Stage)
		}
		respond.Error(c, http.StatusBadGateway, "analysis_failed", "The analysis could not be completed", []map[string]string{
			{"stage": stage},
		})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to analyze resume", nil)
	}
}
