package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resuradar/internal/shared/server/middleware"
	"resuradar/internal/shared/server/respond"
	"resuradar/internal/shared/telemetry"
)

// ResumeCounter counts stored analyses for a user.
type ResumeCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

type Handler struct {
	Svc     *Service
	Resumes ResumeCounter
}

func NewHandler(svc *Service, resumes ResumeCounter) *Handler {
	return &Handler{Svc: svc, Resumes: resumes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/user/me", h.me)
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Server error", nil)
		return
	}

	resumeCount := 0
	if h.Resumes != nil {
		n, err := h.Resumes.CountByUser(c.Request.Context(), userID)
		if err != nil {
			telemetry.Warn("user.resume_count_failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else {
			resumeCount = n
		}
	}

	respond.OK(c, gin.H{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"isPremium":   user.IsPremium,
		"picture":     user.Picture,
		"joinedDate":  user.JoinedAt,
		"resumeCount": resumeCount,
	})
}
