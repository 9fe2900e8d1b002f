package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resuradar/internal/analyses"
	googleauth "resuradar/internal/auth"
	"resuradar/internal/health"
	"resuradar/internal/payments"
	"resuradar/internal/shared/config"
	"resuradar/internal/shared/crypto/envelope"
	"resuradar/internal/shared/metrics"
	"resuradar/internal/shared/server/middleware"
	"resuradar/internal/shared/server/respond"
	"resuradar/internal/usage"
	"resuradar/internal/users"
)

// Rate limit groups for résumé routes.
const (
	RateGroupAnalyze = "ANALYZE"
	RateGroupRead    = "READ"
)

// DefaultRateRules bounds analysis submissions tighter than history reads.
var DefaultRateRules = map[string]middleware.RateLimitRule{
	RateGroupAnalyze: {Rate: 0.2, Burst: 3},
	RateGroupRead:    {Rate: 5, Burst: 20},
}

// RouterDeps carries the handlers and cross-cutting pieces the router mounts.
type RouterDeps struct {
	Config   config.Config
	Cipher   *envelope.Cipher
	Verifier middleware.TokenVerifier
	Health   *health.Service

	GoogleAuth      *googleauth.GoogleService
	UserHandler     *users.Handler
	UsageHandler    *usage.Handler
	AnalysisHandler *analyses.Handler
	PaymentHandler  *payments.Handler

	RateRules   map[string]middleware.RateLimitRule
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Envelope(deps.Cipher),
		middleware.Recovery(),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(deps.Verifier))
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(protected)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(protected)
		if deps.Config.IsDevLike() {
			deps.UsageHandler.RegisterDevRoutes(protected.Group("/dev"))
		}
	}
	if deps.PaymentHandler != nil {
		deps.PaymentHandler.RegisterRoutes(protected)
	}
	if deps.AnalysisHandler != nil {
		rules := deps.RateRules
		if rules == nil {
			rules = DefaultRateRules
		}
		resumes := protected.Group("")
		resumes.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: RateGroupAnalyze,
			GroupFor:     resumeRateGroup,
			Limiter:      deps.RateLimiter,
		}))
		deps.AnalysisHandler.RegisterRoutes(resumes)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})
	return r
}

func resumeRateGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet {
		return RateGroupRead
	}
	return RateGroupAnalyze
}

// Addr normalizes the listen address.
func Addr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
