package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dqsurvey/internal/sections"
	"dqsurvey/internal/services/health"
	"dqsurvey/internal/shared/config"
	"dqsurvey/internal/shared/metrics"
	"dqsurvey/internal/shared/server/middleware"
	"dqsurvey/internal/shared/server/respond"
)

const submitRateGroup = "SUBMIT"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	SectionsHandler *sections.Handler
	Health          *health.Service
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	rules := map[string]middleware.RateLimitRule{}
	if perMinute := deps.Config.SubmitRatePerMinute; perMinute > 0 {
		rules[submitRateGroup] = middleware.RateLimitRule{Rate: float64(perMinute) / 60, Burst: perMinute}
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rules,
			GroupFor: submitGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	api.GET("/metrics", metrics.Handler())
	if deps.SectionsHandler != nil {
		deps.SectionsHandler.RegisterRoutes(api)
	}

	return r
}

func submitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost {
		return submitRateGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
