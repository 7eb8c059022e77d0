package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"digest-backend/internal/ingest"
	"digest-backend/internal/scheduler"
	"digest-backend/internal/shared/config"
	"digest-backend/internal/shared/metrics"
	"digest-backend/internal/shared/server/middleware"
	"digest-backend/internal/source/drive"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupPolling = "POLLING"
	rateGroupHeavy   = "HEAVY"
)

// RouterDeps holds handlers for router registration. Nil handlers are skipped.
type RouterDeps struct {
	Config  config.Config
	Ingest  *ingest.Handler
	Jobs    *scheduler.Handler
	Drive   *drive.Authorizer
	Health  *HealthHandler
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	health := deps.Health
	if health == nil {
		health = &HealthHandler{}
	}
	r.GET("/health", health.status)
	r.GET("/metrics", metrics.Handler())

	limit := middleware.RateLimit(rateLimitConfig(deps.Config, deps.Limiter))

	api := r.Group("/api/v1")
	api.GET("/health", health.status)

	if deps.Ingest != nil {
		tenantScoped := api.Group("", middleware.Tenant(), limit)
		deps.Ingest.RegisterRoutes(tenantScoped)
	}

	admin := api.Group("", limit)
	if deps.Jobs != nil {
		deps.Jobs.RegisterRoutes(admin)
	}
	if deps.Drive != nil {
		deps.Drive.RegisterRoutes(admin)
	}

	return r
}

func rateLimitConfig(cfg config.Config, limiter *middleware.RateLimiter) middleware.RateLimitConfig {
	rps := cfg.RateLimitRPS
	burst := cfg.RateLimitBurst
	heavyBurst := burst / 2
	if heavyBurst < 1 {
		heavyBurst = 1
	}
	return middleware.RateLimitConfig{
		DefaultGroup: rateGroupDefault,
		Limiter:      limiter,
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.Request.Method == http.MethodGet:
				return rateGroupPolling
			case c.FullPath() == "/api/v1/scan" || c.FullPath() == "/api/v1/upload" || c.FullPath() == "/api/v1/jobs/scan-now":
				return rateGroupHeavy
			default:
				return rateGroupDefault
			}
		},
		Rules: map[string]middleware.RateLimitRule{
			rateGroupDefault: {Rate: rps, Burst: burst},
			rateGroupPolling: {Rate: rps * 5, Burst: burst * 2},
			rateGroupHeavy:   {Rate: rps / 2, Burst: heavyBurst},
		},
	}
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
