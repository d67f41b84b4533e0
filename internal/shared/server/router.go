package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/riverojonathas/FDE-sub000/internal/corrections"
	"github.com/riverojonathas/FDE-sub000/internal/services/health"
	"github.com/riverojonathas/FDE-sub000/internal/shared/config"
	"github.com/riverojonathas/FDE-sub000/internal/shared/metrics"
	"github.com/riverojonathas/FDE-sub000/internal/shared/server/middleware"
	"github.com/riverojonathas/FDE-sub000/internal/shared/server/respond"
)

const statusPollGroup = "STATUS_POLL"

// RouterDeps carries the handlers and services the router wires up.
type RouterDeps struct {
	Config             config.Config
	CorrectionsHandler *corrections.Handler
	HealthService      *health.Service
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
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				statusPollGroup: {Rate: 5, Burst: 20},
			},
			GroupFor: statusPollGroupFor,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.HealthService.Status(c.Request.Context()))
	})
	if deps.CorrectionsHandler != nil {
		deps.CorrectionsHandler.RegisterRoutes(api)
	}

	return r
}

// statusPollGroupFor throttles correction status polling only; everything else
// passes unlimited.
func statusPollGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodGet {
		return ""
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if strings.HasPrefix(path, "/api/v1/corrections/") {
		return statusPollGroup
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
