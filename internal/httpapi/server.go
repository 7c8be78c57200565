// Package httpapi exposes the minimal health/ready/metrics surface
// spec §1 carves out as in-scope (the full REST/OpenAPI admin surface
// is an explicit Non-goal). Grounded in the teacher's
// internal/http/router.go + internal/http/handlers/health.go, trimmed
// to three routes.
package httpapi

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/duty-duck/uptimeengine/internal/observability"
)

type Server struct {
	engine *gin.Engine
}

// New builds the gin engine. shuttingDown is polled by /readyz so a
// draining process stops advertising readiness before its workers
// finish their current batch (spec §5's shutdown grace period).
func New(log *slog.Logger, pool *pgxpool.Pool, prom *observability.Prom, shuttingDown func() bool) *Server {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("uptimeengine-platform"))
	r.Use(requestID())
	r.Use(requestLogger(log))
	r.Use(securityHeaders())
	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if shuttingDown != nil && shuttingDown() {
			c.JSON(503, gin.H{"status": "shutting_down"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			c.JSON(503, gin.H{"status": "db_unreachable"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{engine: r}
}

func (s *Server) Handler() *gin.Engine { return s.engine }
