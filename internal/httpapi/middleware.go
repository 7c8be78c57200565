package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// requestID and securityHeaders are adapted from the teacher's
// internal/http/middlewares, trimmed to the two that still apply to a
// health/ready/metrics-only surface (spec §12's Non-goal on the full
// REST middleware stack).
func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Set("request_id", id)
		ctx.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("X-Content-Type-Options", "nosniff")
		ctx.Header("X-Frame-Options", "DENY")
		ctx.Header("Referrer-Policy", "no-referrer")
		ctx.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path
		}
		method := ctx.Request.Method

		ctx.Next()

		reqID, _ := ctx.Get("request_id")
		log.InfoContext(ctx.Request.Context(), "http_request",
			"method", method, "route", route, "status", ctx.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(), "request_id", reqID)
	}
}
