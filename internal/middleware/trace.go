package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/id"
)

// TraceHeader carries the request correlation id.
const TraceHeader = "X-Trace-ID"

const traceKey = "trace_id"

// Trace tags every request with a correlation id. An inbound X-Trace-ID is
// propagated so an upstream proxy or host page can follow its requests;
// otherwise a fresh ULID is minted. The id is echoed on the response and
// the request outcome is logged with it at debug level.
func Trace(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = id.NewTrace()
		}
		c.Set(traceKey, traceID)
		c.Header(TraceHeader, traceID)

		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("trace", traceID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// TraceID returns the correlation id tagged on the request, or an empty
// string when the trace middleware is not installed.
func TraceID(c *gin.Context) string {
	return c.GetString(traceKey)
}
