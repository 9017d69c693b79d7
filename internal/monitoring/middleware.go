package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Get response data
		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())

		// Record metrics
		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
	}
}

// Timer measures one lifecycle operation. Stop records at most once even
// when both an error path and a shared cleanup path call it.
type Timer struct {
	start   time.Time
	metrics *Metrics
	app     string
	op      string
	once    sync.Once
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, app, operation string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		app:     app,
		op:      operation,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) {
	t.once.Do(func() {
		duration := time.Since(t.start)
		t.metrics.RecordLifecycle(t.app, t.op, status, duration)
	})
}
