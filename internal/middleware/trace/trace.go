// Package trace tags each request with an id, puts a request-scoped logger on
// its context and writes the access log.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// HeaderRequestID carries the id in and out.
	HeaderRequestID = "X-Request-ID"
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger

	totalRequests int64
	lastDuration  int64 // microseconds
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests        int64
	LastResponseTimeUsec int64
}

// NewMiddleware creates a new trace middleware. A nil extractIP falls back to
// the peer address.
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.ForComponent(log.ComponentHTTP)
	}
	if extractIP == nil {
		extractIP = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &Middleware{extractIP: extractIP, logger: logger}
}

// Handler returns the gin middleware.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)
		c.Set(string(RequestIDKey), requestID)

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		reqLogger := m.logger.With(log.FieldRequestID, requestID)
		ctx = log.NewContext(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)
		sl := log.NewStructuredLogger(reqLogger)

		req := log.HTTPRequest{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Query:     c.Request.URL.RawQuery,
			UserAgent: c.Request.UserAgent(),
			ClientIP:  m.extractIP(c.Request),
		}
		sl.LogHTTPStart(ctx, req)
		atomic.AddInt64(&m.totalRequests, 1)

		c.Next()

		duration := time.Since(start)
		atomic.StoreInt64(&m.lastDuration, duration.Microseconds())
		sl.LogHTTPEnd(ctx, req, c.Writer.Status(), duration.Milliseconds())
	}
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:        atomic.LoadInt64(&m.totalRequests),
		LastResponseTimeUsec: atomic.LoadInt64(&m.lastDuration),
	}
}
