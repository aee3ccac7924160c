package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
)

func newRouter(buf *bytes.Buffer) (*gin.Engine, *Middleware, *string) {
	gin.SetMode(gin.TestMode)
	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})
	m := NewMiddleware(logger, nil)

	var seen string
	r := gin.New()
	r.Use(m.Handler())
	r.GET("/ok", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		log.FromContext(c.Request.Context()).InfoContext(c.Request.Context(), "inside handler")
		c.Status(http.StatusOK)
	})
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r, m, &seen
}

func TestHandlerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	r, m, seen := newRouter(&buf)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	id := rr.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, *seen)
	assert.Contains(t, buf.String(), "request_id="+id)
	assert.Contains(t, buf.String(), "HTTP request completed")
	assert.Equal(t, int64(1), m.GetMetrics().TotalRequests)
}

func TestHandlerKeepsValidIncomingID(t *testing.T) {
	var buf bytes.Buffer
	r, _, seen := newRouter(&buf)
	incoming := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, incoming)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, incoming, rr.Header().Get(HeaderRequestID))
	assert.Equal(t, incoming, *seen)

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", rr.Header().Get(HeaderRequestID))
}

func TestHandlerLogsClientErrorsAsWarnings(t *testing.T) {
	var buf bytes.Buffer
	r, _, _ := newRouter(&buf)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status_code=404")
}
