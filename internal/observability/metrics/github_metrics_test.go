package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGitHubMetrics(t *testing.T) {
	m := newGitHubMetrics(prometheus.NewRegistry())

	m.SetRateLimitRemaining(42)
	m.IncRequest(http.StatusUnauthorized)
	m.IncRequest(http.StatusOK)
	m.IncRequest(0)
	m.IncTokenRefresh(true)

	assert.Equal(t, float64(42), testutil.ToFloat64(m.rateLimitRemaining))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("4xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tokenRefreshes.WithLabelValues("success")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/sales/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sales/1", nil))

	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/sales/:id", http.MethodGet, "404"))
	assert.Equal(t, float64(1), got)
}
