package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTrigger(t *testing.T) {
	m := NewMetrics()
	m.RecordTrigger("shake", "accepted")
	m.RecordTrigger("shake", "cooldown")
	m.RecordTrigger("shake", "cooldown")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggersTotal.WithLabelValues("shake", "accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.triggersDropped.WithLabelValues("shake", "cooldown")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTrigger("manual", "accepted")
		m.RecordDispatch("sms", "sent")
		m.SetSafeMode(true)
		m.Reset()
	})
	assert.Nil(t, m.Registry())
}

func TestMiddlewareAndEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(MonitorMiddleware(m))
	r.GET("/ping/:id", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	m.RegisterRoutes(r, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ping/:id", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "safecircle_http_requests_total")
}
