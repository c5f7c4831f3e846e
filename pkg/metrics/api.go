package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterRoutes 注册 /metrics
func (m *Metrics) RegisterRoutes(r gin.IRoutes, path string) {
	if path == "" {
		path = "/metrics"
	}
	r.GET(path, gin.WrapH(m.Handler()))
}
