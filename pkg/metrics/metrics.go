package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safecircle"

// Metrics 指标管理器。nil 接收者上的记录方法都是空操作
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 告警链路
	triggersTotal     *prometheus.CounterVec
	triggersDropped   *prometheus.CounterVec
	dispatchTotal     *prometheus.CounterVec
	fanOutDuration    *prometheus.HistogramVec
	locationFixTotal  *prometheus.CounterVec
	geofenceEntries   *prometheus.CounterVec
	alertLogSize      prometheus.Gauge
	safeModeArmed     prometheus.Gauge
	sessionsConnected *prometheus.GaugeVec
	rateLimited       *prometheus.CounterVec
}

// NewMetrics 在独立的 Registry 上注册全部指标，同时带上 Go 运行时与进程指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		triggersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Emergency triggers seen by the gate",
		}, []string{"source", "decision"}),

		triggersDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Emergency triggers dropped by the gate",
		}, []string{"source", "reason"}),

		dispatchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Per-contact message intents by channel and outcome",
		}, []string{"channel", "outcome"}),

		fanOutDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_duration_seconds",
			Help:      "Time from first to last issued intent of one alert",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),

		locationFixTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_fix_total",
			Help:      "Location acquisitions by result",
		}, []string{"result"}),

		geofenceEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geofence_entries_total",
			Help:      "Geofence entry transitions by fence kind",
		}, []string{"kind"}),

		alertLogSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_log_entries",
			Help:      "Entries currently held in the alert log",
		}),

		safeModeArmed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "safe_mode_armed",
			Help:      "1 when Safe Mode is on",
		}),

		sessionsConnected: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Connected SSE and device channel clients",
		}, []string{"transport"}),

		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_total",
			Help:      "Requests seen by the rate limiter",
		}, []string{"route", "decision"}),
	}
}

// Registry 用于 /metrics 输出
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTrigger decision: accepted / disarmed / cooldown / invalid
func (m *Metrics) RecordTrigger(source, decision string) {
	if m == nil {
		return
	}
	m.triggersTotal.WithLabelValues(source, decision).Inc()
	if decision != "accepted" {
		m.triggersDropped.WithLabelValues(source, decision).Inc()
	}
}

func (m *Metrics) RecordDispatch(channel, outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) RecordFanOut(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.fanOutDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordLocationFix result: ok / unavailable
func (m *Metrics) RecordLocationFix(result string) {
	if m == nil {
		return
	}
	m.locationFixTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordGeofenceEntry(kind string) {
	if m == nil {
		return
	}
	m.geofenceEntries.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetAlertLogSize(n int) {
	if m == nil {
		return
	}
	m.alertLogSize.Set(float64(n))
}

func (m *Metrics) SetSafeMode(armed bool) {
	if m == nil {
		return
	}
	if armed {
		m.safeModeArmed.Set(1)
	} else {
		m.safeModeArmed.Set(0)
	}
}

// AddClients transport: sse / device
func (m *Metrics) AddClients(transport string, delta int) {
	if m == nil {
		return
	}
	m.sessionsConnected.WithLabelValues(transport).Add(float64(delta))
}

// RecordRateLimit decision: allow / deny
func (m *Metrics) RecordRateLimit(route, decision string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route, decision).Inc()
}

// Reset 重置业务指标，会话重置时调用
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.triggersTotal.Reset()
	m.triggersDropped.Reset()
	m.dispatchTotal.Reset()
	m.fanOutDuration.Reset()
	m.locationFixTotal.Reset()
	m.geofenceEntries.Reset()
	m.alertLogSize.Set(0)
}
