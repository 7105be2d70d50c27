package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelPath       = "path"
	LabelMode       = "mode"
	LabelOutcome    = "outcome"
	LabelSuccess    = "success"
	LabelPermission = "permission"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceapi_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoiceapi_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// AuthenticationTotal counts resolutions by mode and outcome. The outcome
	// is "resolved" or a rejection reason code.
	AuthenticationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceapi_authentication_total",
			Help: "Total number of authentication resolutions",
		},
		[]string{LabelMode, LabelOutcome},
	)

	// AuthorizationTotal counts authorization checks by permission and outcome
	AuthorizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceapi_authorization_total",
			Help: "Total number of authorization checks",
		},
		[]string{LabelPermission, LabelSuccess},
	)

	// KeyRefreshTotal counts signing key refresh attempts
	KeyRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceapi_jwks_refresh_total",
			Help: "Total number of signing key refresh attempts",
		},
		[]string{LabelSuccess},
	)

	// KeysLoaded reports the size of the current signing key snapshot
	KeysLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoiceapi_jwks_keys",
			Help: "Number of signing keys in the current snapshot",
		},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthentication records the outcome of one resolution
func (c *Collector) RecordAuthentication(mode, outcome string) {
	AuthenticationTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordAuthorization records an authorization check
func (c *Collector) RecordAuthorization(permission string, success bool) {
	AuthorizationTotal.WithLabelValues(permission, strconv.FormatBool(success)).Inc()
}

// RecordKeyRefresh records a signing key refresh and the resulting key count
func (c *Collector) RecordKeyRefresh(success bool, keys int) {
	KeyRefreshTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success {
		KeysLoaded.Set(float64(keys))
	}
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
