// Package metrics exposes Prometheus collectors for the token lifecycle.
// All methods are safe on a nil *Collectors, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophauth"

// Result labels.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultRevoked  = "revoked"
	ResultExpired  = "expired"
	ResultInvalid  = "invalid"
	ResultError    = "error"
	ResultValid    = "valid"
	ResultAbsent   = "absent"
)

// Token kinds.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

type Collectors struct {
	registry *prometheus.Registry

	tokensIssued    *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logins          *prometheus.CounterVec
	authenticated   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors, plus the Go and process collectors, on a
// dedicated registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collectors{
		registry: reg,
		tokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued, by kind.",
		}, []string{"kind"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts, by result.",
		}, []string{"result"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		authenticated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authenticated_requests_total",
			Help:      "Requests seen by the authenticator, by outcome.",
		}, []string{"result"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

func (c *Collectors) TokenIssued(kind string) {
	if c == nil {
		return
	}
	c.tokensIssued.WithLabelValues(kind).Inc()
}

func (c *Collectors) Refresh(result string) {
	if c == nil {
		return
	}
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collectors) Login(result string) {
	if c == nil {
		return
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collectors) Authenticated(result string) {
	if c == nil {
		return
	}
	c.authenticated.WithLabelValues(result).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (c *Collectors) ObserveRequest(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.requestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the exposition format for this registry.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
