// Package metrics exposes Prometheus counters for the pipeline: provider
// traffic and credit spend, circuit-breaker opens, discovery yield and
// walker activity. The collector owns its registry so independent pipeline
// instances never interfere.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline metrics. All methods are safe for concurrent
// use and a nil *Collector is a no-op, so wiring it is always optional.
type Collector struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	creditsUsed     *prometheus.CounterVec
	breakerOpens    *prometheus.CounterVec
	urlsDiscovered  *prometheus.CounterVec
	pagesWalked     prometheus.Counter
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Total provider requests by outcome.",
	}, []string{"provider", "outcome"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "harvest",
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for provider requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	creditsUsed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "provider",
		Name:      "credits_used_total",
		Help:      "Paid API credits consumed.",
	}, []string{"provider"})

	breakerOpens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "provider",
		Name:      "breaker_open_total",
		Help:      "Times a provider circuit breaker opened.",
	}, []string{"provider"})

	urlsDiscovered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "discovery",
		Name:      "urls_total",
		Help:      "Candidate URLs discovered, by winning method.",
	}, []string{"method"})

	pagesWalked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "discovery",
		Name:      "pages_walked_total",
		Help:      "Listing pages fetched by the pagination walker.",
	})

	for _, collector := range []prometheus.Collector{
		requestTotal, requestDuration, creditsUsed, breakerOpens, urlsDiscovered, pagesWalked,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		creditsUsed:     creditsUsed,
		breakerOpens:    breakerOpens,
		urlsDiscovered:  urlsDiscovered,
		pagesWalked:     pagesWalked,
	}, nil
}

// Handler returns an HTTP handler exposing the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ProviderRequest records one provider call and its latency.
func (c *Collector) ProviderRequest(provider, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestTotal.WithLabelValues(provider, outcome).Inc()
	c.requestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// CreditsUsed records paid credits consumed.
func (c *Collector) CreditsUsed(provider string, credits int) {
	if c == nil {
		return
	}
	c.creditsUsed.WithLabelValues(provider).Add(float64(credits))
}

// BreakerOpened records a circuit breaker opening.
func (c *Collector) BreakerOpened(provider string) {
	if c == nil {
		return
	}
	c.breakerOpens.WithLabelValues(provider).Inc()
}

// URLsDiscovered records discovery yield for the winning method.
func (c *Collector) URLsDiscovered(method string, count int) {
	if c == nil {
		return
	}
	c.urlsDiscovered.WithLabelValues(method).Add(float64(count))
}

// PagesWalked records listing pages fetched during a walk.
func (c *Collector) PagesWalked(count int) {
	if c == nil {
		return
	}
	c.pagesWalked.Add(float64(count))
}
