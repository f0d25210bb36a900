package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for pricing and verification.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PricingCacheHits       prometheus.Counter
	PricingCacheMisses     prometheus.Counter
	PricingRefreshFailures prometheus.Counter
	PricingRefreshSeconds  prometheus.Histogram
	PromotionsApplied      prometheus.Counter
	Verifications          *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PricingCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "resellerkit_pricing_cache_hits_total",
			Help: "Pricing table reads served from the in-memory cache",
		}),
		PricingCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "resellerkit_pricing_cache_misses_total",
			Help: "Pricing table reads that required a registrar refresh",
		}),
		PricingRefreshFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "resellerkit_pricing_refresh_failures_total",
			Help: "Registrar pricing refreshes that failed",
		}),
		PricingRefreshSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "resellerkit_pricing_refresh_seconds",
			Help:    "Duration of a full customer/reseller/promo table refresh",
			Buckets: prometheus.DefBuckets,
		}),
		PromotionsApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "resellerkit_promotions_applied_total",
			Help: "TLD price resolutions where a promotional price was applied",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resellerkit_registration_verifications_total",
			Help: "Registration outcome verifications by resulting status",
		}, []string{"status"}),
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.PricingCacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.PricingCacheMisses.Inc()
}

func (m *Metrics) ObserveRefresh(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PricingRefreshSeconds.Observe(d.Seconds())
	if err != nil {
		m.PricingRefreshFailures.Inc()
	}
}

func (m *Metrics) PromotionApplied() {
	if m == nil {
		return
	}
	m.PromotionsApplied.Inc()
}

func (m *Metrics) Verification(status string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(status).Inc()
}
