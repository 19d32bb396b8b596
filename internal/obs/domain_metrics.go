package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts quote computations by module, kind and outcome.
	QuotesTotal *prometheus.CounterVec
	// DiscountClampedTotal counts bills whose requested discount exceeded the bill total.
	DiscountClampedTotal *prometheus.CounterVec
	// ChargeCacheTotal counts charge master cache lookups by result.
	ChargeCacheTotal *prometheus.CounterVec
	// BillNetAmount records computed bill net amounts in major currency units.
	BillNetAmount *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers billing Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of line, bill and payment quotes by outcome.",
		}, []string{"module", "kind", "result"})
		DiscountClampedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_clamped_total",
			Help:      "Count of bills where the bill discount was clamped to the pre-discount total.",
		}, []string{"module"})
		ChargeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_cache_total",
			Help:      "Count of charge master cache lookups by result.",
		}, []string{"result"})
		BillNetAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bill_net_amount",
			Help:      "Distribution of computed bill net amounts in major units.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		}, []string{"module"})

		mustRegisterCollector(reg, QuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuotesTotal = v
			}
		})
		mustRegisterCollector(reg, DiscountClampedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DiscountClampedTotal = v
			}
		})
		mustRegisterCollector(reg, ChargeCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ChargeCacheTotal = v
			}
		})
		mustRegisterCollector(reg, BillNetAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				BillNetAmount = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
