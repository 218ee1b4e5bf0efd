package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts composed quotes by source (session, stateless, contract).
	QuotesTotal *prometheus.CounterVec
	// QuoteWarningsTotal counts quotes that carried at least one warning.
	QuoteWarningsTotal *prometheus.CounterVec
	// HandsetCapClampsTotal counts handset writes clamped by the limited-model cap.
	HandsetCapClampsTotal prometheus.Counter
	// ContractSubmissionsTotal counts contract submissions by kind and result.
	ContractSubmissionsTotal *prometheus.CounterVec
	// OTPRequestsTotal counts OTP sends and checks by outcome.
	OTPRequestsTotal *prometheus.CounterVec
	// UpstreamRequestLatency records third-party lookup latency in milliseconds.
	UpstreamRequestLatency *prometheus.HistogramVec
	// WebhookDeliveriesTotal tracks contract webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
	// ArchiveUploadsTotal counts contract archive uploads by outcome.
	ArchiveUploadsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of composed quotes by source.",
		}, []string{"source"})
		QuoteWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_warnings_total",
			Help:      "Count of quotes returned with warnings.",
		}, []string{"source"})
		HandsetCapClampsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pbx_handset_cap_clamps_total",
			Help:      "Number of handset quantity writes clamped to the users + queues cap.",
		})
		ContractSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_submissions_total",
			Help:      "Count of contract submissions by kind and result.",
		}, []string{"kind", "result"})
		OTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_requests_total",
			Help:      "Count of OTP send and check operations by outcome.",
		}, []string{"operation", "result"})
		UpstreamRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Latency for third-party lookups in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"upstream", "result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of contract webhook delivery outcomes.",
		}, []string{"result"})
		WebhookAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		ArchiveUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_archive_uploads_total",
			Help:      "Count of contract archive uploads by outcome.",
		}, []string{"result"})

		QuotesTotal = register(reg, QuotesTotal)
		QuoteWarningsTotal = register(reg, QuoteWarningsTotal)
		HandsetCapClampsTotal = register(reg, HandsetCapClampsTotal)
		ContractSubmissionsTotal = register(reg, ContractSubmissionsTotal)
		OTPRequestsTotal = register(reg, OTPRequestsTotal)
		UpstreamRequestLatency = register(reg, UpstreamRequestLatency)
		WebhookDeliveriesTotal = register(reg, WebhookDeliveriesTotal)
		WebhookAttemptLatency = register(reg, WebhookAttemptLatency)
		ArchiveUploadsTotal = register(reg, ArchiveUploadsTotal)
	})
}

// ObserveQuote records a composed quote. It is a no-op until domain metrics are registered.
func ObserveQuote(source string, warnings int) {
	if QuotesTotal == nil {
		return
	}
	QuotesTotal.WithLabelValues(source).Inc()
	if warnings > 0 && QuoteWarningsTotal != nil {
		QuoteWarningsTotal.WithLabelValues(source).Inc()
	}
}

// ObserveHandsetClamp records a clamped handset write.
func ObserveHandsetClamp() {
	if HandsetCapClampsTotal != nil {
		HandsetCapClampsTotal.Inc()
	}
}

// ObserveContract records a contract submission outcome.
func ObserveContract(kind, result string) {
	if ContractSubmissionsTotal != nil {
		ContractSubmissionsTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveOTP records an OTP send or check outcome.
func ObserveOTP(operation, result string) {
	if OTPRequestsTotal != nil {
		OTPRequestsTotal.WithLabelValues(operation, result).Inc()
	}
}

// ObserveUpstream records the latency of a third-party lookup.
func ObserveUpstream(upstream, result string, ms float64) {
	if UpstreamRequestLatency != nil {
		UpstreamRequestLatency.WithLabelValues(upstream, result).Observe(ms)
	}
}

// ObserveArchive records a contract archive upload outcome.
func ObserveArchive(result string) {
	if ArchiveUploadsTotal != nil {
		ArchiveUploadsTotal.WithLabelValues(result).Inc()
	}
}
