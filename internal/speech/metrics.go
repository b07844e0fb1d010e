package speech

import "github.com/prometheus/client_golang/prometheus"

const namespace = "readaloud"

// Metrics holds the synthesis collectors. A nil *Metrics records nothing.
type Metrics struct {
	cacheLookups      *prometheus.CounterVec
	synthesisDuration prometheus.Histogram
	providerCalls     *prometheus.CounterVec
	probeFailures     prometheus.Counter
	timingRescales    prometheus.Counter
	flightShared      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Audio cache lookups by result",
			},
			[]string{"result"}, // hit, miss, peer_hit
		),
		synthesisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Wall time of a full uncached synthesis run",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Speech provider calls by status",
			},
			[]string{"status"}, // success, error
		),
		probeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_failures_total",
				Help:      "Audio segments whose duration could not be measured",
			},
		),
		timingRescales: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timing_rescales_total",
				Help:      "Synthesis runs whose timings were rescaled to the measured stream length",
			},
		),
		flightShared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "singleflight_shared_total",
				Help:      "Requests that reused a synthesis already in flight",
			},
		),
	}

	reg.MustRegister(
		m.cacheLookups,
		m.synthesisDuration,
		m.providerCalls,
		m.probeFailures,
		m.timingRescales,
		m.flightShared,
	)
	return m
}

func (m *Metrics) lookup(result string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) synthesized(seconds float64) {
	if m != nil {
		m.synthesisDuration.Observe(seconds)
	}
}

func (m *Metrics) providerCall(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerCalls.WithLabelValues(status).Inc()
}

func (m *Metrics) probeFailed() {
	if m != nil {
		m.probeFailures.Inc()
	}
}

func (m *Metrics) rescaled() {
	if m != nil {
		m.timingRescales.Inc()
	}
}

func (m *Metrics) shared() {
	if m != nil {
		m.flightShared.Inc()
	}
}
