package prometheusmetrics

import (
	"strconv"
	"time"

	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/config"
	"github.com/monsterutils/adrefresh/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registry *prometheus.Registry

	adRequests     *prometheus.CounterVec
	adLoads        *prometheus.CounterVec
	adLoadTimer    *prometheus.HistogramVec
	staleResponses *prometheus.CounterVec
	adEvents       *prometheus.CounterVec
	adRevenue      *prometheus.CounterVec
	bindings       *prometheus.CounterVec

	adapterInit      *prometheus.CounterVec
	adapterInitTimer *prometheus.HistogramVec
}

const (
	adapterLabel  = "adapter"
	currencyLabel = "currency"
	eventLabel    = "event"
	fieldLabel    = "field"
	slotLabel     = "slot"
	stateLabel    = "state"
	statusLabel   = "status"
	successLabel  = "success"
)

// NewMetrics initializes a new Prometheus metrics instance with preloaded label values.
func NewMetrics(cfg config.PrometheusMetrics, slots []string) *Metrics {
	loadTimeBuckets := []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 2, 5, 10}
	initTimeBuckets := []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

	metrics := Metrics{}
	metrics.Registry = prometheus.NewRegistry()

	metrics.adRequests = newCounter(cfg, metrics.Registry,
		"ad_requests",
		"Count of native ad load requests issued by a slot.",
		[]string{slotLabel})

	metrics.adLoads = newCounter(cfg, metrics.Registry,
		"ad_loads",
		"Count of native ad load outcomes labeled by slot and status.",
		[]string{slotLabel, statusLabel})

	metrics.adLoadTimer = newHistogramVec(cfg, metrics.Registry,
		"ad_load_time_seconds",
		"Seconds from request to load outcome labeled by slot.",
		[]string{slotLabel},
		loadTimeBuckets)

	metrics.staleResponses = newCounter(cfg, metrics.Registry,
		"stale_responses",
		"Count of load outcomes discarded because the slot restarted its reload loop.",
		[]string{slotLabel})

	metrics.adEvents = newCounter(cfg, metrics.Registry,
		"ad_events",
		"Count of events reported for loaded ads labeled by slot and event.",
		[]string{slotLabel, eventLabel})

	metrics.adRevenue = newCounter(cfg, metrics.Registry,
		"ad_revenue_micros",
		"Sum of paid event values in micro units labeled by slot and currency.",
		[]string{slotLabel, currencyLabel})

	metrics.bindings = newCounter(cfg, metrics.Registry,
		"widget_bindings",
		"Count of native ad field registrations labeled by slot, field and result.",
		[]string{slotLabel, fieldLabel, successLabel})

	metrics.adapterInit = newCounter(cfg, metrics.Registry,
		"adapter_init",
		"Count of mediation adapter initializations labeled by adapter and state.",
		[]string{adapterLabel, stateLabel})

	metrics.adapterInitTimer = newHistogramVec(cfg, metrics.Registry,
		"adapter_init_time_seconds",
		"Seconds a mediation adapter took to initialize.",
		[]string{adapterLabel},
		initTimeBuckets)

	preloadLabelValues(&metrics, slots)

	return &metrics
}

func newCounter(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounterVec(opts, labels)
	registry.MustRegister(counter)
	return counter
}

func newHistogramVec(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	histogram := prometheus.NewHistogramVec(opts, labels)
	registry.MustRegister(histogram)
	return histogram
}

func preloadLabelValues(m *Metrics, slots []string) {
	for _, slot := range slots {
		m.adRequests.WithLabelValues(slot)
		m.staleResponses.WithLabelValues(slot)
		for _, status := range metrics.LoadStatuses() {
			m.adLoads.WithLabelValues(slot, string(status))
		}
		for _, event := range adprovider.EventTypes() {
			m.adEvents.WithLabelValues(slot, string(event))
		}
	}
}

func (m *Metrics) RecordAdRequest(labels metrics.AdLabels) {
	m.adRequests.With(prometheus.Labels{
		slotLabel: labels.Slot,
	}).Inc()
}

func (m *Metrics) RecordAdLoad(labels metrics.AdLabels, status metrics.LoadStatus, length time.Duration) {
	m.adLoads.With(prometheus.Labels{
		slotLabel:   labels.Slot,
		statusLabel: string(status),
	}).Inc()
	m.adLoadTimer.With(prometheus.Labels{
		slotLabel: labels.Slot,
	}).Observe(length.Seconds())
}

func (m *Metrics) RecordStaleResponse(labels metrics.AdLabels) {
	m.staleResponses.With(prometheus.Labels{
		slotLabel: labels.Slot,
	}).Inc()
}

func (m *Metrics) RecordAdEvent(labels metrics.AdLabels, event adprovider.EventType) {
	m.adEvents.With(prometheus.Labels{
		slotLabel:  labels.Slot,
		eventLabel: string(event),
	}).Inc()
}

func (m *Metrics) RecordAdRevenue(labels metrics.AdLabels, currency string, valueMicros int64) {
	if valueMicros < 0 {
		return
	}
	m.adRevenue.With(prometheus.Labels{
		slotLabel:     labels.Slot,
		currencyLabel: currency,
	}).Add(float64(valueMicros))
}

func (m *Metrics) RecordBinding(labels metrics.AdLabels, field metrics.BindingField, success bool) {
	m.bindings.With(prometheus.Labels{
		slotLabel:    labels.Slot,
		fieldLabel:   string(field),
		successLabel: strconv.FormatBool(success),
	}).Inc()
}

func (m *Metrics) RecordAdapterInit(adapter string, state adprovider.AdapterState, latency time.Duration) {
	m.adapterInit.With(prometheus.Labels{
		adapterLabel: adapter,
		stateLabel:   state.String(),
	}).Inc()
	m.adapterInitTimer.With(prometheus.Labels{
		adapterLabel: adapter,
	}).Observe(latency.Seconds())
}
