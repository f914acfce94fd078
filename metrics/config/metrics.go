package config

import (
	"time"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	mainConfig "github.com/monsterutils/adrefresh/config"
	"github.com/monsterutils/adrefresh/metrics"
	prometheusmetrics "github.com/monsterutils/adrefresh/metrics/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
	influxdb "github.com/vrischmann/go-metrics-influxdb"
)

// runInflux ships a go-metrics registry to InfluxDB until the process exits.
var runInflux = func(registry gometrics.Registry, cfg mainConfig.InfluxMetrics) {
	influxdb.InfluxDB(
		registry,
		time.Duration(cfg.IntervalSecs)*time.Second,
		cfg.Host,
		cfg.Database,
		cfg.Measurement,
		cfg.Username,
		cfg.Password,
		cfg.AlignTimestamps,
	)
}

// NewMetricsEngine reads the configuration and returns the appropriate metrics engine
// for this instance.
func NewMetricsEngine(cfg *mainConfig.Configuration, slots []string) *DetailedMetricsEngine {
	// Create a list of metrics engines to use.
	// Capacity of 2, as unlikely to have more than 2 metrics backends, and in the case
	// of 1 we won't use the list so it will be garbage collected.
	engineList := make(MultiMetricsEngine, 0, 2)
	returnEngine := DetailedMetricsEngine{}

	if cfg.Metrics.Influxdb.Host != "" {
		// Currently use go-metrics as the metrics piece for influx
		returnEngine.GoMetrics = metrics.NewMetrics(gometrics.NewPrefixedRegistry("adrefresh."), slots)
		engineList = append(engineList, returnEngine.GoMetrics)
		glog.Infof("Exporting go-metrics to InfluxDB at %s every %ds", cfg.Metrics.Influxdb.Host, cfg.Metrics.Influxdb.IntervalSecs)
		go runInflux(returnEngine.GoMetrics.MetricsRegistry, cfg.Metrics.Influxdb)
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		returnEngine.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus, slots)
		engineList = append(engineList, returnEngine.PrometheusMetrics)
	}

	// Now return the proper metrics engine
	if len(engineList) > 1 {
		returnEngine.MetricsEngine = &engineList
	} else if len(engineList) == 1 {
		returnEngine.MetricsEngine = engineList[0]
	} else {
		returnEngine.MetricsEngine = &NilMetricsEngine{}
	}

	return &returnEngine
}

// DetailedMetricsEngine is a MetricsEngine that preserves links to underlying metrics
// engines so the admin server can expose them.
type DetailedMetricsEngine struct {
	metrics.MetricsEngine
	GoMetrics         *metrics.Metrics
	PrometheusMetrics *prometheusmetrics.Metrics
}

// MultiMetricsEngine logs metrics to multiple metrics databases. The can be useful
// in transitioning an instance from one engine to another, you can run both in
// parallel to verify stats match up.
type MultiMetricsEngine []metrics.MetricsEngine

// RecordAdRequest across all engines
func (me *MultiMetricsEngine) RecordAdRequest(labels metrics.AdLabels) {
	for _, thisME := range *me {
		thisME.RecordAdRequest(labels)
	}
}

// RecordAdLoad across all engines
func (me *MultiMetricsEngine) RecordAdLoad(labels metrics.AdLabels, status metrics.LoadStatus, length time.Duration) {
	for _, thisME := range *me {
		thisME.RecordAdLoad(labels, status, length)
	}
}

// RecordStaleResponse across all engines
func (me *MultiMetricsEngine) RecordStaleResponse(labels metrics.AdLabels) {
	for _, thisME := range *me {
		thisME.RecordStaleResponse(labels)
	}
}

// RecordAdEvent across all engines
func (me *MultiMetricsEngine) RecordAdEvent(labels metrics.AdLabels, event adprovider.EventType) {
	for _, thisME := range *me {
		thisME.RecordAdEvent(labels, event)
	}
}

// RecordAdRevenue across all engines
func (me *MultiMetricsEngine) RecordAdRevenue(labels metrics.AdLabels, currency string, valueMicros int64) {
	for _, thisME := range *me {
		thisME.RecordAdRevenue(labels, currency, valueMicros)
	}
}

// RecordBinding across all engines
func (me *MultiMetricsEngine) RecordBinding(labels metrics.AdLabels, field metrics.BindingField, success bool) {
	for _, thisME := range *me {
		thisME.RecordBinding(labels, field, success)
	}
}

// RecordAdapterInit across all engines
func (me *MultiMetricsEngine) RecordAdapterInit(adapter string, state adprovider.AdapterState, latency time.Duration) {
	for _, thisME := range *me {
		thisME.RecordAdapterInit(adapter, state, latency)
	}
}

// NilMetricsEngine implements the MetricsEngine interface where no metrics are desired.
type NilMetricsEngine struct{}

// RecordAdRequest as a noop
func (me *NilMetricsEngine) RecordAdRequest(labels metrics.AdLabels) {
}

// RecordAdLoad as a noop
func (me *NilMetricsEngine) RecordAdLoad(labels metrics.AdLabels, status metrics.LoadStatus, length time.Duration) {
}

// RecordStaleResponse as a noop
func (me *NilMetricsEngine) RecordStaleResponse(labels metrics.AdLabels) {
}

// RecordAdEvent as a noop
func (me *NilMetricsEngine) RecordAdEvent(labels metrics.AdLabels, event adprovider.EventType) {
}

// RecordAdRevenue as a noop
func (me *NilMetricsEngine) RecordAdRevenue(labels metrics.AdLabels, currency string, valueMicros int64) {
}

// RecordBinding as a noop
func (me *NilMetricsEngine) RecordBinding(labels metrics.AdLabels, field metrics.BindingField, success bool) {
}

// RecordAdapterInit as a noop
func (me *NilMetricsEngine) RecordAdapterInit(adapter string, state adprovider.AdapterState, latency time.Duration) {
}
