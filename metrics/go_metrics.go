package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/rcrowley/go-metrics"
)

// Metrics is the go-metrics implementation of the MetricsEngine interface.
type Metrics struct {
	MetricsRegistry metrics.Registry

	StaleResponseMeter metrics.Meter

	// Don't export slotMetrics because we need helper functions here to insure its properly populated dynamically
	slotMetrics      map[string]*SlotMetrics
	slotMetricsMutex sync.RWMutex

	adapterMetrics      map[string]*AdapterMetrics
	adapterMetricsMutex sync.RWMutex
}

// SlotMetrics houses the metrics for a particular ad slot
type SlotMetrics struct {
	RequestMeter  metrics.Meter
	LoadMeters    map[LoadStatus]metrics.Meter
	LoadTimer     metrics.Timer
	StaleMeter    metrics.Meter
	EventMeters   map[adprovider.EventType]metrics.Meter
	RevenueMicros metrics.Counter
	BindingOK     map[BindingField]metrics.Meter
	BindingFailed map[BindingField]metrics.Meter
}

// AdapterMetrics houses the initialization metrics of a mediation adapter
type AdapterMetrics struct {
	ReadyMeter    metrics.Meter
	NotReadyMeter metrics.Meter
	InitTimer     metrics.Timer
}

// NewMetrics creates a new Metrics object with the metrics of the known slots defined.
// Slots and adapters seen later are registered on first use.
func NewMetrics(registry metrics.Registry, slots []string) *Metrics {
	newMetrics := &Metrics{
		MetricsRegistry:    registry,
		StaleResponseMeter: metrics.GetOrRegisterMeter("stale_responses", registry),
		slotMetrics:        make(map[string]*SlotMetrics, len(slots)),
		adapterMetrics:     make(map[string]*AdapterMetrics),
	}
	for _, slot := range slots {
		newMetrics.slotMetrics[slot] = registerSlotMetrics(registry, slot)
	}
	return newMetrics
}

func registerSlotMetrics(registry metrics.Registry, slot string) *SlotMetrics {
	sm := &SlotMetrics{
		RequestMeter:  metrics.GetOrRegisterMeter(fmt.Sprintf("slot.%s.requests", slot), registry),
		LoadMeters:    make(map[LoadStatus]metrics.Meter),
		LoadTimer:     metrics.GetOrRegisterTimer(fmt.Sprintf("slot.%s.load_time", slot), registry),
		StaleMeter:    metrics.GetOrRegisterMeter(fmt.Sprintf("slot.%s.stale_responses", slot), registry),
		EventMeters:   make(map[adprovider.EventType]metrics.Meter),
		RevenueMicros: metrics.GetOrRegisterCounter(fmt.Sprintf("slot.%s.revenue_micros", slot), registry),
		BindingOK:     make(map[BindingField]metrics.Meter),
		BindingFailed: make(map[BindingField]metrics.Meter),
	}
	for _, status := range LoadStatuses() {
		sm.LoadMeters[status] = metrics.GetOrRegisterMeter(fmt.Sprintf("slot.%s.load.%s", slot, status), registry)
	}
	for _, event := range adprovider.EventTypes() {
		sm.EventMeters[event] = metrics.GetOrRegisterMeter(fmt.Sprintf("slot.%s.events.%s", slot, event), registry)
	}
	for _, field := range BindingFields() {
		sm.BindingOK[field] = metrics.GetOrRegisterMeter(fmt.Sprintf("slot.%s.binding.%s.ok", slot, field), registry)
		sm.BindingFailed[field] = metrics.GetOrRegisterMeter(fmt.Sprintf("slot.%s.binding.%s.failed", slot, field), registry)
	}
	return sm
}

// SlotMetricsFor returns the metrics of a slot, registering them if needed.
func (me *Metrics) SlotMetricsFor(slot string) *SlotMetrics {
	return me.getSlotMetrics(slot)
}

func (me *Metrics) getSlotMetrics(slot string) *SlotMetrics {
	me.slotMetricsMutex.RLock()
	sm, ok := me.slotMetrics[slot]
	me.slotMetricsMutex.RUnlock()
	if ok {
		return sm
	}

	me.slotMetricsMutex.Lock()
	defer me.slotMetricsMutex.Unlock()
	// Check again as the slot may have been added while we converted locks
	if sm, ok = me.slotMetrics[slot]; ok {
		return sm
	}
	sm = registerSlotMetrics(me.MetricsRegistry, slot)
	me.slotMetrics[slot] = sm
	return sm
}

func (me *Metrics) getAdapterMetrics(adapter string) *AdapterMetrics {
	me.adapterMetricsMutex.RLock()
	am, ok := me.adapterMetrics[adapter]
	me.adapterMetricsMutex.RUnlock()
	if ok {
		return am
	}

	me.adapterMetricsMutex.Lock()
	defer me.adapterMetricsMutex.Unlock()
	if am, ok = me.adapterMetrics[adapter]; ok {
		return am
	}
	am = &AdapterMetrics{
		ReadyMeter:    metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.init.ready", adapter), me.MetricsRegistry),
		NotReadyMeter: metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.init.not_ready", adapter), me.MetricsRegistry),
		InitTimer:     metrics.GetOrRegisterTimer(fmt.Sprintf("adapter.%s.init_time", adapter), me.MetricsRegistry),
	}
	me.adapterMetrics[adapter] = am
	return am
}

// RecordAdRequest implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdRequest(labels AdLabels) {
	me.getSlotMetrics(labels.Slot).RequestMeter.Mark(1)
}

// RecordAdLoad implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdLoad(labels AdLabels, status LoadStatus, length time.Duration) {
	sm := me.getSlotMetrics(labels.Slot)
	if meter, ok := sm.LoadMeters[status]; ok {
		meter.Mark(1)
	}
	sm.LoadTimer.Update(length)
}

// RecordStaleResponse implements a part of the MetricsEngine interface
func (me *Metrics) RecordStaleResponse(labels AdLabels) {
	me.StaleResponseMeter.Mark(1)
	me.getSlotMetrics(labels.Slot).StaleMeter.Mark(1)
}

// RecordAdEvent implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdEvent(labels AdLabels, event adprovider.EventType) {
	if meter, ok := me.getSlotMetrics(labels.Slot).EventMeters[event]; ok {
		meter.Mark(1)
	}
}

// RecordAdRevenue implements a part of the MetricsEngine interface. go-metrics has no
// labels, so revenue in different currencies is summed per currency under its own name.
func (me *Metrics) RecordAdRevenue(labels AdLabels, currency string, valueMicros int64) {
	me.getSlotMetrics(labels.Slot).RevenueMicros.Inc(valueMicros)
	if currency != "" {
		metrics.GetOrRegisterCounter(fmt.Sprintf("slot.%s.revenue_micros.%s", labels.Slot, currency), me.MetricsRegistry).Inc(valueMicros)
	}
}

// RecordBinding implements a part of the MetricsEngine interface
func (me *Metrics) RecordBinding(labels AdLabels, field BindingField, success bool) {
	sm := me.getSlotMetrics(labels.Slot)
	meters := sm.BindingFailed
	if success {
		meters = sm.BindingOK
	}
	if meter, ok := meters[field]; ok {
		meter.Mark(1)
	}
}

// RecordAdapterInit implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdapterInit(adapter string, state adprovider.AdapterState, latency time.Duration) {
	am := me.getAdapterMetrics(adapter)
	if state == adprovider.AdapterReady {
		am.ReadyMeter.Mark(1)
	} else {
		am.NotReadyMeter.Mark(1)
	}
	am.InitTimer.Update(latency)
}
