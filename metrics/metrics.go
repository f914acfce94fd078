package metrics

import (
	"time"

	"github.com/monsterutils/adrefresh/adprovider"
)

// AdLabels defines the labels that can be attached to the ad slot metrics.
type AdLabels struct {
	Slot string
}

// LoadStatus classifies the outcome of a native ad load.
type LoadStatus string

const (
	LoadStatusSuccess LoadStatus = "success"
	LoadStatusNoFill  LoadStatus = "no_fill"
	LoadStatusTimeout LoadStatus = "timeout"
	LoadStatusError   LoadStatus = "error"
)

func LoadStatuses() []LoadStatus {
	return []LoadStatus{
		LoadStatusSuccess,
		LoadStatusNoFill,
		LoadStatusTimeout,
		LoadStatusError,
	}
}

// BindingField names a native ad field registered with the provider.
type BindingField string

const (
	BindingIcon         BindingField = "icon"
	BindingHeadline     BindingField = "headline"
	BindingCallToAction BindingField = "call_to_action"
	BindingAdChoices    BindingField = "ad_choices"
)

func BindingFields() []BindingField {
	return []BindingField{
		BindingIcon,
		BindingHeadline,
		BindingCallToAction,
		BindingAdChoices,
	}
}

// MetricsEngine is a generic interface to record ad slot metrics into the desired backend.
// The first three metrics function fire off once per ad request.
type MetricsEngine interface {
	RecordAdRequest(labels AdLabels)
	RecordAdLoad(labels AdLabels, status LoadStatus, length time.Duration)
	RecordStaleResponse(labels AdLabels)
	RecordAdEvent(labels AdLabels, event adprovider.EventType)
	// RecordAdRevenue records a paid event value in micro units of currency.
	RecordAdRevenue(labels AdLabels, currency string, valueMicros int64)
	RecordBinding(labels AdLabels, field BindingField, success bool)
	RecordAdapterInit(adapter string, state adprovider.AdapterState, latency time.Duration)
}
