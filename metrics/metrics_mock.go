package metrics

import (
	"time"

	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/stretchr/testify/mock"
)

// MetricsEngineMock is mock for the MetricsEngine interface
type MetricsEngineMock struct {
	mock.Mock
}

// RecordAdRequest mock
func (me *MetricsEngineMock) RecordAdRequest(labels AdLabels) {
	me.Called(labels)
}

// RecordAdLoad mock
func (me *MetricsEngineMock) RecordAdLoad(labels AdLabels, status LoadStatus, length time.Duration) {
	me.Called(labels, status, length)
}

// RecordStaleResponse mock
func (me *MetricsEngineMock) RecordStaleResponse(labels AdLabels) {
	me.Called(labels)
}

// RecordAdEvent mock
func (me *MetricsEngineMock) RecordAdEvent(labels AdLabels, event adprovider.EventType) {
	me.Called(labels, event)
}

// RecordAdRevenue mock
func (me *MetricsEngineMock) RecordAdRevenue(labels AdLabels, currency string, valueMicros int64) {
	me.Called(labels, currency, valueMicros)
}

// RecordBinding mock
func (me *MetricsEngineMock) RecordBinding(labels AdLabels, field BindingField, success bool) {
	me.Called(labels, field, success)
}

// RecordAdapterInit mock
func (me *MetricsEngineMock) RecordAdapterInit(adapter string, state adprovider.AdapterState, latency time.Duration) {
	me.Called(adapter, state, latency)
}
