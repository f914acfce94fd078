// Package adprovider defines the capability an ad slot needs from an advertising SDK:
// initialize once, load native ads, and report what happens to a loaded ad.
package adprovider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/monsterutils/adrefresh/errortypes"
)

// Provider is an advertising SDK. Both calls return immediately and complete
// asynchronously; done may be invoked from any goroutine.
type Provider interface {
	// Initialize prepares the SDK and its mediation adapters.
	Initialize(ctx context.Context, done func(InitializationStatus))

	// LoadNativeAd requests a single native ad for req.AdUnitID. done is invoked exactly once.
	LoadNativeAd(ctx context.Context, req LoadRequest, done func(LoadResult))
}

// AdapterState is the readiness of a single mediation adapter.
type AdapterState int

const (
	AdapterNotReady AdapterState = iota
	AdapterReady
)

func (s AdapterState) String() string {
	if s == AdapterReady {
		return "Ready"
	}
	return "NotReady"
}

// AdapterStatus describes how a mediation adapter finished initializing.
type AdapterStatus struct {
	State       AdapterState
	Description string
	Latency     time.Duration
}

// InitializationStatus maps adapter names to their status.
type InitializationStatus map[string]AdapterStatus

// AnyReady reports whether at least one adapter initialized.
func (s InitializationStatus) AnyReady() bool {
	for _, status := range s {
		if status.State == AdapterReady {
			return true
		}
	}
	return false
}

// AdapterNames returns the adapter names in sorted order.
func (s InitializationStatus) AdapterNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadRequest describes a native ad request.
type LoadRequest struct {
	AdUnitID string
	// Slot is the name of the requesting component; used for logging and metrics only.
	Slot string
}

// LoadResult is either Loaded (Ad set) or Failed (Err set), never both.
type LoadResult struct {
	Ad  NativeAd
	Err *LoadError
}

// Loaded builds a successful LoadResult.
func Loaded(ad NativeAd) LoadResult {
	return LoadResult{Ad: ad}
}

// Failed builds a failed LoadResult.
func Failed(err *LoadError) LoadResult {
	return LoadResult{Err: err}
}

// OK reports whether the result carries an ad.
func (r LoadResult) OK() bool {
	return r.Err == nil && r.Ad != nil
}

// LoadError explains a failed load. It wraps one of the errortypes errors.
type LoadError struct {
	Cause        error
	ResponseInfo ResponseInfo
}

// NewLoadError wraps cause into a LoadError.
func NewLoadError(cause error, info ResponseInfo) *LoadError {
	return &LoadError{Cause: cause, ResponseInfo: info}
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("code=%d: %v", e.Code(), e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Code returns the errortypes code of the cause.
func (e *LoadError) Code() int {
	return errortypes.ReadCode(e.Cause)
}

// ResponseInfo identifies the ad response and the ad source that served it.
type ResponseInfo struct {
	ResponseID           string
	AdSourceName         string
	AdSourceInstanceName string
	Extras               map[string]string
}

func (r ResponseInfo) String() string {
	return fmt.Sprintf("ResponseID: %s, AdSource: %s, AdSourceInstance: %s", r.ResponseID, r.AdSourceName, r.AdSourceInstanceName)
}
