// Package fakeprovider implements adprovider.Provider without a network. Requests are
// recorded and answered either explicitly by the caller or automatically with
// synthetic ads.
package fakeprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/errortypes"
)

// Request is a recorded LoadNativeAd call.
type Request struct {
	Request adprovider.LoadRequest
	done    func(adprovider.LoadResult)
}

// Provider is a scripted adprovider.Provider. The zero value is not usable; use New.
type Provider struct {
	mu       sync.Mutex
	requests []*Request
	inits    int

	// Adapters reported by Initialize.
	Adapters []string
	// InitLatency is reported for every adapter.
	InitLatency time.Duration
	// HoldInit makes Initialize record the call without completing it.
	HoldInit bool
	// AutoFill answers every request immediately with a synthetic ad.
	AutoFill bool

	pendingInit func(adprovider.InitializationStatus)
	served      int
}

func New() *Provider {
	return &Provider{Adapters: []string{"fake"}}
}

func (p *Provider) Initialize(ctx context.Context, done func(adprovider.InitializationStatus)) {
	p.mu.Lock()
	p.inits++
	if p.HoldInit {
		p.pendingInit = done
		p.mu.Unlock()
		return
	}
	status := p.statusLocked(adprovider.AdapterReady, "Ready")
	p.mu.Unlock()

	go done(status)
}

// CompleteInit finishes a held Initialize with every adapter in state.
func (p *Provider) CompleteInit(state adprovider.AdapterState, description string) {
	p.mu.Lock()
	done := p.pendingInit
	p.pendingInit = nil
	status := p.statusLocked(state, description)
	p.mu.Unlock()

	if done != nil {
		done(status)
	}
}

func (p *Provider) statusLocked(state adprovider.AdapterState, description string) adprovider.InitializationStatus {
	status := make(adprovider.InitializationStatus, len(p.Adapters))
	for _, name := range p.Adapters {
		status[name] = adprovider.AdapterStatus{
			State:       state,
			Description: description,
			Latency:     p.InitLatency,
		}
	}
	return status
}

// InitCalls returns how many times Initialize was called.
func (p *Provider) InitCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits
}

func (p *Provider) LoadNativeAd(ctx context.Context, req adprovider.LoadRequest, done func(adprovider.LoadResult)) {
	p.mu.Lock()
	r := &Request{Request: req, done: done}
	p.requests = append(p.requests, r)
	autoFill := p.AutoFill
	var ad *Ad
	if autoFill {
		p.served++
		ad = syntheticAd(req, p.served)
	}
	p.mu.Unlock()

	if autoFill {
		glog.V(2).Infof("[fakeprovider] auto filling %s with %s", req.AdUnitID, ad.Info.ResponseID)
		go done(adprovider.Loaded(ad))
	}
}

// Requests returns a copy of the recorded requests.
func (p *Provider) Requests() []*Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// RequestCount returns how many loads were requested.
func (p *Provider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Respond completes the i-th request with ad.
func (p *Provider) Respond(i int, ad adprovider.NativeAd) {
	p.request(i).done(adprovider.Loaded(ad))
}

// Fail completes the i-th request with a no-fill error.
func (p *Provider) Fail(i int, message string) {
	cause := &errortypes.NoFill{Message: message}
	p.request(i).done(adprovider.Failed(adprovider.NewLoadError(cause, adprovider.ResponseInfo{})))
}

func (p *Provider) request(i int) *Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.requests) {
		panic(fmt.Sprintf("fakeprovider: no request at index %d (have %d)", i, len(p.requests)))
	}
	return p.requests[i]
}

func syntheticAd(req adprovider.LoadRequest, n int) *Ad {
	return NewAd(adprovider.ResponseInfo{
		ResponseID:           fmt.Sprintf("fake-%s-%d", req.AdUnitID, n),
		AdSourceName:         "fake",
		AdSourceInstanceName: req.AdUnitID,
	})
}
