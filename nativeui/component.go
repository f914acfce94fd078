// Package nativeui runs the native ad slots of the application. A Component waits
// for the ad provider to become ready, then reloads its ad on a fixed interval and
// renders each loaded ad into the slot's widgets.
//
// All Component methods must be called from the host loop.
package nativeui

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/errortypes"
	"github.com/monsterutils/adrefresh/host"
	"github.com/monsterutils/adrefresh/metrics"
	"github.com/monsterutils/adrefresh/readiness"
	"github.com/monsterutils/adrefresh/util/randomutil"
	"github.com/monsterutils/adrefresh/view"
)

const (
	// StartupDelay is waited before polling readiness.
	StartupDelay = 100 * time.Millisecond
	// InitialLoadDelay is waited once every time the reload loop (re)starts.
	InitialLoadDelay = 500 * time.Millisecond
)

// Config describes one ad slot.
type Config struct {
	Name           string
	AdUnitID       string
	ReloadInterval time.Duration
	Placeholders   []string
	// ReadinessTimeout bounds the wait for the provider. Zero waits forever.
	ReadinessTimeout time.Duration
}

// Deps are the collaborators of a Component.
type Deps struct {
	Loop      *host.Loop
	Provider  adprovider.Provider
	Readiness *readiness.Signal
	Metrics   metrics.MetricsEngine
	// StoreClick handles the store button. May be nil.
	StoreClick func()
	// Random picks the placeholder image. Defaults to a wall-clock seeded generator.
	Random randomutil.RandomGenerator
	// Context is passed to provider loads. Defaults to context.Background.
	Context context.Context
}

type Component struct {
	cfg     Config
	deps    Deps
	widgets view.Widgets
	labels  metrics.AdLabels

	state State
	// timer is the single pending startup or reload wait.
	timer         *host.Timer
	generation    uint64
	everRequested bool
	requests      int
	pending       bool
	renderQueued  bool
	currentAd     adprovider.NativeAd
	placeholder   string
}

func New(cfg Config, widgets view.Widgets, deps Deps) *Component {
	if deps.Random == nil {
		deps.Random = randomutil.NewRandomNumberGenerator()
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	return &Component{
		cfg:     cfg,
		deps:    deps,
		widgets: widgets,
		labels:  metrics.AdLabels{Slot: cfg.Name},
	}
}

func (c *Component) Name() string {
	return c.cfg.Name
}

func (c *Component) State() State {
	return c.state
}

// Start activates the component. It shows the placeholder and waits for readiness.
func (c *Component) Start() {
	if c.state != StateIdle {
		glog.Warningf("[%s] Start ignored in state %s", c.cfg.Name, c.state)
		return
	}

	setActive(c.widgets.AdView, false)
	setActive(c.widgets.PlaceholderView, true)
	if c.widgets.StoreButton != nil && c.deps.StoreClick != nil {
		c.widgets.StoreButton.OnClick(c.deps.StoreClick)
	}
	if c.widgets.Placeholder != nil {
		if image, ok := randomutil.Pick(c.deps.Random, c.cfg.Placeholders); ok {
			c.placeholder = image
			c.widgets.Placeholder.SetImage(&adprovider.Image{URL: image})
		}
	}

	c.state = StateWaitingForReadiness
	c.timer = c.deps.Loop.After(StartupDelay, func() {
		c.timer = c.deps.Loop.WaitUntil(c.deps.Readiness.Ready, c.cfg.ReadinessTimeout, c.onReadiness)
	})
}

func (c *Component) onReadiness(ok bool) {
	c.timer = nil
	if !ok {
		glog.Errorf("[%s] Ad provider not ready after %v; slot disabled", c.cfg.Name, c.cfg.ReadinessTimeout)
		c.state = StateDisabled
		return
	}
	if c.cfg.AdUnitID == "" {
		glog.Errorf("[%s] No ad unit id configured; slot disabled", c.cfg.Name)
		c.state = StateDisabled
		return
	}
	if c.cfg.ReloadInterval <= 0 {
		glog.Infof("[%s] Reload interval is %v; slot disabled", c.cfg.Name, c.cfg.ReloadInterval)
		c.state = StateDisabled
		return
	}

	c.state = StateActive
	c.startLoop()
}

// startLoop cancels any running loop and starts a new generation.
func (c *Component) startLoop() {
	c.timer.Stop()
	c.generation++
	c.pending = false

	interval := c.cfg.ReloadInterval
	if interval <= 0 {
		return
	}
	gen := c.generation
	glog.V(2).Infof("[%s] Reload loop %d starts in %v", c.cfg.Name, gen, InitialLoadDelay)
	c.timer = c.deps.Loop.After(InitialLoadDelay, func() { c.reload(gen, interval) })
}

func (c *Component) reload(gen uint64, interval time.Duration) {
	if gen != c.generation {
		return
	}
	c.requestAd(gen)
	c.timer = c.deps.Loop.After(interval, func() { c.reload(gen, interval) })
}

func (c *Component) requestAd(gen uint64) {
	c.everRequested = true
	c.requests++
	c.pending = true
	c.deps.Metrics.RecordAdRequest(c.labels)

	start := c.deps.Loop.Now()
	req := adprovider.LoadRequest{AdUnitID: c.cfg.AdUnitID, Slot: c.cfg.Name}
	glog.V(2).Infof("[%s] Requesting native ad %d for %s", c.cfg.Name, c.requests, c.cfg.AdUnitID)
	c.deps.Provider.LoadNativeAd(c.deps.Context, req, func(result adprovider.LoadResult) {
		c.deps.Loop.Post(func() { c.onLoadResult(gen, start, result) })
	})
}

func (c *Component) onLoadResult(gen uint64, start time.Time, result adprovider.LoadResult) {
	elapsed := c.deps.Loop.Now().Sub(start)

	if gen != c.generation {
		stale := &errortypes.Warning{
			Message:     fmt.Sprintf("discarding load result of cancelled reload loop %d (current %d)", gen, c.generation),
			WarningCode: errortypes.StaleResponseWarningCode,
		}
		glog.Infof("[%s] %v", c.cfg.Name, stale)
		c.deps.Metrics.RecordStaleResponse(c.labels)
		if result.OK() {
			result.Ad.Destroy()
		}
		return
	}
	c.pending = false

	if !result.OK() {
		c.deps.Metrics.RecordAdLoad(c.labels, loadStatus(result.Err), elapsed)
		if errortypes.IsWarning(result.Err.Cause) {
			glog.Warningf("[%s] Native ad failed to load: %v", c.cfg.Name, result.Err)
		} else {
			glog.Errorf("[%s] Native ad failed to load: %v", c.cfg.Name, result.Err)
		}
		return
	}
	c.deps.Metrics.RecordAdLoad(c.labels, metrics.LoadStatusSuccess, elapsed)

	if c.currentAd != nil {
		c.currentAd.Destroy()
	}
	ad := result.Ad
	c.currentAd = ad
	ad.Subscribe(func(e adprovider.Event) {
		c.deps.Loop.Post(func() { c.onAdEvent(ad, e) })
	})

	info := ad.ResponseInfo()
	glog.Infof("[%s] Native ad loaded. ResponseID: %s, Network: %s, Placement: %s", c.cfg.Name, info.ResponseID, info.AdSourceName, info.AdSourceInstanceName)
	c.requestRender()
}

func loadStatus(err *adprovider.LoadError) metrics.LoadStatus {
	if err == nil {
		return metrics.LoadStatusError
	}
	switch err.Code() {
	case errortypes.NoFillErrorCode:
		return metrics.LoadStatusNoFill
	case errortypes.TimeoutErrorCode:
		return metrics.LoadStatusTimeout
	}
	return metrics.LoadStatusError
}

func (c *Component) onAdEvent(ad adprovider.NativeAd, e adprovider.Event) {
	if ad != c.currentAd {
		glog.V(2).Infof("[%s] Ignoring %s event of a replaced ad", c.cfg.Name, e.Type)
		return
	}
	c.deps.Metrics.RecordAdEvent(c.labels, e.Type)

	info := e.ResponseInfo
	if e.Type == adprovider.EventPaid && e.Value != nil {
		c.deps.Metrics.RecordAdRevenue(c.labels, e.Value.CurrencyCode, e.Value.ValueMicros)
		glog.Infof("[%s] Paid event. Currency: %s, Value: %d micros, ResponseID: %s, Network: %s, Placement: %s",
			c.cfg.Name, e.Value.CurrencyCode, e.Value.ValueMicros, info.ResponseID, info.AdSourceName, info.AdSourceInstanceName)
		return
	}
	glog.Infof("[%s] Native ad %s. ResponseID: %s", c.cfg.Name, e.Type, info.ResponseID)
}

// requestRender schedules a render of the current ad on the next frame.
func (c *Component) requestRender() {
	if c.renderQueued {
		return
	}
	c.renderQueued = true
	c.deps.Loop.Post(func() {
		c.renderQueued = false
		c.render()
	})
}

func (c *Component) render() {
	ad := c.currentAd
	if ad == nil {
		return
	}

	swap := false
	if w := c.widgets.Icon; w != nil {
		w.SetImage(ad.IconImage())
		c.bound(metrics.BindingIcon, ad.RegisterIconImage(w))
	}
	if w := c.widgets.Headline; w != nil {
		w.SetText(ad.HeadlineText())
		c.bound(metrics.BindingHeadline, ad.RegisterHeadlineText(w))
		swap = true
	}
	if w := c.widgets.CallToAction; w != nil {
		w.SetText(ad.CallToActionText())
		c.bound(metrics.BindingCallToAction, ad.RegisterCallToAction(w))
		swap = true
	}
	if w := c.widgets.AdChoices; w != nil {
		w.SetImage(ad.AdChoicesLogo())
		c.bound(metrics.BindingAdChoices, ad.RegisterAdChoicesLogo(w))
	}

	if swap {
		setActive(c.widgets.PlaceholderView, false)
		setActive(c.widgets.AdView, true)
	}
	glog.V(2).Infof("[%s] Rendered %s", c.cfg.Name, ad.ResponseInfo().ResponseID)
}

func (c *Component) bound(field metrics.BindingField, ok bool) {
	c.deps.Metrics.RecordBinding(c.labels, field, ok)
	if !ok {
		err := &errortypes.Binding{Message: "provider rejected the " + string(field) + " widget"}
		glog.Warningf("[%s] %v", c.cfg.Name, err)
	}
}

// Disable deactivates the component. Any pending wait is cancelled and load results
// still in flight are discarded. Deactivating before readiness cancels startup for good.
func (c *Component) Disable() {
	switch c.state {
	case StateWaitingForReadiness:
		c.timer.Stop()
		c.timer = nil
		c.state = StateDisabled
		glog.Infof("[%s] Deactivated while waiting for readiness; startup cancelled", c.cfg.Name)
	case StateActive:
		c.timer.Stop()
		c.timer = nil
		c.generation++
		c.pending = false
		c.state = StateSuspended
		glog.Infof("[%s] Deactivated; reload loop stopped", c.cfg.Name)
	default:
		glog.V(2).Infof("[%s] Disable ignored in state %s", c.cfg.Name, c.state)
	}
}

// Enable reactivates a suspended component. The reload loop restarts from scratch
// only if a request was ever issued.
func (c *Component) Enable() {
	if c.state != StateSuspended {
		glog.V(2).Infof("[%s] Enable ignored in state %s", c.cfg.Name, c.state)
		return
	}
	if !c.everRequested {
		glog.Infof("[%s] Reactivated before any request was issued; reload loop not restarted", c.cfg.Name)
		return
	}
	c.state = StateActive
	c.startLoop()
	glog.Infof("[%s] Reactivated; reload loop %d restarted", c.cfg.Name, c.generation)
}

// ClickStore acts as if the store button was pressed.
func (c *Component) ClickStore() {
	if c.deps.StoreClick != nil {
		c.deps.StoreClick()
	}
}

// Close destroys the current ad and stops the component for good.
func (c *Component) Close() {
	c.timer.Stop()
	c.timer = nil
	c.generation++
	c.state = StateDisabled
	if c.currentAd != nil {
		c.currentAd.Destroy()
		c.currentAd = nil
	}
}

func setActive(p view.Panel, active bool) {
	if p != nil {
		p.SetActive(active)
	}
}
