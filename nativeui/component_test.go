package nativeui

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/adprovider/fakeprovider"
	"github.com/monsterutils/adrefresh/host"
	"github.com/monsterutils/adrefresh/metrics"
	"github.com/monsterutils/adrefresh/readiness"
	"github.com/monsterutils/adrefresh/util/randomutil"
	"github.com/monsterutils/adrefresh/view"
	"github.com/monsterutils/adrefresh/view/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const frameStep = 10 * time.Millisecond

// firstRequestAt is when the first load is issued for a provider that is already
// ready: startup delay, one frame to evaluate readiness, then the initial delay.
const firstRequestAt = StartupDelay + frameStep + InitialLoadDelay

type widgetSet struct {
	icon, headline, cta, adChoices, placeholder, store bool
}

var allWidgets = widgetSet{icon: true, headline: true, cta: true, adChoices: true, placeholder: true, store: true}

type harness struct {
	clock    *clock.Mock
	loop     *host.Loop
	provider *fakeprovider.Provider
	signal   *readiness.Signal
	metrics  *metrics.MetricsEngineMock

	adView          *headless.Panel
	placeholderView *headless.Panel
	placeholder     *headless.Image
	icon            *headless.Image
	adChoices       *headless.Image
	headline        *headless.Text
	cta             *headless.Text
	store           *headless.Button
	storeClicks     int

	component *Component
}

func newMetricsMock() *metrics.MetricsEngineMock {
	m := &metrics.MetricsEngineMock{}
	m.On("RecordAdRequest", mock.Anything).Return()
	m.On("RecordAdLoad", mock.Anything, mock.Anything, mock.Anything).Return()
	m.On("RecordStaleResponse", mock.Anything).Return()
	m.On("RecordAdEvent", mock.Anything, mock.Anything).Return()
	m.On("RecordAdRevenue", mock.Anything, mock.Anything, mock.Anything).Return()
	m.On("RecordBinding", mock.Anything, mock.Anything, mock.Anything).Return()
	m.On("RecordAdapterInit", mock.Anything, mock.Anything, mock.Anything).Return()
	return m
}

func newHarness(cfg Config, set widgetSet) *harness {
	h := &harness{
		clock:           clock.NewMock(),
		provider:        fakeprovider.New(),
		signal:          readiness.NewSignal(),
		metrics:         newMetricsMock(),
		adView:          headless.NewPanel("ad", true),
		placeholderView: headless.NewPanel("placeholder", false),
	}
	h.loop = host.NewLoop(h.clock)

	widgets := view.Widgets{AdView: h.adView, PlaceholderView: h.placeholderView}
	if set.icon {
		h.icon = headless.NewImage("icon")
		widgets.Icon = h.icon
	}
	if set.headline {
		h.headline = headless.NewText("headline")
		widgets.Headline = h.headline
	}
	if set.cta {
		h.cta = headless.NewText("cta")
		widgets.CallToAction = h.cta
	}
	if set.adChoices {
		h.adChoices = headless.NewImage("adchoices")
		widgets.AdChoices = h.adChoices
	}
	if set.placeholder {
		h.placeholder = headless.NewImage("placeholder")
		widgets.Placeholder = h.placeholder
	}
	if set.store {
		h.store = headless.NewButton("store")
		widgets.StoreButton = h.store
	}

	if cfg.Name == "" {
		cfg.Name = "lobby"
	}
	h.component = New(cfg, widgets, Deps{
		Loop:       h.loop,
		Provider:   h.provider,
		Readiness:  h.signal,
		Metrics:    h.metrics,
		StoreClick: func() { h.storeClicks++ },
		Random:     randomutil.NewSeeded(1),
	})
	return h
}

func activeConfig() Config {
	return Config{AdUnitID: "ca-app-pub-1/lobby", ReloadInterval: time.Second}
}

// advance moves the mock clock forward running one frame per step.
func (h *harness) advance(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += frameStep {
		h.clock.Add(frameStep)
		h.loop.Frame()
	}
}

// startActive starts the component with a ready provider and runs until the first request.
func (h *harness) startActive(t *testing.T) {
	t.Helper()
	h.signal.MarkReady()
	h.component.Start()
	h.advance(firstRequestAt)
	require.Equal(t, StateActive, h.component.State())
	require.Equal(t, 1, h.provider.RequestCount())
}

// respond completes request i with a fresh ad and applies it on the next frame.
func (h *harness) respond(i int, id string) *fakeprovider.Ad {
	ad := fakeprovider.NewAd(adprovider.ResponseInfo{ResponseID: id, AdSourceName: "admob", AdSourceInstanceName: "lobby-native"})
	ad.Headline = "headline " + id
	h.provider.Respond(i, ad)
	h.loop.Frame()
	return ad
}

func TestStartShowsPlaceholder(t *testing.T) {
	h := newHarness(Config{AdUnitID: "unit", ReloadInterval: time.Second, Placeholders: []string{"a.png", "b.png", "c.png"}}, allWidgets)

	h.component.Start()

	assert.Equal(t, StateWaitingForReadiness, h.component.State())
	assert.False(t, h.adView.Active())
	assert.True(t, h.placeholderView.Active())
	require.NotNil(t, h.placeholder.Image())
	assert.Contains(t, []string{"a.png", "b.png", "c.png"}, h.placeholder.Image().URL)

	h.store.Click()
	assert.Equal(t, 1, h.storeClicks)
}

func TestStartIsOnlyHonoredOnce(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	h.component.Start()
	h.advance(firstRequestAt)

	assert.Equal(t, StateActive, h.component.State())
	assert.Equal(t, 1, h.provider.RequestCount())
}

func TestPlaceholderAlwaysFromList(t *testing.T) {
	placeholders := []string{"a.png", "b.png", "c.png"}
	for seed := int64(0); seed < 50; seed++ {
		h := newHarness(Config{AdUnitID: "unit", ReloadInterval: time.Second, Placeholders: placeholders}, allWidgets)
		h.component.deps.Random = randomutil.NewSeeded(seed)
		h.component.Start()
		require.NotNil(t, h.placeholder.Image())
		assert.Contains(t, placeholders, h.placeholder.Image().URL)
	}
}

func TestNoPlaceholderConfigured(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.component.Start()
	assert.Nil(t, h.placeholder.Image())
}

func TestNonPositiveIntervalNeverRequests(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		h := newHarness(Config{AdUnitID: "unit", ReloadInterval: interval}, allWidgets)
		h.signal.MarkReady()
		h.component.Start()
		h.advance(5 * time.Second)

		assert.Equal(t, 0, h.provider.RequestCount(), "interval %v", interval)
		assert.Equal(t, StateDisabled, h.component.State(), "interval %v", interval)
	}
}

func TestReloadCadence(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.signal.MarkReady()
	h.component.Start()

	h.advance(firstRequestAt - frameStep)
	assert.Equal(t, 0, h.provider.RequestCount(), "nothing before the initial delay")

	h.advance(frameStep)
	assert.Equal(t, 1, h.provider.RequestCount())

	h.advance(time.Second - frameStep)
	assert.Equal(t, 1, h.provider.RequestCount())
	h.advance(frameStep)
	assert.Equal(t, 2, h.provider.RequestCount())

	h.advance(3 * time.Second)
	assert.Equal(t, 5, h.provider.RequestCount())

	h.component.Disable()
	h.advance(5 * time.Second)
	assert.Equal(t, 5, h.provider.RequestCount(), "no requests after deactivation")

	for _, r := range h.provider.Requests() {
		assert.Equal(t, "ca-app-pub-1/lobby", r.Request.AdUnitID)
		assert.Equal(t, "lobby", r.Request.Slot)
	}
	h.metrics.AssertNumberOfCalls(t, "RecordAdRequest", 5)
}

func TestWaitsForReadiness(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.component.Start()
	h.advance(10 * time.Second)

	assert.Equal(t, StateWaitingForReadiness, h.component.State())
	assert.Equal(t, 0, h.provider.RequestCount())

	h.signal.MarkReady()
	h.advance(frameStep + InitialLoadDelay)
	assert.Equal(t, StateActive, h.component.State())
	assert.Equal(t, 1, h.provider.RequestCount())
}

func TestReadinessTimeoutDisables(t *testing.T) {
	cfg := activeConfig()
	cfg.ReadinessTimeout = time.Second
	h := newHarness(cfg, allWidgets)
	h.component.Start()

	h.advance(StartupDelay + time.Second + frameStep)
	assert.Equal(t, StateDisabled, h.component.State())

	h.signal.MarkReady()
	h.advance(5 * time.Second)
	assert.Equal(t, 0, h.provider.RequestCount())
}

func TestMissingAdUnitIDDisablesForGood(t *testing.T) {
	h := newHarness(Config{ReloadInterval: time.Second}, allWidgets)
	h.signal.MarkReady()
	h.component.Start()
	h.advance(time.Second)

	assert.Equal(t, StateDisabled, h.component.State())

	h.component.Disable()
	h.component.Enable()
	h.advance(10 * time.Second)
	assert.Equal(t, StateDisabled, h.component.State())
	assert.Equal(t, 0, h.provider.RequestCount())
}

func TestReactivateBeforeFirstRequest(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.signal.MarkReady()
	h.component.Start()
	h.advance(StartupDelay + 2*frameStep)
	require.Equal(t, StateActive, h.component.State())

	h.component.Disable()
	assert.Equal(t, StateSuspended, h.component.State())
	h.component.Enable()
	h.advance(10 * time.Second)

	assert.Equal(t, 0, h.provider.RequestCount())
	assert.Equal(t, StateSuspended, h.component.State())
}

func TestDeactivateWhileWaitingForReadiness(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.component.Start()
	h.advance(StartupDelay)

	h.component.Disable()
	h.component.Enable()
	h.signal.MarkReady()
	h.advance(10 * time.Second)

	assert.Equal(t, StateDisabled, h.component.State())
	assert.Equal(t, 0, h.provider.RequestCount())
}

func TestReactivateRestartsLoop(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	h.advance(300 * time.Millisecond)
	h.component.Disable()
	h.advance(10 * time.Second)
	require.Equal(t, 1, h.provider.RequestCount())

	h.component.Enable()
	assert.Equal(t, StateActive, h.component.State())
	h.advance(InitialLoadDelay - frameStep)
	assert.Equal(t, 1, h.provider.RequestCount(), "initial delay applies again")
	h.advance(frameStep)
	assert.Equal(t, 2, h.provider.RequestCount())
	h.advance(time.Second)
	assert.Equal(t, 3, h.provider.RequestCount())
}

func TestRepeatedEnableKeepsOneTimer(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	for i := 0; i < 3; i++ {
		h.component.Disable()
		h.component.Enable()
	}
	h.advance(InitialLoadDelay)
	assert.Equal(t, 2, h.provider.RequestCount(), "only one loop runs")
	h.advance(time.Second)
	assert.Equal(t, 3, h.provider.RequestCount())
}

func TestRenderSwapsViews(t *testing.T) {
	testCases := []struct {
		description  string
		widgets      widgetSet
		expectedSwap bool
	}{
		{
			description:  "all widgets",
			widgets:      allWidgets,
			expectedSwap: true,
		},
		{
			description:  "headline only",
			widgets:      widgetSet{headline: true},
			expectedSwap: true,
		},
		{
			description:  "call to action only",
			widgets:      widgetSet{cta: true},
			expectedSwap: true,
		},
		{
			description:  "icon and adchoices only",
			widgets:      widgetSet{icon: true, adChoices: true},
			expectedSwap: false,
		},
		{
			description:  "no widgets",
			widgets:      widgetSet{},
			expectedSwap: false,
		},
	}

	for _, test := range testCases {
		h := newHarness(activeConfig(), test.widgets)
		h.startActive(t)

		ad := h.respond(0, "r1")
		assert.False(t, h.adView.Active(), "%s: render waits for the next frame", test.description)
		assert.True(t, h.placeholderView.Active(), test.description)

		h.loop.Frame()
		assert.Equal(t, test.expectedSwap, h.adView.Active(), test.description)
		assert.Equal(t, !test.expectedSwap, h.placeholderView.Active(), test.description)

		if test.widgets.headline {
			assert.Equal(t, "headline r1", h.headline.Text(), test.description)
			assert.True(t, ad.Registered("headline"), test.description)
		}
		if test.widgets.cta {
			assert.Equal(t, ad.CallToAction, h.cta.Text(), test.description)
			assert.True(t, ad.Registered("call_to_action"), test.description)
		}
		if test.widgets.icon {
			assert.Equal(t, ad.Icon, h.icon.Image(), test.description)
			assert.True(t, ad.Registered("icon"), test.description)
		}
	}
}

func TestBindingFailureStillRenders(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	ad := fakeprovider.NewAd(adprovider.ResponseInfo{ResponseID: "r1"})
	ad.RegisterResult = false
	h.provider.Respond(0, ad)
	h.loop.Frame()
	h.loop.Frame()

	assert.True(t, h.adView.Active())
	assert.Equal(t, ad.Headline, h.headline.Text())
	labels := metrics.AdLabels{Slot: "lobby"}
	h.metrics.AssertCalled(t, "RecordBinding", labels, metrics.BindingHeadline, false)
	h.metrics.AssertCalled(t, "RecordBinding", labels, metrics.BindingIcon, false)
}

func TestFailedLoadKeepsCurrentAd(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)
	h.respond(0, "r1")
	h.loop.Frame()
	require.True(t, h.adView.Active())

	h.advance(time.Second)
	require.Equal(t, 2, h.provider.RequestCount())
	h.provider.Fail(1, "no fill")
	h.loop.Frame()
	h.loop.Frame()

	assert.True(t, h.adView.Active())
	assert.False(t, h.placeholderView.Active())
	assert.Equal(t, "headline r1", h.headline.Text())
	assert.Equal(t, "r1", h.component.Snapshot().ResponseID)
	h.metrics.AssertCalled(t, "RecordAdLoad", metrics.AdLabels{Slot: "lobby"}, metrics.LoadStatusNoFill, mock.Anything)
}

func TestFailedFirstLoadKeepsPlaceholder(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	h.provider.Fail(0, "no fill")
	h.loop.Frame()
	h.loop.Frame()

	assert.False(t, h.adView.Active())
	assert.True(t, h.placeholderView.Active())
	assert.Empty(t, h.component.Snapshot().ResponseID)

	h.advance(time.Second)
	assert.Equal(t, 2, h.provider.RequestCount(), "the next tick tries again")
}

func TestNewAdReplacesAndDestroysPrevious(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)
	first := h.respond(0, "r1")
	h.loop.Frame()

	h.advance(time.Second)
	second := h.respond(1, "r2")
	h.loop.Frame()

	assert.True(t, first.Destroyed())
	assert.False(t, second.Destroyed())
	assert.Equal(t, "headline r2", h.headline.Text())
	assert.Equal(t, "r2", h.component.Snapshot().ResponseID)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	h.component.Disable()
	h.component.Enable()
	stale := h.respond(0, "stale")
	h.loop.Frame()

	assert.True(t, stale.Destroyed())
	assert.Empty(t, h.component.Snapshot().ResponseID)
	assert.False(t, h.adView.Active())
	h.metrics.AssertCalled(t, "RecordStaleResponse", metrics.AdLabels{Slot: "lobby"})
	h.metrics.AssertNotCalled(t, "RecordAdLoad", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultWhileSuspendedIsDiscarded(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	h.component.Disable()
	stale := h.respond(0, "late")

	assert.True(t, stale.Destroyed())
	assert.Empty(t, h.component.Snapshot().ResponseID)
}

func TestAdEvents(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)
	ad := h.respond(0, "r1")
	h.loop.Frame()

	labels := metrics.AdLabels{Slot: "lobby"}
	ad.EmitPaid("USD", 1500)
	ad.Emit(adprovider.Event{Type: adprovider.EventImpression})
	h.headline.Click()
	h.metrics.AssertNotCalled(t, "RecordAdEvent", mock.Anything, mock.Anything)

	h.loop.Frame()
	h.metrics.AssertCalled(t, "RecordAdRevenue", labels, "USD", int64(1500))
	h.metrics.AssertCalled(t, "RecordAdEvent", labels, adprovider.EventPaid)
	h.metrics.AssertCalled(t, "RecordAdEvent", labels, adprovider.EventImpression)
	h.metrics.AssertCalled(t, "RecordAdEvent", labels, adprovider.EventClicked)
	assert.Equal(t, StateActive, h.component.State(), "events do not change state")
}

func TestEventsOfReplacedAdAreIgnored(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)
	first := h.respond(0, "r1")
	h.loop.Frame()

	h.advance(time.Second)
	h.provider.Respond(1, fakeprovider.NewAd(adprovider.ResponseInfo{ResponseID: "r2"}))
	// Emitted before the replacement is applied, delivered after it.
	first.Emit(adprovider.Event{Type: adprovider.EventImpression})
	h.loop.Frame()

	assert.True(t, first.Destroyed())
	h.metrics.AssertNotCalled(t, "RecordAdEvent", mock.Anything, mock.Anything)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(Config{Name: "shop", AdUnitID: "unit", ReloadInterval: 2 * time.Second, Placeholders: []string{"p.png"}}, allWidgets)
	h.signal.MarkReady()
	h.component.Start()
	h.advance(firstRequestAt)

	s := h.component.Snapshot()
	assert.Equal(t, "shop", s.Name)
	assert.Equal(t, "active", s.State)
	assert.Equal(t, 2.0, s.ReloadIntervalSeconds)
	assert.Equal(t, uint64(1), s.Generation)
	assert.Equal(t, 1, s.Requests)
	assert.True(t, s.PendingRequest)
	assert.True(t, s.ReloadScheduled)
	assert.Equal(t, "p.png", s.Placeholder)
	assert.True(t, s.PlaceholderVisible)
	assert.False(t, s.AdVisible)

	h.provider.Respond(0, fakeprovider.NewAd(adprovider.ResponseInfo{ResponseID: "r1"}))
	h.loop.Frame()
	h.loop.Frame()

	s = h.component.Snapshot()
	assert.False(t, s.PendingRequest)
	assert.Equal(t, "r1", s.ResponseID)
	assert.True(t, s.AdVisible)
}

func TestClose(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)
	ad := h.respond(0, "r1")

	h.component.Close()
	h.advance(5 * time.Second)

	assert.True(t, ad.Destroyed())
	assert.Equal(t, StateDisabled, h.component.State())
	assert.Equal(t, 1, h.provider.RequestCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "waiting_for_readiness", StateWaitingForReadiness.String())
	assert.Equal(t, "suspended", StateSuspended.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestReloadKeepsOneClickHandlerPerWidget(t *testing.T) {
	h := newHarness(activeConfig(), allWidgets)
	h.startActive(t)

	var ads []*fakeprovider.Ad
	for i := 0; i < 5; i++ {
		require.Greater(t, h.provider.RequestCount(), i)
		ads = append(ads, h.respond(i, fmt.Sprintf("r%d", i)))
		h.loop.Frame()
		h.advance(time.Second + frameStep)
	}

	assert.Equal(t, 1, h.icon.ClickHandlers())
	assert.Equal(t, 1, h.headline.ClickHandlers())
	assert.Equal(t, 1, h.cta.ClickHandlers())
	assert.Equal(t, 1, h.adChoices.ClickHandlers())
	for _, ad := range ads[:len(ads)-1] {
		assert.True(t, ad.Destroyed())
	}

	var clicked []string
	for _, ad := range ads {
		id := ad.Info.ResponseID
		ad.Subscribe(func(e adprovider.Event) { clicked = append(clicked, id) })
	}
	h.headline.Click()
	assert.Equal(t, []string{"r4"}, clicked, "only the displayed ad sees the click")
}
