package ortbprovider

import (
	"sync"
	"testing"
	"time"

	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/view/headless"
	nativeResponse "github.com/prebid/openrtb/v20/native1/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *recordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return nil
}

func (o *recordingOpener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type stubWidget struct {
	onClick func()
	removed int
}

func (w *stubWidget) OnClick(f func()) func() {
	w.onClick = f
	return func() {
		w.removed++
		w.onClick = nil
	}
}

func (w *stubWidget) Click() {
	if w.onClick != nil {
		w.onClick()
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []adprovider.Event
}

func (r *eventRecorder) Handle(e adprovider.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) Types() []adprovider.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]adprovider.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func loadTestAd(t *testing.T, opener *recordingOpener) (*auctionServer, adprovider.NativeAd) {
	t.Helper()
	server := newAuctionServer(t, serverOptions{body: bidResponseBody})
	p := newTestProvider(server, opener)
	result := loadSync(t, p, "unit")
	require.True(t, result.OK())
	return server, result.Ad
}

func TestFirstRegistrationReportsImpressionAndValue(t *testing.T) {
	server, ad := loadTestAd(t, &recordingOpener{})
	recorder := &eventRecorder{}
	ad.Subscribe(recorder.Handle)

	assert.True(t, ad.RegisterHeadlineText(&stubWidget{}))
	assert.True(t, ad.RegisterCallToAction(&stubWidget{}))
	assert.True(t, ad.RegisterIconImage(&stubWidget{}))

	assert.Equal(t, []adprovider.EventType{adprovider.EventImpression, adprovider.EventPaid}, recorder.Types())

	paid := recorder.events[1]
	require.NotNil(t, paid.Value)
	assert.Equal(t, "EUR", paid.Value.CurrencyCode)
	assert.Equal(t, int64(2500), paid.Value.ValueMicros)
	assert.Equal(t, adprovider.PrecisionPrecise, paid.Value.Precision)
	assert.Equal(t, "auction-1", paid.ResponseInfo.ResponseID)

	assert.Eventually(t, func() bool {
		return server.Hits("/imp") == 1 && server.Hits("/win") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClickOpensLandingPage(t *testing.T) {
	opener := &recordingOpener{}
	server, ad := loadTestAd(t, opener)
	recorder := &eventRecorder{}
	ad.Subscribe(recorder.Handle)

	headline := &stubWidget{}
	require.True(t, ad.RegisterHeadlineText(headline))
	headline.Click()

	assert.Equal(t, []adprovider.EventType{
		adprovider.EventImpression,
		adprovider.EventPaid,
		adprovider.EventClicked,
		adprovider.EventOpening,
		adprovider.EventClosed,
	}, recorder.Types())
	assert.Equal(t, []string{"https://example.com/landing"}, opener.Opened())
	assert.Eventually(t, func() bool {
		return server.Hits("/click") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAdChoicesClickOpensPrivacyPage(t *testing.T) {
	opener := &recordingOpener{}
	_, ad := loadTestAd(t, opener)

	logo := &stubWidget{}
	require.True(t, ad.RegisterAdChoicesLogo(logo))
	logo.Click()

	assert.Equal(t, []string{"https://example.com/privacy"}, opener.Opened())
}

func TestRegisterMissingAsset(t *testing.T) {
	ad := &nativeAd{trackers: &trackerClient{}, opener: &recordingOpener{}, headline: "only a headline"}

	assert.False(t, ad.RegisterIconImage(&stubWidget{}))
	assert.False(t, ad.RegisterCallToAction(&stubWidget{}))
	assert.False(t, ad.RegisterAdChoicesLogo(&stubWidget{}))
	assert.False(t, ad.RegisterHeadlineText(nil))
	assert.True(t, ad.RegisterHeadlineText(&stubWidget{}))
}

func TestDestroyDropsSubscribers(t *testing.T) {
	opener := &recordingOpener{}
	_, ad := loadTestAd(t, opener)
	recorder := &eventRecorder{}
	ad.Subscribe(recorder.Handle)

	headline := &stubWidget{}
	require.True(t, ad.RegisterHeadlineText(headline))
	ad.Destroy()
	headline.Click()

	assert.False(t, ad.RegisterCallToAction(&stubWidget{}))
	assert.Equal(t, []adprovider.EventType{adprovider.EventImpression, adprovider.EventPaid}, recorder.Types())
	assert.Empty(t, opener.Opened())
}

func TestClickOpensFallbackWithoutLandingURL(t *testing.T) {
	opener := &recordingOpener{}
	ad := &nativeAd{
		trackers: &trackerClient{},
		opener:   opener,
		headline: "fallback only",
		link:     nativeResponse.Link{Fallback: "https://example.com/fallback"},
	}

	headline := &stubWidget{}
	require.True(t, ad.RegisterHeadlineText(headline))
	headline.Click()

	assert.Equal(t, []string{"https://example.com/fallback"}, opener.Opened())
}

func TestClickWithoutAnyLandingPage(t *testing.T) {
	opener := &recordingOpener{}
	ad := &nativeAd{trackers: &trackerClient{}, opener: opener, headline: "no link"}
	recorder := &eventRecorder{}
	ad.Subscribe(recorder.Handle)

	headline := &stubWidget{}
	require.True(t, ad.RegisterHeadlineText(headline))
	headline.Click()

	assert.Empty(t, opener.Opened())
	assert.Equal(t, []adprovider.EventType{adprovider.EventImpression, adprovider.EventClicked}, recorder.Types())
}

func TestDestroyDetachesClickHandlers(t *testing.T) {
	_, ad := loadTestAd(t, &recordingOpener{})

	headline := headless.NewText("headline")
	cta := &stubWidget{}
	require.True(t, ad.RegisterHeadlineText(headline))
	require.True(t, ad.RegisterCallToAction(cta))
	assert.Equal(t, 1, headline.ClickHandlers())

	ad.Destroy()
	ad.Destroy()

	assert.Equal(t, 0, headline.ClickHandlers())
	assert.Equal(t, 1, cta.removed, "each widget is detached once")
	assert.Nil(t, cta.onClick)
}
