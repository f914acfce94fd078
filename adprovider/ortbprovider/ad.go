package ortbprovider

import (
	"math"
	"sync"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/storelink"
	nativeResponse "github.com/prebid/openrtb/v20/native1/response"
)

// nativeAd is the adprovider.NativeAd built from a winning bid.
type nativeAd struct {
	info         adprovider.ResponseInfo
	icon         *adprovider.Image
	adChoices    *adprovider.Image
	headline     string
	callToAction string
	sponsor      string

	link           nativeResponse.Link
	privacyURL     string
	impressionURLs []string
	price          float64
	currency       string

	trackers *trackerClient
	opener   storelink.Opener

	mu        sync.Mutex
	handlers  []adprovider.EventHandler
	unbinders []func()
	impressed bool
	destroyed bool
}

func (a *nativeAd) IconImage() *adprovider.Image          { return a.icon }
func (a *nativeAd) HeadlineText() string                  { return a.headline }
func (a *nativeAd) CallToActionText() string              { return a.callToAction }
func (a *nativeAd) AdChoicesLogo() *adprovider.Image      { return a.adChoices }
func (a *nativeAd) ResponseInfo() adprovider.ResponseInfo { return a.info }

func (a *nativeAd) RegisterIconImage(w adprovider.Clickable) bool {
	return a.register(a.icon != nil, w, a.clickThrough)
}

func (a *nativeAd) RegisterHeadlineText(w adprovider.Clickable) bool {
	return a.register(a.headline != "", w, a.clickThrough)
}

func (a *nativeAd) RegisterCallToAction(w adprovider.Clickable) bool {
	return a.register(a.callToAction != "", w, a.clickThrough)
}

func (a *nativeAd) RegisterAdChoicesLogo(w adprovider.Clickable) bool {
	return a.register(a.privacyURL != "", w, a.openPrivacy)
}

func (a *nativeAd) register(present bool, w adprovider.Clickable, onClick func()) bool {
	if !present || w == nil {
		return false
	}
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return false
	}
	first := !a.impressed
	a.impressed = true
	a.unbinders = append(a.unbinders, w.OnClick(onClick))
	a.mu.Unlock()

	if first {
		a.impress()
	}
	return true
}

// impress fires the impression trackers and reports the impression and its value.
func (a *nativeAd) impress() {
	a.trackers.Fire("impression", a.impressionURLs)
	a.emit(adprovider.Event{Type: adprovider.EventImpression})
	if a.price > 0 {
		a.emit(adprovider.Event{
			Type: adprovider.EventPaid,
			Value: &adprovider.AdValue{
				CurrencyCode: a.currency,
				// Bid prices are CPM.
				ValueMicros: int64(math.Round(a.price / 1000 * 1e6)),
				Precision:   adprovider.PrecisionPrecise,
			},
		})
	}
}

func (a *nativeAd) clickThrough() {
	if a.isDestroyed() {
		return
	}
	a.trackers.Fire("click", a.link.ClickTrackers)
	a.emit(adprovider.Event{Type: adprovider.EventClicked})

	target := a.link.URL
	if target == "" {
		target = a.link.Fallback
	}
	if target == "" {
		glog.Warningf("Native ad %s has no landing page", a.info.ResponseID)
		return
	}
	a.emit(adprovider.Event{Type: adprovider.EventOpening})
	if err := a.opener.Open(target); err != nil {
		glog.Errorf("Failed to open landing page %s: %v", target, err)
	}
	a.emit(adprovider.Event{Type: adprovider.EventClosed})
}

func (a *nativeAd) openPrivacy() {
	if a.isDestroyed() {
		return
	}
	if err := a.opener.Open(a.privacyURL); err != nil {
		glog.Errorf("Failed to open privacy page %s: %v", a.privacyURL, err)
	}
}

func (a *nativeAd) Subscribe(h adprovider.EventHandler) {
	if h == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.handlers = append(a.handlers, h)
}

func (a *nativeAd) emit(e adprovider.Event) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	handlers := append([]adprovider.EventHandler(nil), a.handlers...)
	a.mu.Unlock()

	e.ResponseInfo = a.info
	for _, h := range handlers {
		h(e)
	}
}

func (a *nativeAd) isDestroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

// Destroy drops every subscriber and detaches the ad from its widgets. Later
// clicks and registrations do nothing.
func (a *nativeAd) Destroy() {
	a.mu.Lock()
	unbinders := a.unbinders
	a.destroyed = true
	a.handlers = nil
	a.unbinders = nil
	a.mu.Unlock()

	for _, unbind := range unbinders {
		if unbind != nil {
			unbind()
		}
	}
}
