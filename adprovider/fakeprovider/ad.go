package fakeprovider

import (
	"sync"

	"github.com/monsterutils/adrefresh/adprovider"
)

// Ad is an in-memory adprovider.NativeAd.
type Ad struct {
	Info         adprovider.ResponseInfo
	Icon         *adprovider.Image
	Headline     string
	CallToAction string
	AdChoices    *adprovider.Image

	// RegisterResult is returned by every Register* call.
	RegisterResult bool

	mu         sync.Mutex
	handlers   []adprovider.EventHandler
	registered map[string]adprovider.Clickable
	unbinders  []func()
	destroyed  bool
}

// NewAd builds an ad with every asset populated.
func NewAd(info adprovider.ResponseInfo) *Ad {
	return &Ad{
		Info:           info,
		Icon:           &adprovider.Image{URL: "fake://icon.png", Width: 64, Height: 64},
		Headline:       "Play " + info.ResponseID,
		CallToAction:   "Install",
		AdChoices:      &adprovider.Image{URL: "fake://adchoices.png", Width: 16, Height: 16},
		RegisterResult: true,
		registered:     make(map[string]adprovider.Clickable),
	}
}

func (a *Ad) IconImage() *adprovider.Image          { return a.Icon }
func (a *Ad) HeadlineText() string                  { return a.Headline }
func (a *Ad) CallToActionText() string              { return a.CallToAction }
func (a *Ad) AdChoicesLogo() *adprovider.Image      { return a.AdChoices }
func (a *Ad) ResponseInfo() adprovider.ResponseInfo { return a.Info }

func (a *Ad) RegisterIconImage(w adprovider.Clickable) bool {
	return a.register("icon", w)
}

func (a *Ad) RegisterHeadlineText(w adprovider.Clickable) bool {
	return a.register("headline", w)
}

func (a *Ad) RegisterCallToAction(w adprovider.Clickable) bool {
	return a.register("call_to_action", w)
}

func (a *Ad) RegisterAdChoicesLogo(w adprovider.Clickable) bool {
	return a.register("ad_choices", w)
}

func (a *Ad) register(field string, w adprovider.Clickable) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.RegisterResult || a.destroyed {
		return false
	}
	if a.registered == nil {
		a.registered = make(map[string]adprovider.Clickable)
	}
	a.registered[field] = w
	a.unbinders = append(a.unbinders, w.OnClick(func() { a.Emit(adprovider.Event{Type: adprovider.EventClicked}) }))
	return true
}

// Registered reports whether a widget was registered for field.
func (a *Ad) Registered(field string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.registered[field]
	return ok
}

func (a *Ad) Subscribe(h adprovider.EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.handlers = append(a.handlers, h)
}

// Emit delivers e to every subscriber on the caller's goroutine. The ad's
// response info is filled in when e does not carry one.
func (a *Ad) Emit(e adprovider.Event) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	if e.ResponseInfo.ResponseID == "" {
		e.ResponseInfo = a.Info
	}
	handlers := make([]adprovider.EventHandler, len(a.handlers))
	copy(handlers, a.handlers)
	a.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

// EmitPaid delivers a paid event.
func (a *Ad) EmitPaid(currency string, micros int64) {
	a.Emit(adprovider.Event{
		Type:  adprovider.EventPaid,
		Value: &adprovider.AdValue{CurrencyCode: currency, ValueMicros: micros, Precision: adprovider.PrecisionEstimated},
	})
}

func (a *Ad) Destroy() {
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

// Destroyed reports whether Destroy was called.
func (a *Ad) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}
