package adprovider

// Image is a decoded-or-raw image asset handed to a widget.
type Image struct {
	URL    string
	Width  int
	Height int
	Data   []byte
}

// Clickable is the part of a host widget a provider needs for click tracking.
// OnClick returns a function that detaches handler again.
type Clickable interface {
	OnClick(handler func()) (remove func())
}

// NativeAd is a loaded native ad. The handle is owned by the provider.
//
// Register* must be called once per displayed field. They return false when the
// provider could not attach tracking to the widget.
type NativeAd interface {
	IconImage() *Image
	HeadlineText() string
	CallToActionText() string
	AdChoicesLogo() *Image
	ResponseInfo() ResponseInfo

	RegisterIconImage(w Clickable) bool
	RegisterHeadlineText(w Clickable) bool
	RegisterCallToAction(w Clickable) bool
	RegisterAdChoicesLogo(w Clickable) bool

	// Subscribe adds a handler for events on this ad. Handlers may be invoked from any goroutine.
	Subscribe(h EventHandler)

	// Destroy releases the ad and detaches every click handler it registered.
	// No events are delivered afterwards.
	Destroy()
}

// EventType enumerates what can happen to a loaded ad.
type EventType string

const (
	EventClicked    EventType = "clicked"
	EventClosed     EventType = "closed"
	EventImpression EventType = "impression"
	EventOpening    EventType = "opening"
	EventPaid       EventType = "paid"
)

// EventTypes returns all possible event types.
func EventTypes() []EventType {
	return []EventType{
		EventClicked,
		EventClosed,
		EventImpression,
		EventOpening,
		EventPaid,
	}
}

// AdValue is the revenue reported by a paid event.
type AdValue struct {
	CurrencyCode string
	ValueMicros  int64
	Precision    Precision
}

// Value returns the amount in currency units.
func (v AdValue) Value() float64 {
	return float64(v.ValueMicros) / 1e6
}

// Precision tells how exact an AdValue is.
type Precision int

const (
	PrecisionUnknown Precision = iota
	PrecisionEstimated
	PrecisionPublisherProvided
	PrecisionPrecise
)

// Event is a notification about a loaded ad. Value is only set on EventPaid.
type Event struct {
	Type         EventType
	ResponseInfo ResponseInfo
	Value        *AdValue
}

// EventHandler receives ad events.
type EventHandler func(Event)
