// Package storelink builds and opens the developer store listing URL behind an
// ad slot's store button.
package storelink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/browser"
)

// DefaultTemplate is the Play Store developer page. %s receives the escaped developer id.
const DefaultTemplate = "https://play.google.com/store/apps/dev?id=%s"

// ErrNoDeveloperID is returned when no developer id was configured.
var ErrNoDeveloperID = errors.New("store link has no developer id")

type Builder struct {
	template    string
	developerID string
}

func NewBuilder(template, developerID string) *Builder {
	if template == "" {
		template = DefaultTemplate
	}
	return &Builder{template: template, developerID: strings.TrimSpace(developerID)}
}

// URL renders the store listing URL.
func (b *Builder) URL() (string, error) {
	if b.developerID == "" {
		return "", ErrNoDeveloperID
	}
	if !strings.Contains(b.template, "%s") {
		return "", fmt.Errorf("store link template %q has no %%s placeholder", b.template)
	}
	raw := fmt.Sprintf(b.template, url.QueryEscape(b.developerID))
	if _, err := url.ParseRequestURI(raw); err != nil {
		return "", fmt.Errorf("store link %q is not a valid URL: %v", raw, err)
	}
	return raw, nil
}

// Opener hands a URL to whatever can display it.
type Opener interface {
	Open(url string) error
}

// LogOpener only logs the URL.
type LogOpener struct{}

func (LogOpener) Open(url string) error {
	glog.Infof("Opening URL: %s", url)
	return nil
}

// SystemOpener launches the operating system's default URL handler.
type SystemOpener struct {
	// open overrides browser.OpenURL; tests use it.
	open func(url string) error
}

func (o SystemOpener) Open(url string) error {
	open := o.open
	if open == nil {
		open = browser.OpenURL
	}
	if err := open(url); err != nil {
		return fmt.Errorf("failed to open %s: %v", url, err)
	}
	return nil
}

// NewOpener returns the opener named by kind: "system" or "log".
func NewOpener(kind string) (Opener, error) {
	switch kind {
	case "", "log":
		return LogOpener{}, nil
	case "system":
		return SystemOpener{}, nil
	default:
		return nil, fmt.Errorf("unknown store opener %q", kind)
	}
}

// Handler returns a click handler that opens the store listing, if one can be built.
func Handler(b *Builder, opener Opener) func() {
	return func() {
		link, err := b.URL()
		if err != nil {
			glog.Warningf("Store button clicked but no link is available: %v", err)
			return
		}
		if err := opener.Open(link); err != nil {
			glog.Errorf("Store button: %v", err)
		}
	}
}
