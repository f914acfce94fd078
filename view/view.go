// Package view holds the widget capabilities an ad slot renders into. The host
// application supplies the implementations; any of them may be absent.
package view

import "github.com/monsterutils/adrefresh/adprovider"

// Panel is a container that can be shown or hidden.
type Panel interface {
	SetActive(active bool)
	Active() bool
}

// Image displays an image asset.
type Image interface {
	adprovider.Clickable
	SetImage(img *adprovider.Image)
}

// Text displays a line of text.
type Text interface {
	adprovider.Clickable
	SetText(text string)
}

// Button invokes its handlers when the user activates it.
type Button interface {
	OnClick(handler func()) (remove func())
}

// Widgets groups the widgets bound to one native ad slot.
type Widgets struct {
	AdView          Panel
	PlaceholderView Panel
	Placeholder     Image
	Icon            Image
	Headline        Text
	CallToAction    Text
	AdChoices       Image
	StoreButton     Button
}
