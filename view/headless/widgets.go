// Package headless implements the view widgets in memory. It backs the
// standalone runner and the tests, and logs every change at V(2).
package headless

import (
	"sync"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
)

type clickHandler struct {
	id int
	fn func()
}

type clickHandlers struct {
	mu       sync.Mutex
	nextID   int
	handlers []clickHandler
}

// OnClick attaches handler. Calling the returned function detaches it; extra calls do nothing.
func (c *clickHandlers) OnClick(handler func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers = append(c.handlers, clickHandler{id: id, fn: handler})
	return func() { c.remove(id) }
}

func (c *clickHandlers) remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range c.handlers {
		if h.id == id {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			return
		}
	}
}

// Click runs every registered handler in registration order.
func (c *clickHandlers) Click() {
	c.mu.Lock()
	handlers := make([]func(), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h.fn)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// ClickHandlers returns how many handlers are attached.
func (c *clickHandlers) ClickHandlers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

type Panel struct {
	Name string

	mu     sync.Mutex
	active bool
}

func NewPanel(name string, active bool) *Panel {
	return &Panel{Name: name, active: active}
}

func (p *Panel) SetActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != active {
		glog.V(2).Infof("[view] %s active=%t", p.Name, active)
	}
	p.active = active
}

func (p *Panel) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

type Image struct {
	clickHandlers
	Name string

	mu  sync.Mutex
	img *adprovider.Image
}

func NewImage(name string) *Image {
	return &Image{Name: name}
}

func (i *Image) SetImage(img *adprovider.Image) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if img != nil {
		glog.V(2).Infof("[view] %s image=%s (%dx%d)", i.Name, img.URL, img.Width, img.Height)
	}
	i.img = img
}

// Image returns the image currently displayed.
func (i *Image) Image() *adprovider.Image {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.img
}

type Text struct {
	clickHandlers
	Name string

	mu   sync.Mutex
	text string
}

func NewText(name string) *Text {
	return &Text{Name: name}
}

func (t *Text) SetText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	glog.V(2).Infof("[view] %s text=%q", t.Name, text)
	t.text = text
}

func (t *Text) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}

type Button struct {
	clickHandlers
	Name string
}

func NewButton(name string) *Button {
	return &Button{Name: name}
}
