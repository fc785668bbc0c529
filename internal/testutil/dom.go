package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joss/xpost/internal/page"
)

// FakeDocument is an in-memory page.Document. Elements match the selectors
// they were created with; there is no CSS engine.
type FakeDocument struct {
	mu        sync.Mutex
	url       string
	body      *FakeElement
	observers map[int]chan struct{}
	nextObs   int
	observed  int
	stopped   int
	actions   []string
}

var _ page.Document = (*FakeDocument)(nil)

// NewFakeDocument creates a document at url with an empty body.
func NewFakeDocument(url string) *FakeDocument {
	d := &FakeDocument{url: url, observers: make(map[int]chan struct{})}
	d.body = &FakeElement{doc: d, matches: map[string]bool{"body": true}, attrs: map[string]string{}}
	return d
}

// Body returns the root element.
func (d *FakeDocument) Body() *FakeElement { return d.body }

// SetURL changes the location without notifying observers.
func (d *FakeDocument) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// NewElement creates a detached element matching selectors.
func (d *FakeDocument) NewElement(selectors ...string) *FakeElement {
	el := &FakeElement{doc: d, matches: make(map[string]bool), attrs: make(map[string]string)}
	for _, s := range selectors {
		el.matches[s] = true
	}
	return el
}

// Append attaches child under parent and notifies observers.
func (d *FakeDocument) Append(parent, child *FakeElement) {
	d.mu.Lock()
	child.parent = parent
	parent.children = append(parent.children, child)
	d.mu.Unlock()
	d.Mutate()
}

// AppendAfter attaches child under parent after delay.
func (d *FakeDocument) AppendAfter(delay time.Duration, parent, child *FakeElement) {
	time.AfterFunc(delay, func() { d.Append(parent, child) })
}

// Remove detaches el and notifies observers.
func (d *FakeDocument) Remove(el *FakeElement) {
	d.mu.Lock()
	if p := el.parent; p != nil {
		for i, c := range p.children {
			if c == el {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
		el.parent = nil
	}
	d.mu.Unlock()
	d.Mutate()
}

// Mutate notifies every observer of an unrelated DOM change.
func (d *FakeDocument) Mutate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Observers returns the number of live subscriptions.
func (d *FakeDocument) Observers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// ObserveCalls returns how many subscriptions were opened and closed.
func (d *FakeDocument) ObserveCalls() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observed, d.stopped
}

// Actions returns the interaction log ("click composeButton", "event input", ...).
func (d *FakeDocument) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}

func (d *FakeDocument) record(format string, args ...any) {
	d.actions = append(d.actions, fmt.Sprintf(format, args...))
}

func (d *FakeDocument) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *FakeDocument) Query(ctx context.Context, selector string) (page.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.body.find(selector); el != nil {
		return el, true, nil
	}
	return nil, false, nil
}

func (d *FakeDocument) Observe(context.Context) (<-chan struct{}, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.observed++
	ch := make(chan struct{}, 64)
	d.observers[id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.observers, id)
			d.stopped++
		})
	}
	return ch, stop, nil
}

// FakeElement is a node of a FakeDocument.
type FakeElement struct {
	doc      *FakeDocument
	name     string
	matches  map[string]bool
	attrs    map[string]string
	text     string
	disabled bool
	parent   *FakeElement
	children []*FakeElement
	events   []page.Event
	clicks   int

	// OnClick runs after a click is recorded, outside the document lock.
	OnClick func()
}

var _ page.Element = (*FakeElement)(nil)

// Named labels the element in the action log.
func (e *FakeElement) Named(name string) *FakeElement {
	e.name = name
	return e
}

// WithText sets the text content.
func (e *FakeElement) WithText(text string) *FakeElement {
	e.text = text
	return e
}

// WithAttr sets an attribute.
func (e *FakeElement) WithAttr(name, value string) *FakeElement {
	e.attrs[name] = value
	return e
}

// WithDisabled marks the element disabled.
func (e *FakeElement) WithDisabled(disabled bool) *FakeElement {
	e.disabled = disabled
	return e
}

// Children attaches children without notifying observers.
func (e *FakeElement) Children(children ...*FakeElement) *FakeElement {
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

// Content returns the current text content.
func (e *FakeElement) Content() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.text
}

// Events returns the synthetic events dispatched at the element.
func (e *FakeElement) Events() []page.Event {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return append([]page.Event(nil), e.events...)
}

// EventTypes returns the dispatched event names in order.
func (e *FakeElement) EventTypes() []string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

// Clicks returns how many times the element was clicked.
func (e *FakeElement) Clicks() int {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.clicks
}

func (e *FakeElement) label() string {
	if e.name != "" {
		return e.name
	}
	for s := range e.matches {
		return s
	}
	return "element"
}

func (e *FakeElement) find(selector string) *FakeElement {
	for _, c := range e.children {
		if c.matches[selector] {
			return c
		}
		if found := c.find(selector); found != nil {
			return found
		}
	}
	return nil
}

func (e *FakeElement) Query(ctx context.Context, selector string) (page.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if el := e.find(selector); el != nil {
		return el, true, nil
	}
	return nil, false, nil
}

func (e *FakeElement) Closest(_ context.Context, selector string) (page.Element, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for n := e; n != nil; n = n.parent {
		if n.matches[selector] {
			return n, true, nil
		}
	}
	return nil, false, nil
}

func (e *FakeElement) Text(context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.text, nil
}

func (e *FakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *FakeElement) Disabled(context.Context) (bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.disabled, nil
}

func (e *FakeElement) Click(context.Context) error {
	e.doc.mu.Lock()
	e.clicks++
	e.doc.record("click %s", e.label())
	onClick := e.OnClick
	e.doc.mu.Unlock()
	if onClick != nil {
		onClick()
	}
	return nil
}

func (e *FakeElement) Focus(context.Context) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.record("focus %s", e.label())
	return nil
}

func (e *FakeElement) SetText(_ context.Context, text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.text = text
	e.doc.record("set %s %q", e.label(), text)
	return nil
}

func (e *FakeElement) Dispatch(_ context.Context, ev page.Event) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.events = append(e.events, ev)
	e.doc.record("event %s", ev.Type)
	return nil
}
