package page

import "context"

// Document is the live page the agent acts on.
type Document interface {
	// URL returns the current location.
	URL(ctx context.Context) (string, error)

	// Query returns the first element matching selector.
	Query(ctx context.Context, selector string) (Element, bool, error)

	// Observe delivers one notification per batch of DOM mutations
	// (child list, subtree and attributes) until stop is called.
	Observe(ctx context.Context) (notify <-chan struct{}, stop func(), err error)
}

// Element is a node in a Document.
type Element interface {
	Query(ctx context.Context, selector string) (Element, bool, error)
	Closest(ctx context.Context, selector string) (Element, bool, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Disabled(ctx context.Context) (bool, error)

	Click(ctx context.Context) error
	Focus(ctx context.Context) error

	// SetText replaces the element's content with text.
	SetText(ctx context.Context, text string) error

	// Dispatch fires a synthetic event at the element.
	Dispatch(ctx context.Context, ev Event) error
}

// Event is a synthetic DOM event. InputType and Data are set for
// InputEvents only.
type Event struct {
	Type       string `json:"type"`
	Bubbles    bool   `json:"bubbles"`
	Cancelable bool   `json:"cancelable"`
	InputType  string `json:"inputType,omitempty"`
	Data       string `json:"data,omitempty"`
}

// IsInput reports whether ev should be constructed as an InputEvent.
func (ev Event) IsInput() bool {
	return ev.InputType != ""
}
