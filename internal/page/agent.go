// Package page is the page surface: it finds elements in the live post
// page, reads the post on screen and drives the composer.
package page

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/logging"
)

// Timings are the fixed pauses the agent takes between page actions.
type Timings struct {
	// FocusSettle follows focus and the final typing event.
	FocusSettle time.Duration
	// AffordanceSettle follows clicking compose/reply and typing.
	AffordanceSettle time.Duration
	// WaitTimeout is the default WaitForElement timeout.
	WaitTimeout time.Duration
}

// DefaultTimings returns the pauses x.com's composer needs.
func DefaultTimings() Timings {
	return Timings{
		FocusSettle:      100 * time.Millisecond,
		AffordanceSettle: 500 * time.Millisecond,
		WaitTimeout:      5 * time.Second,
	}
}

// Agent acts on one Document. Create one per page.
type Agent struct {
	id        string
	doc       Document
	selectors Selectors
	timings   Timings
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logging.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithSelectors replaces the selector table.
func WithSelectors(s Selectors) Option {
	return func(a *Agent) { a.selectors = s }
}

// WithTimings replaces the pauses.
func WithTimings(t Timings) Option {
	return func(a *Agent) { a.timings = t }
}

// WithSleep replaces how the agent pauses between actions.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Agent) { a.sleep = fn }
}

// New creates an agent bound to doc.
func New(doc Document, opts ...Option) *Agent {
	a := &Agent{
		id:        uuid.NewString(),
		doc:       doc,
		selectors: DefaultSelectors(),
		timings:   DefaultTimings(),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.New("page").WithSurface("page")
	a.log.Debug("agent_created", map[string]interface{}{"agent": a.id})
	return a
}

// ID identifies this agent instance in logs.
func (a *Agent) ID() string { return a.id }

// Selectors returns the agent's selector table.
func (a *Agent) Selectors() Selectors { return a.selectors }

// Document returns the page the agent acts on.
func (a *Agent) Document() Document { return a.doc }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) query(ctx context.Context, name string) (Element, bool, error) {
	return a.doc.Query(ctx, a.selectors.Resolve(name))
}

func (a *Agent) queryIn(ctx context.Context, el Element, name string) (Element, bool, error) {
	return el.Query(ctx, a.selectors.Resolve(name))
}

// WaitForElement resolves with the first element matching name once it
// exists. It checks immediately, then re-checks on every DOM mutation until
// timeout. The mutation subscription is released on every outcome.
func (a *Agent) WaitForElement(ctx context.Context, name string, timeout time.Duration) (Element, error) {
	selector := a.selectors.Resolve(name)
	if timeout <= 0 {
		timeout = a.timings.WaitTimeout
	}
	log := a.log.WithContext(ctx)
	log.Debug("wait_element", map[string]interface{}{"selector": selector, "timeout_ms": timeout.Milliseconds()})

	notify, stop, err := a.doc.Observe(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransport, "wait", err)
	}
	defer stop()

	if el, ok, err := a.doc.Query(ctx, selector); err != nil {
		return nil, domain.WrapError(domain.KindTransport, "wait", err)
	} else if ok {
		log.Debug("element_found", map[string]interface{}{"selector": selector, "immediate": true})
		return el, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case _, open := <-notify:
			if !open {
				return nil, domain.NewError(domain.KindTransport, "wait", "page closed while waiting for %s", selector)
			}
			el, ok, err := a.doc.Query(ctx, selector)
			if err != nil {
				return nil, domain.WrapError(domain.KindTransport, "wait", err)
			}
			if ok {
				log.Debug("element_found", map[string]interface{}{"selector": selector, "immediate": false})
				return el, nil
			}
		case <-timer.C:
			log.Debug("element_timeout", map[string]interface{}{"selector": selector})
			return nil, domain.NewError(domain.KindElementTimeout, "wait",
				"Element %s not found within %dms", selector, timeout.Milliseconds())
		case <-ctx.Done():
			return nil, domain.WrapError(domain.KindTransport, "wait", ctx.Err())
		}
	}
}

// CurrentPostID returns the id of the post on screen: from the URL when it
// is a status page, else from the first post's timestamp link. Nil when
// neither yields an id.
func (a *Agent) CurrentPostID(ctx context.Context) *string {
	id, err := a.currentPostID(ctx)
	if err != nil {
		a.log.WithContext(ctx).Warn("post_id_failed", nil, err)
		return nil
	}
	return id
}

func (a *Agent) currentPostID(ctx context.Context) (*string, error) {
	url, err := a.doc.URL(ctx)
	if err != nil {
		return nil, err
	}
	if id, ok := domain.ExtractPostID(url); ok {
		return &id, nil
	}

	article, ok, err := a.query(ctx, OriginalPost)
	if err != nil || !ok {
		return nil, err
	}
	ts, ok, err := a.queryIn(ctx, article, TimeElement)
	if err != nil || !ok {
		return nil, err
	}
	link, ok, err := ts.Closest(ctx, a.selectors.Resolve(PostLink))
	if err != nil || !ok {
		return nil, err
	}
	href, ok, err := link.Attribute(ctx, "href")
	if err != nil || !ok {
		return nil, err
	}
	if id, ok := domain.ExtractPostID(href); ok {
		return &id, nil
	}
	return nil, nil
}

// OriginalPostContent scrapes the first post on the page. It returns nil
// when the post container or its text is missing.
func (a *Agent) OriginalPostContent(ctx context.Context) *domain.OriginalPost {
	post, err := a.originalPost(ctx)
	if err != nil {
		a.log.WithContext(ctx).Warn("original_post_failed", map[string]interface{}{
			"kind": domain.KindOf(err),
		}, err)
		return nil
	}
	return post
}

func (a *Agent) originalPost(ctx context.Context) (*domain.OriginalPost, error) {
	article, ok, err := a.query(ctx, OriginalPost)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransport, "original post", err)
	}
	if !ok {
		return nil, domain.NewError(domain.KindPageStructureMissing, "original post", "Could not find original post")
	}

	textEl, ok, err := a.queryIn(ctx, article, OriginalPostText)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransport, "original post", err)
	}
	if !ok {
		return nil, domain.NewError(domain.KindPageStructureMissing, "original post", "Could not find tweet text")
	}
	text, err := textEl.Text(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransport, "original post", err)
	}

	post := &domain.OriginalPost{Text: text}

	if img, err := a.firstPhoto(ctx, article); err != nil {
		return nil, domain.WrapError(domain.KindTransport, "original post", err)
	} else if img != nil {
		post.HasImage = true
		post.ImageData = img
	}

	if author, ok, err := a.queryIn(ctx, article, AuthorName); err != nil {
		return nil, domain.WrapError(domain.KindTransport, "original post", err)
	} else if ok {
		if post.Author, err = author.Text(ctx); err != nil {
			return nil, domain.WrapError(domain.KindTransport, "original post", err)
		}
	}

	post.ID = a.CurrentPostID(ctx)
	return post, nil
}

func (a *Agent) firstPhoto(ctx context.Context, article Element) (*domain.ImageData, error) {
	photo, ok, err := a.queryIn(ctx, article, TweetPhoto)
	if err != nil || !ok {
		return nil, err
	}
	img, ok, err := a.queryIn(ctx, photo, TweetPhotoImage)
	if err != nil || !ok {
		return nil, err
	}
	src, _, err := img.Attribute(ctx, "src")
	if err != nil {
		return nil, err
	}
	alt, _, err := img.Attribute(ctx, "alt")
	if err != nil {
		return nil, err
	}
	return &domain.ImageData{URL: src, Alt: alt}, nil
}
