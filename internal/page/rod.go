package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"github.com/ysmood/gson"

	"github.com/joss/xpost/internal/logging"
)

// observerJS installs a MutationObserver on document.body that calls the
// exposed binding once per mutation batch. It is stored under the binding
// name so stopObserverJS can disconnect it.
const observerJS = `(name) => {
	const fire = window[name];
	const obs = new MutationObserver(() => { fire(); });
	obs.observe(document.body, { childList: true, subtree: true, attributes: true });
	window[name + "_observer"] = obs;
}`

const stopObserverJS = `(name) => {
	const obs = window[name + "_observer"];
	if (obs) { obs.disconnect(); delete window[name + "_observer"]; }
}`

const dispatchJS = `function (ev) {
	const init = { bubbles: ev.bubbles, cancelable: ev.cancelable };
	let e;
	if (ev.inputType) {
		e = new InputEvent(ev.type, Object.assign(init, { inputType: ev.inputType, data: ev.data }));
	} else {
		e = new Event(ev.type, init);
	}
	this.dispatchEvent(e);
}`

// RodDocument is a Document backed by a live browser tab.
type RodDocument struct {
	page *rod.Page
	log  *logging.Logger
}

var _ Document = (*RodDocument)(nil)

// NewRodDocument wraps p.
func NewRodDocument(p *rod.Page) *RodDocument {
	return &RodDocument{
		page: p,
		log:  logging.New("page.rod").WithSurface("page"),
	}
}

// Page returns the underlying tab.
func (d *RodDocument) Page() *rod.Page { return d.page }

func (d *RodDocument) URL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (d *RodDocument) Query(ctx context.Context, selector string) (Element, bool, error) {
	ok, el, err := d.page.Context(ctx).Has(selector)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rodElement{el: el}, true, nil
}

func (d *RodDocument) Observe(ctx context.Context) (<-chan struct{}, func(), error) {
	name := "__xpost_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	notify := make(chan struct{}, 64)
	p := d.page.Context(ctx)

	unbind, err := p.Expose(name, func(gson.JSON) (interface{}, error) {
		select {
		case notify <- struct{}{}:
		default:
		}
		return nil, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("expose %s: %w", name, err)
	}
	if _, err := p.Eval(observerJS, name); err != nil {
		_ = unbind()
		return nil, nil, fmt.Errorf("install observer: %w", err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			// The subscriber's ctx may already be done; detach cleanly anyway.
			if _, err := d.page.Eval(stopObserverJS, name); err != nil {
				d.log.Debug("observer_stop_failed", map[string]interface{}{"binding": name, "error": err.Error()})
			}
			if err := unbind(); err != nil {
				d.log.Debug("unbind_failed", map[string]interface{}{"binding": name, "error": err.Error()})
			}
		})
	}
	return notify, stop, nil
}

type rodElement struct {
	el *rod.Element
}

var _ Element = (*rodElement)(nil)

func (e *rodElement) Query(ctx context.Context, selector string) (Element, bool, error) {
	ok, el, err := e.el.Context(ctx).Has(selector)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rodElement{el: el}, true, nil
}

func (e *rodElement) Closest(ctx context.Context, selector string) (Element, bool, error) {
	el, err := e.el.Context(ctx).ElementByJS(rod.Eval(`function (s) { return this.closest(s); }`, selector))
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rodElement{el: el}, true, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("textContent")
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) Disabled(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Disabled()
}

func (e *rodElement) Click(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`function () { this.click(); }`)
	return err
}

func (e *rodElement) Focus(ctx context.Context) error {
	return e.el.Context(ctx).Focus()
}

func (e *rodElement) SetText(ctx context.Context, text string) error {
	_, err := e.el.Context(ctx).Eval(`function (t) { this.textContent = t; }`, text)
	return err
}

func (e *rodElement) Dispatch(ctx context.Context, ev Event) error {
	_, err := e.el.Context(ctx).Eval(dispatchJS, ev)
	return err
}
