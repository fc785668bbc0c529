package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/joss/xpost/internal/domain"
)

// ErrClosed is returned by calls on a client whose connection ended.
var ErrClosed = errors.New("protocol: connection closed")

// Caller sends one request and decodes its single reply into out.
type Caller interface {
	Call(ctx context.Context, req Request, out any) error
}

// Client is the requesting side of a surface connection. Calls may be
// issued concurrently; replies are matched by reply_to.
type Client struct {
	enc    *Encoder
	dec    *Decoder
	writer io.Writer

	mu      sync.Mutex
	pending map[string]chan *Envelope
	done    chan struct{}
	err     error
}

var _ Caller = (*Client)(nil)

// NewClient creates a client writing requests to w and reading replies from r.
func NewClient(r io.Reader, w io.Writer) *Client {
	c := &Client{
		enc:     NewEncoder(w),
		dec:     NewDecoder(r),
		writer:  w,
		pending: make(map[string]chan *Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	for {
		env, err := c.dec.Decode()
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			continue
		}
		if err != nil {
			c.mu.Lock()
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				c.err = ErrClosed
			} else {
				c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			c.mu.Unlock()
			close(c.done)
			return
		}
		if env.ReplyTo == "" {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ReplyTo]
		delete(c.pending, env.ReplyTo)
		c.mu.Unlock()
		if ok {
			ch <- env
		}
	}
}

// Call implements Caller.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	env := NewEnvelope(req.Type(), req)
	ch := make(chan *Envelope, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		err := c.err
		c.mu.Unlock()
		return err
	default:
	}
	c.pending[env.ID] = ch
	c.mu.Unlock()

	if err := c.send(ctx, env); err != nil {
		c.forget(env.ID)
		return fmt.Errorf("send %s: %w", req.Type(), err)
	}

	select {
	case reply := <-ch:
		if reply.Type == MsgError {
			var p ErrorPayload
			_ = reply.GetPayload(&p)
			return fmt.Errorf("%s: %s", p.Code, p.Message)
		}
		if out == nil {
			return nil
		}
		if err := reply.GetPayload(out); err != nil {
			return fmt.Errorf("decode %s reply: %w", req.Type(), err)
		}
		return nil
	case <-ctx.Done():
		// The remote side keeps working; only our wait ends.
		c.forget(env.ID)
		return ctx.Err()
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return err
	}
}

// send writes env unless ctx ends first. A send cut off mid-line leaves
// the request stream unusable, so the stream is closed.
func (c *Client) send(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sent := make(chan error, 1)
	go func() { sent <- c.enc.Encode(env) }()

	select {
	case err := <-sent:
		return err
	case <-ctx.Done():
		select {
		case err := <-sent:
			if err != nil {
				return err
			}
			return ctx.Err()
		default:
		}
		c.Close()
		return ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close closes the request stream. The serving surface sees EOF and stops.
func (c *Client) Close() error {
	if closer, ok := c.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Done is closed when the reply stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ─────────────────────────────────────────────────────────────────────────────
// Typed calls. Transport failures are folded into the reply shape so callers
// only ever see a result object.
// ─────────────────────────────────────────────────────────────────────────────

// CallGeneratePost sends generatePost.
func CallGeneratePost(ctx context.Context, c Caller, req GeneratePost) domain.GenerationResult {
	var res domain.GenerationResult
	if err := c.Call(ctx, req, &res); err != nil {
		return domain.Failed(domain.KindTransport, err.Error())
	}
	return res
}

// CallSetAPIKey sends setApiKey.
func CallSetAPIKey(ctx context.Context, c Caller, req SetAPIKey) Ack {
	var res Ack
	if err := c.Call(ctx, req, &res); err != nil {
		return Ack{Success: false, Error: err.Error()}
	}
	return res
}

// CallPostToX sends postToX.
func CallPostToX(ctx context.Context, c Caller, req PostToX) domain.PostResult {
	var res domain.PostResult
	if err := c.Call(ctx, req, &res); err != nil {
		return domain.PostResult{Success: false, Error: err.Error(), Kind: domain.KindTransport}
	}
	return res
}

// CallGetCurrentPostID sends getCurrentPostId.
func CallGetCurrentPostID(ctx context.Context, c Caller) (PostContext, error) {
	var res PostContext
	if err := c.Call(ctx, GetCurrentPostID{}, &res); err != nil {
		return PostContext{}, domain.WrapError(domain.KindTransport, "getCurrentPostId", err)
	}
	return res, nil
}
