package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joss/xpost/internal/logging"
)

// Server is one surface's event loop: it handles requests strictly one at
// a time, in arrival order.
type Server struct {
	surface string
	routes  Routes
	enc     *Encoder
	dec     *Decoder
	log     *logging.Logger
}

// NewServer creates a server reading requests from r and writing replies to w.
func NewServer(surface string, routes Routes, r io.Reader, w io.Writer) *Server {
	return &Server{
		surface: surface,
		routes:  routes,
		enc:     NewEncoder(w),
		dec:     NewDecoder(r),
		log:     logging.New("protocol").WithSurface(surface),
	}
}

// Serve runs until the reader is exhausted or ctx is done.
// A closed reader is a clean shutdown and returns nil. A broken stream,
// such as a line over MaxMessageSize, ends the loop with an error.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		env, err := s.dec.Decode()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			// The line is lost; without an id nobody can be answered.
			s.log.Warn("decode_failed", nil, err)
			continue
		}
		if err != nil {
			s.log.Error("stream_failed", nil, err)
			return fmt.Errorf("read request: %w", err)
		}

		if err := s.handle(ctx, env); err != nil {
			return fmt.Errorf("reply %s: %w", env.ID, err)
		}
	}
}

func (s *Server) handle(ctx context.Context, env *Envelope) error {
	start := time.Now()
	ctx = logging.WithRequestID(ctx, env.ID)
	log := s.log.WithContext(ctx)

	req, err := DecodeRequest(env)
	if err != nil {
		var unknownErr *UnknownMessageError
		if errors.As(err, &unknownErr) {
			log.Warn("unknown_message", map[string]interface{}{"type": env.Type}, nil)
			return s.enc.Encode(NewReply(env.ID, unknown()))
		}
		log.Warn("bad_request", map[string]interface{}{"type": env.Type}, err)
		return s.enc.Encode(NewErrorReply(env.ID, "bad_request", err.Error()))
	}

	log.Debug("received", map[string]interface{}{"type": env.Type})

	var reply any
	recovery := logging.NewRecoveryHandler("protocol." + s.surface)
	if perr := recovery.WrapError(func() error {
		reply = Dispatch(ctx, s.routes, req)
		return nil
	}); perr != nil {
		reply = Ack{Success: false, Error: perr.Error()}
	}

	log.TimedEvent("handled", start, map[string]interface{}{"type": env.Type})
	return s.enc.Encode(NewReply(env.ID, reply))
}
