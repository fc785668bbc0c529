package protocol

import (
	"context"
	"io"

	"github.com/joss/xpost/internal/logging"
)

// Surface is an in-process server with its own event loop plus the client
// connected to it.
type Surface struct {
	*Client
	name    string
	stopped chan struct{}
	err     error
}

// Start runs routes as the named surface on a goroutine and returns a
// connected client.
func Start(ctx context.Context, name string, routes Routes) *Surface {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	s := &Surface{
		Client:  NewClient(respR, reqW),
		name:    name,
		stopped: make(chan struct{}),
	}

	srv := NewServer(name, routes, reqR, respW)
	logging.SafeGo("protocol."+name, func() {
		defer func() {
			reqR.Close()
			respW.Close()
			close(s.stopped)
		}()
		s.err = srv.Serve(ctx)
	})
	return s
}

// Name returns the surface name.
func (s *Surface) Name() string { return s.name }

// Close stops the surface and waits for its loop to exit.
func (s *Surface) Close() error {
	if err := s.Client.Close(); err != nil {
		return err
	}
	<-s.stopped
	return s.err
}
