package page

import (
	"context"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/protocol"
)

// Handler serves the page surface's messages.
type Handler struct {
	agent *Agent
}

var _ protocol.PageHandler = (*Handler)(nil)

// NewHandler adapts agent to the protocol.
func NewHandler(agent *Agent) *Handler {
	return &Handler{agent: agent}
}

// Routes returns the protocol routes served by the page surface.
func (h *Handler) Routes() protocol.Routes {
	return protocol.Routes{Page: h}
}

func (h *Handler) PostToX(ctx context.Context, req protocol.PostToX) domain.PostResult {
	return h.agent.HandlePost(ctx, req.PostCommand())
}

func (h *Handler) GetCurrentPostID(ctx context.Context, _ protocol.GetCurrentPostID) protocol.PostContext {
	pc := protocol.PostContext{
		PostID:       h.agent.CurrentPostID(ctx),
		OriginalPost: h.agent.OriginalPostContent(ctx),
	}
	if url, err := h.agent.doc.URL(ctx); err == nil {
		pc.URL = url
	}
	return pc
}
