package protocol

import (
	"context"

	"github.com/joss/xpost/internal/domain"
)

// BackgroundHandler serves the requests owned by the background surface.
type BackgroundHandler interface {
	GeneratePost(ctx context.Context, req GeneratePost) domain.GenerationResult
	SetAPIKey(ctx context.Context, req SetAPIKey) Ack
}

// PageHandler serves the requests owned by the page surface.
type PageHandler interface {
	PostToX(ctx context.Context, req PostToX) domain.PostResult
	GetCurrentPostID(ctx context.Context, req GetCurrentPostID) PostContext
}

// Routes is what one surface serves. A nil handler means the surface does
// not own those messages and replies with ErrUnknownMessage.
type Routes struct {
	Background BackgroundHandler
	Page       PageHandler
}

// Dispatch routes req to its handler and returns the reply payload.
func Dispatch(ctx context.Context, routes Routes, req Request) any {
	switch r := req.(type) {
	case GeneratePost:
		if routes.Background == nil {
			return unknown()
		}
		return routes.Background.GeneratePost(ctx, r)
	case SetAPIKey:
		if routes.Background == nil {
			return unknown()
		}
		return routes.Background.SetAPIKey(ctx, r)
	case PostToX:
		if routes.Page == nil {
			return unknown()
		}
		return routes.Page.PostToX(ctx, r)
	case GetCurrentPostID:
		if routes.Page == nil {
			return unknown()
		}
		return routes.Page.GetCurrentPostID(ctx, r)
	default:
		return unknown()
	}
}

func unknown() Ack {
	return Ack{Success: false, Error: ErrUnknownMessage}
}
