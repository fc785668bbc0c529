package gateway

import (
	"context"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/logging"
	"github.com/joss/xpost/internal/protocol"
	"github.com/joss/xpost/internal/settings"
)

// Background serves the background surface's messages.
type Background struct {
	gateway  *Gateway
	settings settings.Repository
	log      *logging.Logger
}

var _ protocol.BackgroundHandler = (*Background)(nil)

// NewBackground wires the gateway and settings into a protocol handler.
func NewBackground(g *Gateway, repo settings.Repository) *Background {
	return &Background{
		gateway:  g,
		settings: repo,
		log:      logging.New("background").WithSurface("background"),
	}
}

// Routes returns the protocol routes served by the background surface.
func (b *Background) Routes() protocol.Routes {
	return protocol.Routes{Background: b}
}

func (b *Background) GeneratePost(ctx context.Context, req protocol.GeneratePost) domain.GenerationResult {
	return b.gateway.Generate(ctx, req.GenerationRequest())
}

func (b *Background) SetAPIKey(ctx context.Context, req protocol.SetAPIKey) protocol.Ack {
	if err := b.settings.Save(ctx, req.Provider, req.APIKey, req.Model); err != nil {
		b.log.WithContext(ctx).Warn("save_settings_failed", map[string]interface{}{
			"provider": req.Provider,
		}, err)
		return protocol.Ack{Success: false, Error: err.Error()}
	}
	b.log.WithContext(ctx).Info("settings_saved", map[string]interface{}{
		"provider": req.Provider,
		"model":    req.Model,
	})
	return protocol.Ack{Success: true}
}
