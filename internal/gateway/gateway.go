// Package gateway is the background surface: it owns provider
// configuration and performs the chat-completion call for a draft.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/logging"
	"github.com/joss/xpost/internal/settings"
	"github.com/joss/xpost/pkg/llm"
)

// Fixed sampling parameters for every call.
const (
	Temperature = 0.7
	MaxTokens   = 150
)

const defaultTimeout = 60 * time.Second

// Gateway turns a GenerationRequest into one provider call.
type Gateway struct {
	settings settings.Repository
	catalog  *llm.Catalog
	client   HTTPClient
	log      *logging.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the HTTP client. Its timeout bounds Generate.
func WithHTTPClient(c HTTPClient) Option {
	return func(g *Gateway) { g.client = c }
}

// New creates a gateway reading settings from repo on every call.
func New(repo settings.Repository, catalog *llm.Catalog, opts ...Option) *Gateway {
	g := &Gateway{
		settings: repo,
		catalog:  catalog,
		client:   &http.Client{Timeout: defaultTimeout},
		log:      logging.New("gateway").WithSurface("background"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate never returns an error or panics: every failure, including a
// missing credential, becomes a failed result.
func (g *Gateway) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	start := time.Now()
	log := g.log.WithContext(ctx)

	var content string
	recovery := logging.NewRecoveryHandler("gateway")
	err := recovery.WrapError(func() error {
		var err error
		content, err = g.generate(ctx, req)
		return err
	})
	if err != nil {
		log.Warn("generate_failed", map[string]interface{}{
			"mode": req.Mode,
			"kind": domain.KindOf(err),
		}, err)
		return domain.FailedWith(err)
	}

	log.TimedEvent("generated", start, map[string]interface{}{
		"mode":  req.Mode,
		"chars": len([]rune(content)),
	})
	return domain.Succeeded(content)
}

func (g *Gateway) generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if !req.Mode.Valid() {
		return "", domain.NewError(domain.KindInvalidInput, "generate", "unknown mode: %q", req.Mode)
	}

	s, err := g.settings.Load(ctx)
	if err != nil {
		return "", err
	}

	providerID := s.ActiveProvider
	if providerID == "" {
		providerID = llm.DefaultProvider
	}
	cfg, err := g.catalog.Lookup(providerID)
	if err != nil {
		return "", domain.WrapError(domain.KindInvalidInput, "generate", err)
	}

	ps := s.Provider(providerID)
	if ps.APIKey == "" {
		return "", domain.NewError(domain.KindMissingCredential, "generate",
			"Please set your %s API key first", strings.ToUpper(providerID))
	}
	model := ps.Model
	if model == "" {
		model = cfg.DefaultModel
	}

	vision := cfg.SupportsVision(model)
	body := chatRequest{
		Model:       model,
		Messages:    buildMessages(req, vision),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		Stream:      false,
	}

	g.log.WithContext(ctx).Debug("request", map[string]interface{}{
		"provider": providerID,
		"model":    model,
		"vision":   vision,
		"messages": len(body.Messages),
		"key":      logging.Redact(ps.APIKey),
	})

	return g.complete(ctx, cfg, ps.APIKey, body)
}

func (g *Gateway) complete(ctx context.Context, cfg llm.ProviderConfig, apiKey string, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.KindTransport, "complete", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", domain.WrapError(domain.KindTransport, "complete", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.WrapError(domain.KindTransport, "complete", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewError(domain.KindProviderHTTPError, "complete", "%s",
			providerErrorMessage(raw, cfg.ID, resp.StatusCode))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", &domain.Error{
			Kind:    domain.KindMalformedResponse,
			Op:      "complete",
			Message: "invalid response body: " + err.Error(),
			Err:     err,
		}
	}
	if len(cr.Choices) == 0 {
		return "", domain.NewError(domain.KindMalformedResponse, "complete", "response has no choices")
	}
	if cr.Choices[0].Message.Content == nil {
		return "", domain.NewError(domain.KindMalformedResponse, "complete", "response has no message content")
	}
	return *cr.Choices[0].Message.Content, nil
}

// providerErrorMessage prefers error.message, then a top-level message,
// then a string error, then a synthesized "<PROVIDER> request failed (<status>)".
func providerErrorMessage(body []byte, provider string, status int) string {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if len(parsed.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
		if len(parsed.Error) > 0 {
			var s string
			if json.Unmarshal(parsed.Error, &s) == nil && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("%s request failed (%d)", strings.ToUpper(provider), status)
}
