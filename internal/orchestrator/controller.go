// Package orchestrator is the popup: it validates user input, talks to the
// background and page surfaces and keeps the draft between runs.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joss/xpost/internal/config"
	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/logging"
	"github.com/joss/xpost/internal/protocol"
	"github.com/joss/xpost/internal/settings"
	"github.com/joss/xpost/pkg/llm"
)

// StatusKind is how a status line is presented.
type StatusKind string

const (
	StatusNone    StatusKind = ""
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is a user-facing outcome. Message is shown verbatim.
type Status struct {
	Kind    StatusKind
	Message string
}

// OK reports whether the status is not an error.
func (s Status) OK() bool { return s.Kind != StatusError }

func errorf(format string, args ...any) Status {
	return Status{Kind: StatusError, Message: fmt.Sprintf(format, args...)}
}

// User-facing messages.
const (
	MsgNeedTopic       = "Please enter a topic or idea for your post"
	MsgGenerating      = "Generating content..."
	MsgGenerated       = "Content generated! Feel free to edit before posting."
	MsgNeedKey         = "Please enter an API key"
	MsgBadKeyFormat    = "Invalid OpenAI API key format. Should start with sk-proj- or sk-"
	MsgBadKeyLength    = "Invalid OpenAI API key length"
	MsgSettingsSaved   = "Settings saved successfully!"
	MsgNoContent       = "No content to post"
	MsgNoTab           = "No active tab found"
	MsgWrongSite       = "Please navigate to X (Twitter) before posting"
	MsgPosted          = "Posted successfully!"
	MsgNavigateToPost  = "Please navigate to the post you want to reply to"
	MsgReplyContextErr = "Error getting original post. Make sure you are on a post page."
	MsgDraftCleared    = "Draft cleared"
)

// MaxInputLen caps topics, reply context and post content, in characters.
// It keeps every request well inside protocol.MaxMessageSize.
const MaxInputLen = 10000

func tooLong(text string) (Status, bool) {
	if utf8.RuneCountInString(text) <= MaxInputLen {
		return Status{}, false
	}
	return errorf("Error: input is too long (max %d characters)", MaxInputLen), true
}

// Controller drives one popup session.
type Controller struct {
	background   protocol.Caller
	page         protocol.Caller
	settings     settings.Repository
	catalog      *llm.Catalog
	drafts       *DraftStore
	allowedHosts []string
	log          *logging.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithPage sets the page surface. Without it posting and reply context fail.
func WithPage(page protocol.Caller) Option {
	return func(c *Controller) { c.page = page }
}

// WithDrafts enables draft persistence.
func WithDrafts(d *DraftStore) Option {
	return func(c *Controller) { c.drafts = d }
}

// WithAllowedHosts sets the host globs posting is allowed on.
func WithAllowedHosts(hosts []string) Option {
	return func(c *Controller) { c.allowedHosts = hosts }
}

// New creates a controller talking to background.
func New(background protocol.Caller, repo settings.Repository, catalog *llm.Catalog, opts ...Option) *Controller {
	c := &Controller{
		background:   background,
		settings:     repo,
		catalog:      catalog,
		allowedHosts: config.DefaultAllowedHosts,
		log:          logging.New("orchestrator").WithSurface("popup"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the provider catalog.
func (c *Controller) Catalog() *llm.Catalog { return c.catalog }

// Settings returns the stored settings.
func (c *Controller) Settings(ctx context.Context) (*domain.Settings, error) {
	return c.settings.Load(ctx)
}

// Generate asks the background for a draft. In reply mode the post on
// screen is re-read first so the model sees fresh context.
func (c *Controller) Generate(ctx context.Context, mode domain.Mode, input string) (string, Status) {
	ctx = c.withRequest(ctx)
	log := c.log.WithContext(ctx)

	if strings.TrimSpace(input) == "" {
		return "", c.remember(ctx, Status{Kind: StatusError, Message: MsgNeedTopic}, nil)
	}
	if !mode.Valid() {
		return "", errorf("Error: unknown mode %q", mode)
	}
	if st, over := tooLong(input); over {
		return "", st
	}

	s, err := c.settings.Load(ctx)
	if err != nil {
		return "", errorf("Error: %v", err)
	}
	provider := s.ActiveProvider
	if provider == "" {
		provider = llm.DefaultProvider
	}
	if s.Provider(provider).APIKey == "" {
		return "", c.remember(ctx, errorf("Please set your %s API key first", strings.ToUpper(provider)), nil)
	}

	var original *domain.OriginalPost
	if mode == domain.ModeReply && c.page != nil {
		pc, err := protocol.CallGetCurrentPostID(ctx, c.page)
		if err != nil {
			log.Warn("reply_context_failed", nil, err)
		} else {
			original = pc.OriginalPost
		}
	}

	res := protocol.CallGeneratePost(ctx, c.background, protocol.GeneratePost{
		Mode:         mode,
		Context:      input,
		OriginalPost: original,
	})
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Unknown error occurred"
		}
		log.Warn("generate_failed", map[string]interface{}{"kind": res.Kind}, nil)
		return "", c.remember(ctx, errorf("Error: %s", msg), func(d *Draft) {
			d.Mode = mode
			d.Input = input
		})
	}

	log.Info("generated", map[string]interface{}{"mode": mode, "chars": CharCount(res.Content).N})
	return res.Content, c.remember(ctx, Status{Kind: StatusSuccess, Message: MsgGenerated}, func(d *Draft) {
		d.Mode = mode
		d.Input = input
		d.Generated = res.Content
	})
}

// SaveSettings validates and stores provider credentials.
func (c *Controller) SaveSettings(ctx context.Context, provider, apiKey, model string) Status {
	ctx = c.withRequest(ctx)
	apiKey = strings.TrimSpace(apiKey)
	if provider == "" {
		provider = llm.DefaultProvider
	}

	if apiKey == "" {
		return Status{Kind: StatusError, Message: MsgNeedKey}
	}
	if st := ValidateAPIKey(provider, apiKey); !st.OK() {
		return st
	}

	ack := protocol.CallSetAPIKey(ctx, c.background, protocol.SetAPIKey{
		Provider: provider,
		APIKey:   apiKey,
		Model:    model,
	})
	if !ack.Success {
		c.log.WithContext(ctx).Warn("save_settings_failed", map[string]interface{}{"provider": provider}, nil)
		return errorf("Error saving settings: %s", ack.Error)
	}
	c.log.WithContext(ctx).Info("settings_saved", map[string]interface{}{
		"provider": provider,
		"key":      logging.Redact(apiKey),
	})
	return Status{Kind: StatusSuccess, Message: MsgSettingsSaved}
}

// ValidateAPIKey applies the format rules for keys whose shape is known.
// OpenAI keys start with "sk-"; project keys ("sk-proj-") are at least 20
// characters.
func ValidateAPIKey(provider, apiKey string) Status {
	if provider != llm.ProviderOpenAI {
		return Status{}
	}
	isProject := strings.HasPrefix(apiKey, "sk-proj-")
	if !isProject && !strings.HasPrefix(apiKey, "sk-") {
		return Status{Kind: StatusError, Message: MsgBadKeyFormat}
	}
	if isProject && len(apiKey) < 20 {
		return Status{Kind: StatusError, Message: MsgBadKeyLength}
	}
	return Status{}
}

// Post sends content to the page agent. In reply mode the post on screen
// is the reply target. Success means the submit was attempted.
func (c *Controller) Post(ctx context.Context, content string, mode domain.Mode) Status {
	ctx = c.withRequest(ctx)
	log := c.log.WithContext(ctx)

	if strings.TrimSpace(content) == "" {
		return Status{Kind: StatusError, Message: MsgNoContent}
	}
	if st, over := tooLong(content); over {
		return st
	}
	if c.page == nil {
		return c.remember(ctx, errorf("Error: %s", MsgNoTab), nil)
	}

	pc, err := protocol.CallGetCurrentPostID(ctx, c.page)
	if err != nil {
		log.Warn("tab_lookup_failed", nil, err)
		return c.remember(ctx, errorf("Error: %v", err), nil)
	}
	if !config.HostAllowed(pc.URL, c.allowedHosts) {
		log.Warn("wrong_site", map[string]interface{}{"url": pc.URL}, nil)
		return c.remember(ctx, errorf("Error: %s", MsgWrongSite), nil)
	}

	var replyTo *string
	if mode == domain.ModeReply {
		replyTo = pc.PostID
	}

	res := protocol.CallPostToX(ctx, c.page, protocol.PostToX{Content: content, ReplyToID: replyTo})
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return c.remember(ctx, errorf("Error posting: %s", msg), func(d *Draft) { d.Generated = content })
	}

	log.Info("posted", map[string]interface{}{"reply_to": domain.Deref(replyTo)})
	return c.remember(ctx, Status{Kind: StatusSuccess, Message: MsgPosted}, func(d *Draft) { d.Generated = content })
}

// ReplyTarget is the post on screen, prepared for the reply form.
type ReplyTarget struct {
	Post    *domain.OriginalPost
	PostID  *string
	Input   string // prefilled reply context
	Preview string // "author: text"
}

// ReplyContext reads the post on screen for reply mode.
func (c *Controller) ReplyContext(ctx context.Context) (ReplyTarget, Status) {
	ctx = c.withRequest(ctx)
	if c.page == nil {
		return ReplyTarget{}, Status{Kind: StatusError, Message: MsgReplyContextErr}
	}

	pc, err := protocol.CallGetCurrentPostID(ctx, c.page)
	if err != nil {
		c.log.WithContext(ctx).Warn("reply_context_failed", nil, err)
		return ReplyTarget{}, Status{Kind: StatusError, Message: MsgReplyContextErr}
	}
	if pc.OriginalPost == nil {
		return ReplyTarget{PostID: pc.PostID}, Status{Kind: StatusError, Message: MsgNavigateToPost}
	}

	t := ReplyTarget{
		Post:    pc.OriginalPost,
		PostID:  pc.PostID,
		Input:   fmt.Sprintf("Reply to \"%s\"", pc.OriginalPost.Text),
		Preview: fmt.Sprintf("%s: %s", pc.OriginalPost.Author, pc.OriginalPost.Text),
	}
	c.remember(ctx, Status{}, func(d *Draft) {
		d.Mode = domain.ModeReply
		d.Input = t.Input
	})
	return t, Status{}
}

// Draft returns the restorable draft, if any.
func (c *Controller) Draft(ctx context.Context) (*Draft, bool) {
	if c.drafts == nil {
		return nil, false
	}
	d, ok, err := c.drafts.Load(ctx)
	if err != nil {
		c.log.WithContext(ctx).Warn("draft_load_failed", nil, err)
		return nil, false
	}
	return d, ok
}

// SaveDraft stores the popup fields as they are being edited.
func (c *Controller) SaveDraft(ctx context.Context, mode domain.Mode, input, generated string) {
	c.remember(ctx, Status{}, func(d *Draft) {
		d.Mode = mode
		d.Input = input
		d.Generated = generated
	})
}

// ClearDraft discards the saved draft.
func (c *Controller) ClearDraft(ctx context.Context) Status {
	if c.drafts != nil {
		if err := c.drafts.Clear(ctx); err != nil {
			return errorf("Error: %v", err)
		}
	}
	return Status{Kind: StatusInfo, Message: MsgDraftCleared}
}

// remember records st (when set) and any field updates in the draft, then
// returns st. Draft failures are logged, never surfaced.
func (c *Controller) remember(ctx context.Context, st Status, fn func(*Draft)) Status {
	if c.drafts == nil {
		return st
	}
	_, err := c.drafts.Update(ctx, func(d *Draft) {
		if fn != nil {
			fn(d)
		}
		if st.Kind != StatusNone {
			d.LastStatus = st.Message
			d.LastStatusType = st.Kind
		}
	})
	if err != nil {
		c.log.WithContext(ctx).Warn("draft_save_failed", nil, err)
	}
	return st
}

func (c *Controller) withRequest(ctx context.Context) context.Context {
	if logging.GetRequestID(ctx) != "" {
		return ctx
	}
	return logging.WithRequestID(ctx, logging.NewRequestID())
}

// Count is a character count against the post limit.
type Count struct {
	N    int
	Over bool
}

// CharCount counts characters in text. Over is advisory: nothing is
// truncated or rejected for exceeding domain.MaxPostLength.
func CharCount(text string) Count {
	n := len([]rune(text))
	return Count{N: n, Over: n > domain.MaxPostLength}
}
