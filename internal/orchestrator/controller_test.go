package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/gateway"
	"github.com/joss/xpost/internal/page"
	"github.com/joss/xpost/internal/protocol"
	"github.com/joss/xpost/internal/settings"
	"github.com/joss/xpost/internal/store"
	"github.com/joss/xpost/internal/testutil"
	"github.com/joss/xpost/pkg/llm"
)

type harness struct {
	ctrl     *Controller
	kv       *store.Memory
	repo     *settings.KVRepository
	x        *testutil.XPage
	calls    *atomic.Int32
	lastBody *map[string]any
}

// newHarness wires a background surface (gateway against a fake provider)
// and a page surface (agent against a fake page) to a controller.
func newHarness(t *testing.T, x *testutil.XPage, reply string) *harness {
	t.Helper()
	ctx := testutil.Context(t, 10*time.Second)

	calls := &atomic.Int32{}
	body := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)

	catalog := llm.DefaultCatalog(map[string]string{"openai": srv.URL, "xai": srv.URL})
	kv := store.NewMemory()
	repo := settings.NewRepository(kv, catalog)

	bg := protocol.Start(ctx, "background", gateway.NewBackground(gateway.New(repo, catalog), repo).Routes())
	t.Cleanup(func() { bg.Close() })

	opts := []Option{WithDrafts(NewDraftStore(kv))}
	if x != nil {
		agent := page.New(x.Doc, page.WithSleep(testutil.NoSleep), page.WithTimings(page.Timings{WaitTimeout: time.Second}))
		pg := protocol.Start(ctx, "page", page.NewHandler(agent).Routes())
		t.Cleanup(func() { pg.Close() })
		opts = append(opts, WithPage(pg))
	}

	return &harness{
		ctrl:     New(bg, repo, catalog, opts...),
		kv:       kv,
		repo:     repo,
		x:        x,
		calls:    calls,
		lastBody: &body,
	}
}

func TestScenarioNewPostEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testutil.HomePage(), "Pour-over brings out the fruit notes.")

	st := h.ctrl.SaveSettings(ctx, "openai", "sk-test1234567890abcdef", "gpt-4o")
	require.Equal(t, Status{Kind: StatusSuccess, Message: MsgSettingsSaved}, st)

	content, st := h.ctrl.Generate(ctx, domain.ModeNewPost, "coffee brewing methods")
	require.Equal(t, StatusSuccess, st.Kind, st.Message)
	assert.Equal(t, MsgGenerated, st.Message)
	assert.Equal(t, "Pour-over brings out the fruit notes.", content)
	assert.Equal(t, int32(1), h.calls.Load())

	st = h.ctrl.Post(ctx, content, domain.ModeNewPost)
	assert.Equal(t, Status{Kind: StatusSuccess, Message: MsgPosted}, st)
	assert.Equal(t, content, h.x.Input.Content())
	assert.Equal(t, 1, h.x.Compose.Clicks())
	assert.Equal(t, 1, h.x.Submit.Clicks())

	d, ok := h.ctrl.Draft(ctx)
	require.True(t, ok)
	assert.Equal(t, "coffee brewing methods", d.Input)
	assert.Equal(t, content, d.Generated)
	assert.Equal(t, MsgPosted, d.LastStatus)
	assert.Equal(t, StatusSuccess, d.LastStatusType)
}

func TestScenarioReplyEndToEnd(t *testing.T) {
	ctx := context.Background()
	x := testutil.StatusPage("https://x.com/jack/status/20", testutil.PostFixture{
		Text:   "just setting up my twttr",
		Author: "jack",
	})
	h := newHarness(t, x, "Welcome aboard!")
	require.Equal(t, StatusSuccess, h.ctrl.SaveSettings(ctx, "xai", "xai-key", "grok-2-1212").Kind)

	target, st := h.ctrl.ReplyContext(ctx)
	require.True(t, st.OK())
	assert.Equal(t, `Reply to "just setting up my twttr"`, target.Input)
	assert.Equal(t, "jack: just setting up my twttr", target.Preview)
	assert.Equal(t, "20", domain.Deref(target.PostID))

	content, st := h.ctrl.Generate(ctx, domain.ModeReply, target.Input)
	require.Equal(t, StatusSuccess, st.Kind, st.Message)
	assert.Equal(t, "grok-2-1212", (*h.lastBody)["model"])
	msgs := (*h.lastBody)["messages"].([]any)
	assert.Contains(t, msgs[1].(map[string]any)["content"], "just setting up my twttr")

	st = h.ctrl.Post(ctx, content, domain.ModeReply)
	assert.Equal(t, MsgPosted, st.Message)
	assert.Equal(t, 1, x.Reply.Clicks())
	assert.Equal(t, 0, x.Compose.Clicks())
	assert.Equal(t, "Welcome aboard!", x.Input.Content())
}

func TestGenerateValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, "unused")

	_, st := h.ctrl.Generate(ctx, domain.ModeNewPost, "   ")
	assert.Equal(t, Status{Kind: StatusError, Message: MsgNeedTopic}, st)

	_, st = h.ctrl.Generate(ctx, domain.ModeNewPost, "coffee")
	assert.Equal(t, Status{Kind: StatusError, Message: "Please set your OPENAI API key first"}, st)

	require.NoError(t, h.repo.Save(ctx, "xai", "", ""))
	_, st = h.ctrl.Generate(ctx, domain.ModeNewPost, "coffee")
	assert.Equal(t, "Please set your XAI API key first", st.Message)

	assert.Equal(t, int32(0), h.calls.Load())
}

func TestOversizedInputIsRejectedBeforeSending(t *testing.T) {
	ctx := context.Background()
	x := testutil.HomePage()
	h := newHarness(t, x, "unused")
	require.NoError(t, h.repo.Save(ctx, "openai", "sk-test123", "gpt-4o"))

	huge := strings.Repeat("a", 2*protocol.MaxMessageSize)

	content, st := h.ctrl.Generate(ctx, domain.ModeNewPost, huge)
	assert.Empty(t, content)
	assert.Equal(t, StatusError, st.Kind)
	assert.Contains(t, st.Message, "too long")
	assert.Equal(t, int32(0), h.calls.Load())

	st = h.ctrl.Post(ctx, huge, domain.ModeNewPost)
	assert.Equal(t, StatusError, st.Kind)
	assert.Contains(t, st.Message, "too long")
	assert.Equal(t, 0, x.Compose.Clicks())

	_, st = h.ctrl.Generate(ctx, domain.ModeNewPost, strings.Repeat("é", MaxInputLen))
	assert.NotContains(t, st.Message, "too long")
}

func TestGenerateReplyWithoutPageStillGenerates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, "Agreed.")
	require.NoError(t, h.repo.Save(ctx, "openai", "sk-test123", "gpt-4o"))

	content, st := h.ctrl.Generate(ctx, domain.ModeReply, "pasted post text")

	assert.Equal(t, StatusSuccess, st.Kind)
	assert.Equal(t, "Agreed.", content)
	msgs := (*h.lastBody)["messages"].([]any)
	assert.Contains(t, msgs[1].(map[string]any)["content"], "pasted post text")
}

func TestSaveSettingsValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, "unused")

	tests := []struct {
		provider, key string
		want          Status
	}{
		{"openai", "  ", Status{Kind: StatusError, Message: MsgNeedKey}},
		{"openai", "pk-live-abc", Status{Kind: StatusError, Message: MsgBadKeyFormat}},
		{"openai", "sk-proj-short", Status{Kind: StatusError, Message: MsgBadKeyLength}},
		{"openai", "sk-test123", Status{Kind: StatusSuccess, Message: MsgSettingsSaved}},
		{"xai", "xai-anything", Status{Kind: StatusSuccess, Message: MsgSettingsSaved}},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, h.ctrl.SaveSettings(ctx, tt.provider, tt.key, ""))
		})
	}

	st := h.ctrl.SaveSettings(ctx, "mistral", "k", "")
	assert.Equal(t, StatusError, st.Kind)
	assert.Contains(t, st.Message, "Error saving settings: ")

	s, err := h.ctrl.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "xai", s.ActiveProvider)
	assert.Equal(t, "sk-test123", s.Provider("openai").APIKey)
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, nil, "unused")
	assert.Equal(t, Status{Kind: StatusError, Message: MsgNoContent}, h.ctrl.Post(ctx, "", domain.ModeNewPost))
	assert.Equal(t, "Error: "+MsgNoTab, h.ctrl.Post(ctx, "hi", domain.ModeNewPost).Message)

	x := testutil.HomePage()
	x.Doc.SetURL("https://example.com/")
	h = newHarness(t, x, "unused")
	assert.Equal(t, "Error: "+MsgWrongSite, h.ctrl.Post(ctx, "hi", domain.ModeNewPost).Message)
	assert.Equal(t, 0, x.Compose.Clicks())
}

func TestPostFailureReportsAgentError(t *testing.T) {
	ctx := context.Background()
	x := testutil.HomePage()
	x.Compose.OnClick = nil
	h := newHarness(t, x, "unused")

	st := h.ctrl.Post(ctx, "hello", domain.ModeNewPost)

	assert.Equal(t, StatusError, st.Kind)
	assert.Contains(t, st.Message, "Error posting: Element ")
	assert.Contains(t, st.Message, "not found within 1000ms")
}

func TestReplyContextOffPost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testutil.HomePage(), "unused")

	_, st := h.ctrl.ReplyContext(ctx)
	assert.Equal(t, Status{Kind: StatusError, Message: MsgNavigateToPost}, st)

	h = newHarness(t, nil, "unused")
	_, st = h.ctrl.ReplyContext(ctx)
	assert.Equal(t, MsgReplyContextErr, st.Message)
}

func TestClearDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, "unused")
	h.ctrl.SaveDraft(ctx, domain.ModeNewPost, "topic", "text")

	_, ok := h.ctrl.Draft(ctx)
	require.True(t, ok)

	assert.Equal(t, Status{Kind: StatusInfo, Message: MsgDraftCleared}, h.ctrl.ClearDraft(ctx))
	_, ok = h.ctrl.Draft(ctx)
	assert.False(t, ok)
}

func TestCharCount(t *testing.T) {
	assert.Equal(t, Count{N: 5, Over: false}, CharCount("héllo"))
	long := make([]rune, 281)
	for i := range long {
		long[i] = 'a'
	}
	assert.Equal(t, Count{N: 281, Over: true}, CharCount(string(long)))
	assert.False(t, CharCount(string(long[:280])).Over)
}
