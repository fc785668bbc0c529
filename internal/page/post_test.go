package page_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/page"
	"github.com/joss/xpost/internal/protocol"
	"github.com/joss/xpost/internal/testutil"
)

func TestHandlePostNewPost(t *testing.T) {
	x := testutil.HomePage()
	a := fastAgent(x.Doc)

	res := a.HandlePost(context.Background(), domain.PostCommand{Content: "Pour-over wins."})

	assert.Equal(t, domain.PostResult{Success: true}, res)
	assert.Equal(t, 1, x.Compose.Clicks())
	assert.Equal(t, "Pour-over wins.", x.Input.Content())
	assert.Equal(t, page.TypingEvents, x.Input.EventTypes())
	assert.Equal(t, 1, x.Submit.Clicks())

	actions := x.Doc.Actions()
	assert.Equal(t, "click compose", actions[0])
	assert.Equal(t, "click submit", actions[len(actions)-1])
}

func TestHandlePostReplyUsesReplyButton(t *testing.T) {
	x := testutil.StatusPage("https://x.com/jack/status/20", testutil.PostFixture{Text: "hi"})
	a := fastAgent(x.Doc)

	res := a.HandlePost(context.Background(), domain.PostCommand{
		Content:   "Great point",
		ReplyToID: domain.StringPtr("20"),
	})

	assert.True(t, res.Success)
	assert.Equal(t, 1, x.Reply.Clicks())
	assert.Equal(t, 0, x.Compose.Clicks())
	assert.Equal(t, "Great point", x.Input.Content())
	assert.Equal(t, 1, x.Submit.Clicks())
}

func TestHandlePostReplyWithoutAffordance(t *testing.T) {
	x := testutil.HomePage()
	x.Doc.Body().Children(x.Input, x.Submit)
	a := fastAgent(x.Doc)

	res := a.HandlePost(context.Background(), domain.PostCommand{
		Content:   "reply text",
		ReplyToID: domain.StringPtr("20"),
	})

	assert.True(t, res.Success)
	assert.Equal(t, 0, x.Compose.Clicks())
	assert.Equal(t, "reply text", x.Input.Content())
}

func TestHandlePostDisabledSubmitIsStillAttempted(t *testing.T) {
	x := testutil.HomePage()
	x.Submit.WithDisabled(true)
	a := fastAgent(x.Doc)

	res := a.HandlePost(context.Background(), domain.PostCommand{Content: "x"})

	assert.True(t, res.Success)
	assert.Equal(t, 0, x.Submit.Clicks())
}

func TestHandlePostComposerNeverAppears(t *testing.T) {
	x := testutil.HomePage()
	x.Compose.OnClick = nil
	a := page.New(x.Doc, page.WithSleep(testutil.NoSleep), page.WithTimings(page.Timings{
		WaitTimeout: 100 * time.Millisecond,
	}))

	res := a.HandlePost(context.Background(), domain.PostCommand{Content: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, domain.KindElementTimeout, res.Kind)
	assert.Contains(t, res.Error, "not found within 100ms")
	assert.Equal(t, 0, x.Doc.Observers())
}

func TestHandlerOverProtocol(t *testing.T) {
	ctx := testutil.Context(t, 5*time.Second)
	x := testutil.StatusPage("https://x.com/jack/status/20", testutil.PostFixture{
		Text:   "just setting up my twttr",
		Author: "jack",
	})
	surface := protocol.Start(ctx, "page", page.NewHandler(fastAgent(x.Doc)).Routes())
	defer surface.Close()

	pc, err := protocol.CallGetCurrentPostID(ctx, surface)
	require.NoError(t, err)
	assert.Equal(t, "20", domain.Deref(pc.PostID))
	assert.Equal(t, "https://x.com/jack/status/20", pc.URL)
	require.NotNil(t, pc.OriginalPost)
	assert.Equal(t, "just setting up my twttr", pc.OriginalPost.Text)

	res := protocol.CallPostToX(ctx, surface, protocol.PostToX{Content: "Welcome!", ReplyToID: pc.PostID})
	assert.True(t, res.Success)
	assert.Equal(t, "Welcome!", x.Input.Content())

	// background messages are not served by the page surface
	gen := protocol.CallGeneratePost(ctx, surface, protocol.GeneratePost{Mode: domain.ModeNewPost, Context: "x"})
	assert.False(t, gen.Success)
	assert.Equal(t, protocol.ErrUnknownMessage, gen.Error)
}

func TestSelectorsOverride(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "selectors.json", `{"postButton":"[data-testid=\"tweetButtonInline\"]","composeButton":""}`)

	sel, err := page.LoadSelectors(path)
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="tweetButtonInline"]`, sel[page.PostButton])
	assert.Equal(t, page.DefaultSelectors()[page.ComposeButton], sel[page.ComposeButton])
	assert.Equal(t, "#raw", sel.Resolve("#raw"))

	_, err = page.LoadSelectors(testutil.WriteFile(t, dir, "bad.json", `[`))
	assert.Error(t, err)

	def, err := page.LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, page.DefaultSelectors(), def)
}
