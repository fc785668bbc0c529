package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/logging"
)

type fakeBackground struct {
	mu       sync.Mutex
	generate []GeneratePost
	keys     []SetAPIKey
	block    chan struct{}
}

func (f *fakeBackground) GeneratePost(ctx context.Context, req GeneratePost) domain.GenerationResult {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.generate = append(f.generate, req)
	f.mu.Unlock()
	if req.Context == "panic" {
		panic("handler exploded")
	}
	return domain.Succeeded("draft about " + req.Context)
}

func (f *fakeBackground) SetAPIKey(ctx context.Context, req SetAPIKey) Ack {
	f.mu.Lock()
	f.keys = append(f.keys, req)
	f.mu.Unlock()
	return Ack{Success: true}
}

type fakePage struct {
	posts []PostToX
}

func (f *fakePage) PostToX(ctx context.Context, req PostToX) domain.PostResult {
	f.posts = append(f.posts, req)
	return domain.PostResult{Success: true}
}

func (f *fakePage) GetCurrentPostID(ctx context.Context, req GetCurrentPostID) PostContext {
	return PostContext{
		PostID:       domain.StringPtr("42"),
		OriginalPost: &domain.OriginalPost{Text: "hello", ID: domain.StringPtr("42")},
		URL:          "https://x.com/a/status/42",
	}
}

func TestEnvelopeEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	dec := NewDecoder(&buf)

	sent := NewEnvelope(MsgPostToX, PostToX{Content: "hi", ReplyToID: domain.StringPtr("7")})
	require.NoError(t, enc.Encode(sent))

	env, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, MsgPostToX, env.Type)
	assert.Equal(t, sent.ID, env.ID)

	req, err := DecodeRequest(env)
	require.NoError(t, err)
	post, ok := req.(PostToX)
	require.True(t, ok)
	assert.Equal(t, "hi", post.Content)
	assert.Equal(t, "7", domain.Deref(post.ReplyToID))
}

func TestWireFieldNames(t *testing.T) {
	data, err := json.Marshal(NewEnvelope(MsgGeneratePost, GeneratePost{
		Mode:    domain.ModeReply,
		Context: "ctx",
		OriginalPost: &domain.OriginalPost{
			Text:      "orig",
			HasImage:  true,
			ImageData: &domain.ImageData{URL: "https://pbs.twimg.com/a.jpg", Alt: "cat"},
		},
	}))
	require.NoError(t, err)

	s := string(data)
	for _, want := range []string{`"type":"generatePost"`, `"mode":"reply"`, `"originalPost"`, `"hasImage":true`, `"imageData"`} {
		assert.Contains(t, s, want)
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	r := strings.NewReader("\n\n" + `{"type":"getCurrentPostId","id":"1","ts":"x"}` + "\n")
	env, err := NewDecoder(r).Decode()
	require.NoError(t, err)
	assert.Equal(t, MsgGetCurrentPostID, env.Type)
}

func TestDecodeRequestUnknown(t *testing.T) {
	_, err := DecodeRequest(&Envelope{Type: "openTab"})
	var unknownErr *UnknownMessageError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, MessageType("openTab"), unknownErr.Type)
}

func TestDispatchRoutesEveryVariant(t *testing.T) {
	ctx := context.Background()
	bg := &fakeBackground{}
	page := &fakePage{}
	routes := Routes{Background: bg, Page: page}

	res := Dispatch(ctx, routes, GeneratePost{Mode: domain.ModeNewPost, Context: "coffee"})
	assert.Equal(t, domain.Succeeded("draft about coffee"), res)

	assert.Equal(t, Ack{Success: true}, Dispatch(ctx, routes, SetAPIKey{Provider: "openai"}))
	assert.Equal(t, domain.PostResult{Success: true}, Dispatch(ctx, routes, PostToX{Content: "x"}))

	pc, ok := Dispatch(ctx, routes, GetCurrentPostID{}).(PostContext)
	require.True(t, ok)
	assert.Equal(t, "42", domain.Deref(pc.PostID))
}

func TestDispatchUnownedMessage(t *testing.T) {
	ctx := context.Background()
	backgroundOnly := Routes{Background: &fakeBackground{}}

	res := Dispatch(ctx, backgroundOnly, PostToX{Content: "x"})
	assert.Equal(t, Ack{Success: false, Error: ErrUnknownMessage}, res)
}

func TestSurfaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	bg := &fakeBackground{}
	s := Start(ctx, "background", Routes{Background: bg})
	defer s.Close()

	res := CallGeneratePost(ctx, s, GeneratePost{Mode: domain.ModeNewPost, Context: "coffee brewing methods"})
	assert.True(t, res.Success)
	assert.Equal(t, "draft about coffee brewing methods", res.Content)

	ack := CallSetAPIKey(ctx, s, SetAPIKey{Provider: "openai", APIKey: "sk-test123", Model: "gpt-4o"})
	assert.True(t, ack.Success)
	require.Len(t, bg.keys, 1)
	assert.Equal(t, "sk-test123", bg.keys[0].APIKey)
}

func TestSurfaceAnswersUnknownMessageType(t *testing.T) {
	ctx := context.Background()
	s := Start(ctx, "background", Routes{Background: &fakeBackground{}})
	defer s.Close()

	res := CallPostToX(ctx, s, PostToX{Content: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrUnknownMessage, res.Error)
}

func TestSurfaceRecoversHandlerPanic(t *testing.T) {
	ctx := context.Background()
	s := Start(ctx, "background", Routes{Background: &fakeBackground{}})
	defer s.Close()

	res := CallGeneratePost(ctx, s, GeneratePost{Mode: domain.ModeNewPost, Context: "panic"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "handler exploded")

	// The loop survives and serves the next request.
	res = CallGeneratePost(ctx, s, GeneratePost{Mode: domain.ModeNewPost, Context: "tea"})
	assert.True(t, res.Success)
}

func TestCallContextOnlyEndsTheWait(t *testing.T) {
	bg := &fakeBackground{block: make(chan struct{})}
	s := Start(context.Background(), "background", Routes{Background: bg})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := CallGeneratePost(ctx, s, GeneratePost{Mode: domain.ModeNewPost, Context: "slow"})
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindTransport, res.Kind)

	// The handler still runs to completion once unblocked.
	close(bg.block)
	require.Eventually(t, func() bool {
		bg.mu.Lock()
		defer bg.mu.Unlock()
		return len(bg.generate) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCallAfterClose(t *testing.T) {
	s := Start(context.Background(), "page", Routes{Page: &fakePage{}})
	require.NoError(t, s.Close())

	<-s.Done()
	_, err := CallGetCurrentPostID(context.Background(), s)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransport))
}

func TestConcurrentCallsAreMatchedByReplyTo(t *testing.T) {
	ctx := context.Background()
	s := Start(ctx, "background", Routes{Background: &fakeBackground{}})
	defer s.Close()

	topics := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	results := make([]domain.GenerationResult, len(topics))
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			results[i] = CallGeneratePost(ctx, s, GeneratePost{Mode: domain.ModeNewPost, Context: topic})
		}(i, topic)
	}
	wg.Wait()

	for i, topic := range topics {
		assert.Equal(t, "draft about "+topic, results[i].Content)
	}
}

func TestOversizedRequestEndsSurface(t *testing.T) {
	prev := logging.SetOutput(io.Discard)
	defer logging.SetOutput(prev)

	bg := &fakeBackground{}
	s := Start(context.Background(), "background", Routes{Background: bg})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	res := CallGeneratePost(ctx, s, GeneratePost{
		Mode:    domain.ModeNewPost,
		Context: strings.Repeat("a", 2*MaxMessageSize),
	})
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindTransport, res.Kind)
	assert.Less(t, time.Since(start), time.Second)

	err := s.Close()
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Empty(t, bg.generate)

	_, err = CallGetCurrentPostID(context.Background(), s)
	assert.Error(t, err)
}

func TestSendRespectsContext(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	defer respW.Close()

	// Nobody reads reqR, so the write blocks.
	c := NewClient(respR, reqW)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Call(ctx, GeneratePost{Mode: domain.ModeNewPost, Context: "stuck"}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// The interrupted stream is closed, so later calls fail at once.
	err = c.Call(context.Background(), GetCurrentPostID{}, nil)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	reqR.Close()
}

func TestServerRepliesErrorToBadPayload(t *testing.T) {
	prev := logging.SetOutput(io.Discard)
	defer logging.SetOutput(prev)

	in := strings.Join([]string{
		`{"type":"generatePost","id":"r1","ts":"x","payload":"oops"}`,
		`not json`,
		`{"type":"setApiKey","id":"r2","ts":"x","payload":{"provider":"openai"}}`,
	}, "\n") + "\n"
	var out bytes.Buffer

	srv := NewServer("background", Routes{Background: &fakeBackground{}}, strings.NewReader(in), &out)
	require.NoError(t, srv.Serve(context.Background()))

	dec := NewDecoder(&out)
	first, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, MsgError, first.Type)
	assert.Equal(t, "r1", first.ReplyTo)
	var p ErrorPayload
	require.NoError(t, first.GetPayload(&p))
	assert.Equal(t, "bad_request", p.Code)

	second, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, MsgResponse, second.Type)
	assert.Equal(t, "r2", second.ReplyTo)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCallReturnsErrorReply(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	defer reqW.Close()
	defer respW.Close()

	go func() {
		env, err := NewDecoder(reqR).Decode()
		if err != nil {
			return
		}
		NewEncoder(respW).Encode(NewErrorReply(env.ID, "bad_request", "decode generatePost: nope"))
	}()

	c := NewClient(respR, reqW)
	var res domain.GenerationResult
	err := c.Call(context.Background(), GeneratePost{Mode: domain.ModeNewPost, Context: "x"}, &res)
	require.Error(t, err)
	assert.Equal(t, "bad_request: decode generatePost: nope", err.Error())
}
