package testutil

import (
	"time"

	"github.com/joss/xpost/internal/page"
)

// PostFixture describes the post rendered on a fake status page.
type PostFixture struct {
	Text     string
	Author   string
	Href     string // timestamp link, e.g. "/jack/status/20"
	PhotoURL string
	PhotoAlt string
}

// XPage is a fake x.com page built from the default selectors. Clicking
// Compose or Reply renders the composer after ComposerDelay.
type XPage struct {
	Doc     *FakeDocument
	Compose *FakeElement
	Reply   *FakeElement
	Article *FakeElement
	Input   *FakeElement
	Submit  *FakeElement

	ComposerDelay time.Duration
}

// HomePage is the timeline: a compose button and no post.
func HomePage() *XPage {
	x := newXPage("https://x.com/home")
	x.Doc.Body().Children(x.Compose)
	return x
}

// StatusPage shows one post with a reply button.
func StatusPage(url string, post PostFixture) *XPage {
	x := newXPage(url)
	sel := page.DefaultSelectors()
	d := x.Doc

	x.Article = d.NewElement(sel[page.OriginalPost]).Named("article")
	x.Article.Children(d.NewElement(sel[page.OriginalPostText]).Named("text").WithText(post.Text))
	if post.Author != "" {
		x.Article.Children(d.NewElement(sel[page.AuthorName]).Named("author").WithText(post.Author))
	}
	if post.Href != "" {
		link := d.NewElement(sel[page.PostLink], sel[page.TweetLink]).Named("link").WithAttr("href", post.Href)
		link.Children(d.NewElement(sel[page.TimeElement]).Named("time"))
		x.Article.Children(link)
	}
	if post.PhotoURL != "" {
		img := d.NewElement(sel[page.TweetPhotoImage]).Named("img").WithAttr("src", post.PhotoURL).WithAttr("alt", post.PhotoAlt)
		x.Article.Children(d.NewElement(sel[page.TweetPhoto]).Named("photo").Children(img))
	}
	x.Article.Children(x.Reply)

	d.Body().Children(x.Compose, x.Article)
	return x
}

func newXPage(url string) *XPage {
	sel := page.DefaultSelectors()
	d := NewFakeDocument(url)
	x := &XPage{
		Doc:           d,
		Compose:       d.NewElement(sel[page.ComposeButton]).Named("compose"),
		Reply:         d.NewElement(sel[page.ReplyButton]).Named("reply"),
		Input:         d.NewElement(sel[page.TweetTextInput], sel[page.TweetTextarea]).Named("input"),
		Submit:        d.NewElement(sel[page.PostButton]).Named("submit"),
		ComposerDelay: 20 * time.Millisecond,
	}
	x.Compose.OnClick = x.openComposer
	x.Reply.OnClick = x.openComposer
	return x
}

func (x *XPage) openComposer() {
	x.Doc.AppendAfter(x.ComposerDelay, x.Doc.Body(), x.Input)
	x.Doc.AppendAfter(x.ComposerDelay, x.Doc.Body(), x.Submit)
}
