// Package domain defines the values exchanged between xpost surfaces.
package domain

import "regexp"

// Mode is the content-generation intent.
type Mode string

const (
	ModeNewPost Mode = "newPost"
	ModeReply   Mode = "reply"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeNewPost || m == ModeReply
}

// ParseMode accepts the wire names plus a few CLI friendly aliases.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "newPost", "new", "post", "new-post":
		return ModeNewPost, true
	case "reply":
		return ModeReply, true
	}
	return "", false
}

// ImageData is the first photo attached to a scraped post.
type ImageData struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// OriginalPost is the post currently displayed on the page, scraped at
// request time and never persisted.
type OriginalPost struct {
	Text      string     `json:"text"`
	Author    string     `json:"author"`
	ID        *string    `json:"id"`
	HasImage  bool       `json:"hasImage"`
	ImageData *ImageData `json:"imageData"`
}

// GenerationRequest asks the gateway for one draft.
type GenerationRequest struct {
	Mode         Mode          `json:"mode"`
	Context      string        `json:"context"`
	OriginalPost *OriginalPost `json:"originalPost,omitempty"`
}

// GenerationResult carries either Content (Success) or Error, never both.
type GenerationResult struct {
	Success bool      `json:"success"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(content string) GenerationResult {
	return GenerationResult{Success: true, Content: content}
}

// Failed builds a failed result.
func Failed(kind ErrorKind, msg string) GenerationResult {
	return GenerationResult{Success: false, Error: msg, Kind: kind}
}

// FailedWith builds a failed result from err, keeping its kind when known.
func FailedWith(err error) GenerationResult {
	return Failed(KindOf(err), err.Error())
}

// PostCommand drives one posting attempt on the page.
type PostCommand struct {
	Content   string  `json:"content"`
	ReplyToID *string `json:"replyToId"`
}

// PostResult reports a posting attempt. Success means the submit click was
// attempted, not that the page accepted the post.
type PostResult struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// PostFailed builds a failed post result from err.
func PostFailed(err error) PostResult {
	return PostResult{Success: false, Error: err.Error(), Kind: KindOf(err)}
}

// ProviderSettings are the per-provider stored values.
type ProviderSettings struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// Settings is the full user configuration as read from the settings store.
type Settings struct {
	ActiveProvider string                      `json:"activeProvider"`
	PerProvider    map[string]ProviderSettings `json:"perProvider"`
}

// Provider returns the stored values for id (zero value when absent).
func (s *Settings) Provider(id string) ProviderSettings {
	if s == nil || s.PerProvider == nil {
		return ProviderSettings{}
	}
	return s.PerProvider[id]
}

// MaxPostLength is the advisory limit given to the model and shown to the
// user. Generated text is never truncated or rejected for exceeding it.
const MaxPostLength = 280

var postIDPattern = regexp.MustCompile(`status/(\d+)`)

// ExtractPostID returns the numeric id of a "status/<id>" link or URL.
func ExtractPostID(s string) (string, bool) {
	m := postIDPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *p or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
