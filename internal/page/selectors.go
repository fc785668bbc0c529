package page

import (
	"encoding/json"
	"fmt"
	"os"
)

// Selector names. Every DOM lookup the agent makes goes through one of these.
const (
	ComposeButton    = "composeButton"
	TweetTextarea    = "tweetTextarea"
	TweetTextInput   = "tweetTextInput"
	PostButton       = "postButton"
	OriginalPost     = "originalPost"
	OriginalPostText = "originalPostText"
	ReplyButton      = "replyButton"
	TimeElement      = "timeElement"
	TweetLink        = "tweetLink"
	TweetPhoto       = "tweetPhoto"
	TweetPhotoImage  = "tweetPhotoImage"
	AuthorName       = "authorName"
	PostLink         = "postLink"
)

// Selectors maps a symbolic name to a CSS query.
type Selectors map[string]string

// DefaultSelectors returns the queries matching x.com's current markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ComposeButton:    `[data-testid="SideNav_NewTweet_Button"]`,
		TweetTextarea:    `[data-testid="tweetTextarea_0"]`,
		TweetTextInput:   `[role="textbox"][data-testid="tweetTextarea_0"]`,
		PostButton:       `[data-testid="tweetButton"]`,
		OriginalPost:     `article[data-testid="tweet"]`,
		OriginalPostText: `[data-testid="tweetText"]`,
		ReplyButton:      `[data-testid="reply"]`,
		TimeElement:      `time`,
		TweetLink:        `a[href*="/status/"]`,
		TweetPhoto:       `div[data-testid="tweetPhoto"]`,
		TweetPhotoImage:  `img`,
		AuthorName:       `a[role="link"] div[dir="ltr"] span`,
		PostLink:         `a`,
	}
}

// Resolve returns the query for name. Unknown names are treated as raw
// CSS queries so callers can query arbitrary elements.
func (s Selectors) Resolve(name string) string {
	if q, ok := s[name]; ok {
		return q
	}
	return name
}

// Merge returns a copy of s with overrides applied. Empty values are ignored.
func (s Selectors) Merge(overrides map[string]string) Selectors {
	out := make(Selectors, len(s)+len(overrides))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// LoadSelectors reads a JSON object of name → query from path and merges
// it over the defaults. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	defaults := DefaultSelectors()
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	return defaults.Merge(overrides), nil
}
