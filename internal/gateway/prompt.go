package gateway

import (
	"fmt"

	"github.com/joss/xpost/internal/domain"
)

// System templates. The constraints they state (length, no hashtags, no
// questions) are instructions to the model only; nothing here checks the
// generated text against them.
const (
	NewPostPrompt = `You are a natural and engaging X user creating posts about interesting topics. Key guidelines:
- Write conversationally, like a real person thinking and making a statement, do not ask questions!
- No hashtags or marketing language
- Focus on starting genuine discussions
- Keep it concise but meaningful (max 280 chars)
- Share insights that spark curiosity
- Be authentic - avoid corporate or artificial tones
- Make it engaging without being clickbaity`

	ReplyPrompt = `You are crafting thoughtful, engaging replies on X. Your task is to create a relevant and meaningful response to the original post. Guidelines:
- Read and understand the context of the original post
- Respond naturally as if having a real conversation, make a statement and do not ask questions!
- Address the specific points or questions raised
- Respond to what you actually see, not what you assume
- Add value through insights, perspective, or supportive comments
- Keep it authentic and personal and funny when needed
- Maximum 280 characters
- No hashtags or marketing speak
- Stay on topic and relevant to the original post`
)

// SystemPrompt returns the fixed template for mode.
func SystemPrompt(mode domain.Mode) string {
	if mode == domain.ModeReply {
		return ReplyPrompt
	}
	return NewPostPrompt
}

// UserPrompt embeds the topic (new post) or the quoted original text (reply).
// A reply without a scraped post quotes the free-form context instead.
func UserPrompt(req domain.GenerationRequest) string {
	if req.Mode == domain.ModeReply {
		text := req.Context
		if req.OriginalPost != nil && req.OriginalPost.Text != "" {
			text = req.OriginalPost.Text
		}
		return fmt.Sprintf("Original post: \"%s\". Write a thoughtful reply that engages with this content.", text)
	}
	return "Create a new engaging post about: " + req.Context
}

// VisionPrompt is the instruction paired with the post image.
func VisionPrompt(text string) string {
	return fmt.Sprintf("Please analyze this image and the following text: \"%s\". "+
		"Create a relevant and engaging reply that acknowledges both the visual content "+
		"and the text context.", text)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}

// buildMessages produces the chat payload for req. vision says whether the
// selected model accepts image input.
func buildMessages(req domain.GenerationRequest, vision bool) []chatMessage {
	op := req.OriginalPost
	if vision && op != nil && op.HasImage && op.ImageData != nil {
		return []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: op.ImageData.URL, Detail: "high"}},
				{Type: "text", Text: VisionPrompt(op.Text)},
			},
		}}
	}

	return []chatMessage{
		{Role: "system", Content: SystemPrompt(req.Mode)},
		{Role: "user", Content: UserPrompt(req)},
	}
}
