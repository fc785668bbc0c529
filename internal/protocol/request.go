package protocol

import (
	"fmt"

	"github.com/joss/xpost/internal/domain"
)

// Request is one of the message variants below. The set is closed: only
// types in this package implement it.
type Request interface {
	Type() MessageType
	request()
}

// GeneratePost asks the background for a draft.
type GeneratePost struct {
	Mode         domain.Mode          `json:"mode"`
	Context      string               `json:"context"`
	OriginalPost *domain.OriginalPost `json:"originalPost,omitempty"`
}

// SetAPIKey stores provider credentials and makes the provider active.
type SetAPIKey struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

// PostToX asks the page agent to compose and submit content.
type PostToX struct {
	Content   string  `json:"content"`
	ReplyToID *string `json:"replyToId"`
}

// GetCurrentPostID asks the page agent what post is on screen.
type GetCurrentPostID struct{}

func (GeneratePost) Type() MessageType     { return MsgGeneratePost }
func (SetAPIKey) Type() MessageType        { return MsgSetAPIKey }
func (PostToX) Type() MessageType          { return MsgPostToX }
func (GetCurrentPostID) Type() MessageType { return MsgGetCurrentPostID }

func (GeneratePost) request()     {}
func (SetAPIKey) request()        {}
func (PostToX) request()          {}
func (GetCurrentPostID) request() {}

// GenerationRequest converts the message to the gateway's input.
func (g GeneratePost) GenerationRequest() domain.GenerationRequest {
	return domain.GenerationRequest{Mode: g.Mode, Context: g.Context, OriginalPost: g.OriginalPost}
}

// PostCommand converts the message to the page agent's input.
func (p PostToX) PostCommand() domain.PostCommand {
	return domain.PostCommand{Content: p.Content, ReplyToID: p.ReplyToID}
}

// Ack is the reply to SetAPIKey and to unroutable requests.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PostContext is the reply to GetCurrentPostID.
type PostContext struct {
	PostID       *string              `json:"postId"`
	OriginalPost *domain.OriginalPost `json:"originalPost"`
	URL          string               `json:"url,omitempty"`
}

// ErrUnknownMessage is the reply text for a type no surface handles.
const ErrUnknownMessage = "Unknown message type"

// UnknownMessageError reports an envelope type with no Request variant.
type UnknownMessageError struct {
	Type MessageType
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("unknown message type: %s", e.Type)
}

// DecodeRequest turns a request envelope into its variant.
func DecodeRequest(env *Envelope) (Request, error) {
	switch env.Type {
	case MsgGeneratePost:
		var r GeneratePost
		if err := env.GetPayload(&r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r, nil
	case MsgSetAPIKey:
		var r SetAPIKey
		if err := env.GetPayload(&r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r, nil
	case MsgPostToX:
		var r PostToX
		if err := env.GetPayload(&r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r, nil
	case MsgGetCurrentPostID:
		return GetCurrentPostID{}, nil
	default:
		return nil, &UnknownMessageError{Type: env.Type}
	}
}
