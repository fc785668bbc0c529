// Package protocol defines the request/response contract between xpost
// surfaces: the popup (orchestrator), the background (provider gateway) and
// the page agent. Messages use a JSON envelope, one per line.
//
// Every request gets exactly one reply envelope whose reply_to is the
// request id. There is no streaming and no cancellation of a request once
// delivered; a caller's context only bounds how long it waits.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MessageType identifies the kind of message.
type MessageType string

const (
	// Popup → Background
	MsgGeneratePost MessageType = "generatePost"
	MsgSetAPIKey    MessageType = "setApiKey"

	// Popup → Page
	MsgPostToX          MessageType = "postToX"
	MsgGetCurrentPostID MessageType = "getCurrentPostId"

	// Replies
	MsgResponse MessageType = "response"
	MsgError    MessageType = "error"
)

// Envelope wraps all protocol messages.
type Envelope struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	ReplyTo   string      `json:"reply_to,omitempty"`
	Timestamp string      `json:"ts"`
	Payload   any         `json:"payload,omitempty"`
}

// NewEnvelope creates a new envelope with a ULID and timestamp.
func NewEnvelope(msgType MessageType, payload any) *Envelope {
	return &Envelope{
		Type:      msgType,
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// NewReply creates the response envelope for request id.
func NewReply(replyTo string, payload any) *Envelope {
	env := NewEnvelope(MsgResponse, payload)
	env.ReplyTo = replyTo
	return env
}

// NewErrorReply creates the error envelope for a request that could not be
// read.
func NewErrorReply(replyTo, code, message string) *Envelope {
	env := NewEnvelope(MsgError, ErrorPayload{Code: code, Message: message})
	env.ReplyTo = replyTo
	return env
}

// ErrorPayload for protocol-level errors.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Encoder/Decoder for streaming JSON lines
// ─────────────────────────────────────────────────────────────────────────────

// Encoder writes envelopes as JSON lines.
type Encoder struct {
	w  io.Writer
	mu sync.Mutex
}

// NewEncoder creates an encoder for the given writer.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes an envelope as a single JSON line.
func (e *Encoder) Encode(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = fmt.Fprintf(e.w, "%s\n", data)
	return err
}

// MaxMessageSize is the longest line a Decoder accepts.
const MaxMessageSize = 1024 * 1024

// LineError is a single line that is not a valid envelope. The stream
// itself is intact and decoding may continue.
type LineError struct {
	Err error
}

func (e *LineError) Error() string { return "unmarshal envelope: " + e.Err.Error() }

func (e *LineError) Unwrap() error { return e.Err }

// Decoder reads envelopes from JSON lines.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a decoder for the given reader.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	// Scraped posts may carry long text.
	scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)
	return &Decoder{scanner: scanner}
}

// Decode reads the next envelope. Any error other than *LineError leaves
// the decoder unusable.
func (d *Decoder) Decode() (*Envelope, error) {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}

		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, &LineError{Err: err}
		}
		return &env, nil
	}
}

// GetPayload extracts and unmarshals the payload into the target type.
func (e *Envelope) GetPayload(target any) error {
	if e.Payload == nil {
		return nil
	}

	// Payload comes as map[string]any from JSON, re-marshal to unmarshal into struct
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
