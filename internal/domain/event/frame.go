package event

import (
	"bytes"
	"encoding/json"

	"github.com/webitel/user-admin-client/internal/domain/model"
)

// TextFrameType marks a frame that could not be decoded as a JSON object.
const TextFrameType = "text"

// Frame is one inbound message after decoding. Undecodable payloads keep their
// raw text in Text with Type set to TextFrameType.
type Frame struct {
	Event   string          `json:"event,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	User    *model.User     `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Discriminator returns the semantic tag, preferring "event" over "kind".
func (f Frame) Discriminator() string {
	if f.Event != "" {
		return f.Event
	}
	return f.Kind
}

func (f Frame) IsText() bool { return f.Type == TextFrameType }

// envelope keeps the user payload raw so a malformed user object does not
// invalidate the whole frame.
type envelope struct {
	Event   string          `json:"event"`
	Kind    string          `json:"kind"`
	User    json.RawMessage `json:"user"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode parses a text frame. It never fails: anything that is not a JSON
// object comes back as a raw-text frame.
func Decode(data []byte) Frame {
	trimmed := bytes.TrimSpace(data)
	raw := append(json.RawMessage(nil), data...)

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return TextFrame(data)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return TextFrame(data)
	}

	f := Frame{
		Event: env.Event,
		Kind:  env.Kind,
		Data:  env.Data,
		Raw:   raw,
	}

	if len(env.User) > 0 && !bytes.Equal(env.User, []byte("null")) {
		var u model.User
		if err := json.Unmarshal(env.User, &u); err == nil {
			f.User = &u
		}
	}

	if len(env.Message) > 0 {
		var msg string
		if err := json.Unmarshal(env.Message, &msg); err == nil {
			f.Message = msg
		} else {
			f.Message = string(env.Message)
		}
	}

	return f
}

// TextFrame wraps undecodable input as {text, type: "text"}.
func TextFrame(data []byte) Frame {
	return Frame{
		Text: string(data),
		Type: TextFrameType,
		Raw:  append(json.RawMessage(nil), data...),
	}
}
