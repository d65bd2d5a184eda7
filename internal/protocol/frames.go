package protocol

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrUndecodable marks a frame that is not a JSON object of the expected shape.
var ErrUndecodable = errors.New("undecodable frame")

// Frame is one decoded inbound frame. The concrete type is one of
// Message, History, UserJoined, UserLeft, ServerError, Connected, Ping,
// Pong or Unknown.
type Frame interface {
	FrameType() Type
}

type Message struct {
	RoomID    int64
	UserID    int64
	Username  string
	Content   string
	Timestamp int64
	MessageID string
}

// History carries a room's stored messages. Loaded is false when the
// frame had no "messages" array, which makes it a request echo rather
// than a reply.
type History struct {
	RoomID   int64
	Messages []HistoryEntry
	Loaded   bool
}

type UserJoined struct {
	RoomID   int64
	UserID   int64
	Username string
}

type UserLeft struct {
	RoomID   int64
	UserID   int64
	Username string
}

// ServerError is an application error sent by the server. Message is
// empty when the frame had no data.message.
type ServerError struct {
	Message string
}

type Connected struct{}

type Ping struct{}

type Pong struct{}

// Unknown is any frame whose type is not part of the protocol.
type Unknown struct {
	Type Type
	Raw  []byte
}

func (Message) FrameType() Type     { return TypeMessage }
func (History) FrameType() Type     { return TypeMessageHistory }
func (UserJoined) FrameType() Type  { return TypeUserJoined }
func (UserLeft) FrameType() Type    { return TypeUserLeft }
func (ServerError) FrameType() Type { return TypeError }
func (Connected) FrameType() Type   { return TypeConnected }
func (Ping) FrameType() Type        { return TypePing }
func (Pong) FrameType() Type        { return TypePong }
func (u Unknown) FrameType() Type   { return u.Type }

// ID is a message identifier that arrives either as a JSON string or as
// a JSON number depending on who produced it.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*id = ""
		return nil
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "id must be a string or a number")
	}
	*id = ID(n.String())
	return nil
}

// HistoryEntry is one stored message as sent inside a history reply.
// Servers disagree on field names, so both spellings are accepted.
type HistoryEntry struct {
	MessageID  ID     `json:"message_id,omitempty"`
	ID         ID     `json:"id,omitempty"`
	SenderID   int64  `json:"sender_id,omitempty"`
	UserID     int64  `json:"user_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Content    string `json:"content,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	RoomID     int64  `json:"room_id,omitempty"`
}

// wireFrame is the union of every field any inbound frame may carry.
type wireFrame struct {
	Type      Type            `json:"type"`
	RoomID    int64           `json:"room_id"`
	UserID    int64           `json:"user_id"`
	Username  string          `json:"username"`
	Content   string          `json:"content"`
	Timestamp int64           `json:"timestamp"`
	MessageID ID              `json:"message_id"`
	Messages  *[]HistoryEntry `json:"messages"`
	Data      json.RawMessage `json:"data"`
}

// Decode turns raw bytes into a typed frame. Bytes that are not a JSON
// object of the expected shape yield an error wrapping ErrUndecodable.
func Decode(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.WithMessage(ErrUndecodable, err.Error())
	}

	switch w.Type {
	case TypeMessage:
		return Message{
			RoomID:    w.RoomID,
			UserID:    w.UserID,
			Username:  w.Username,
			Content:   w.Content,
			Timestamp: w.Timestamp,
			MessageID: string(w.MessageID),
		}, nil
	case TypeMessageHistory:
		h := History{RoomID: w.RoomID}
		if w.Messages != nil {
			h.Messages = *w.Messages
			h.Loaded = true
		}
		return h, nil
	case TypeUserJoined:
		return UserJoined{RoomID: w.RoomID, UserID: w.UserID, Username: w.Username}, nil
	case TypeUserLeft:
		return UserLeft{RoomID: w.RoomID, UserID: w.UserID, Username: w.Username}, nil
	case TypeError:
		var p ErrorPayload
		if len(w.Data) > 0 {
			// data may be a bare string or null; only data.message counts.
			_ = json.Unmarshal(w.Data, &p)
		}
		return ServerError{Message: p.Message}, nil
	case TypeConnected:
		return Connected{}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return Unknown{Type: w.Type, Raw: data}, nil
	}
}
