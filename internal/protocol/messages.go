package protocol

import (
	"encoding/json"
)

// Type is the value of the "type" field every frame carries.
type Type string

const (
	TypeMessage        Type = "message"
	TypeMessageHistory Type = "message_history"
	TypeUserJoined     Type = "user_joined"
	TypeUserLeft       Type = "user_left"
	TypeError          Type = "error"
	TypeConnected      Type = "connected"
	TypePing           Type = "ping"
	TypePong           Type = "pong"
)

///
/// OUTBOUND
///

// Envelope is a typed message unit sent over the channel.
// Zero-valued fields are omitted from the frame.
type Envelope struct {
	Type      Type   `json:"type"`
	RoomID    int64  `json:"room_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Encode serializes the envelope into a frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NewChatMessage builds a "message" envelope from a client-side message.
func NewChatMessage(m ChatMessage) Envelope {
	return Envelope{
		Type:      TypeMessage,
		RoomID:    m.RoomID,
		UserID:    m.SenderID,
		Username:  m.SenderName,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		MessageID: m.ID,
	}
}

func NewUserJoined(roomID int64, who Identity) Envelope {
	return Envelope{Type: TypeUserJoined, RoomID: roomID, UserID: who.UserID, Username: who.Username}
}

func NewUserLeft(roomID int64, who Identity) Envelope {
	return Envelope{Type: TypeUserLeft, RoomID: roomID, UserID: who.UserID, Username: who.Username}
}

// NewHistoryRequest asks the server for the stored messages of a room.
func NewHistoryRequest(roomID int64) Envelope {
	return Envelope{Type: TypeMessageHistory, RoomID: roomID}
}

func NewPing() Envelope { return Envelope{Type: TypePing} }

func NewPong() Envelope { return Envelope{Type: TypePong} }

///
/// SERVER REPLIES
///

// HistoryReply is the server's answer to a history request.
type HistoryReply struct {
	Type     Type           `json:"type"`
	RoomID   int64          `json:"room_id"`
	Messages []HistoryEntry `json:"messages"`
}

// ErrorReply is an application error pushed by the server.
type ErrorReply struct {
	Type Type         `json:"type"`
	Data ErrorPayload `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewErrorReply(message string) ErrorReply {
	return ErrorReply{Type: TypeError, Data: ErrorPayload{Message: message}}
}
