package protocol

// Identity is the signed-in user. It is also the persisted user record.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// Valid reports whether the identity can be used for room operations.
func (i Identity) Valid() bool {
	return i.UserID != 0 && i.Username != ""
}

// Room is the client's cached view of a chat room.
type Room struct {
	RoomID    int64  `json:"room_id"`
	RoomName  string `json:"room_name"`
	UserCount int    `json:"user_count"`
	CreatedBy *int64 `json:"created_by,omitempty"`
}

// ChatMessage is one entry of a room's message sequence.
// Timestamp is in Unix milliseconds.
type ChatMessage struct {
	ID         string `json:"id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	RoomID     int64  `json:"room_id"`
}
