package client

import "github.com/vladimirruppel/roomchat/internal/protocol"

// ConnectionState is the lifecycle state of the session's channel.
type ConnectionState int

// Channel states
const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "IDLE",
	StateConnecting:   "CONNECTING",
	StateOpen:         "OPEN",
	StateClosed:       "CLOSED",
	StateReconnecting: "RECONNECTING",
	StateFailed:       "FAILED",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Snapshot is a read-only copy of the session state handed to view layers.
type Snapshot struct {
	SessionID string
	State     ConnectionState
	Connected bool

	// ConnectionError describes the last transport problem and is cleared
	// once the channel opens again.
	ConnectionError string
	// Error is the session-level error shown to the user: service and
	// application errors, and the terminal connectivity error.
	Error string

	Identity    *protocol.Identity
	Room        *protocol.Room
	Memberships []int64
	Messages    []protocol.ChatMessage

	ReconnectAttempts int
	QueuedEnvelopes   int
}

// IsMember reports whether the snapshot's membership set contains roomID.
func (s Snapshot) IsMember(roomID int64) bool {
	for _, id := range s.Memberships {
		if id == roomID {
			return true
		}
	}
	return false
}
