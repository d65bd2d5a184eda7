package client

// EventKind tells a view layer what changed.
type EventKind int

const (
	// EventState: the connection state changed.
	EventState EventKind = iota
	// EventMessages: the message store changed.
	EventMessages
	// EventPresence: someone joined or left a room.
	EventPresence
	// EventError: the session error was set.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventMessages:
		return "messages"
	case EventPresence:
		return "presence"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Presence is a user_joined or user_left notification.
type Presence struct {
	RoomID   int64
	UserID   int64
	Username string
	Joined   bool
}

// Event is a change notification. Views read the full state with
// Session.Snapshot; events only say when to look.
type Event struct {
	Kind     EventKind
	State    ConnectionState
	Presence Presence
	Error    string
}

const eventBuffer = 128

// publish never blocks the loop. Events are dropped when the view falls
// behind.
func (s *Session) publish(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug().Str("kind", ev.Kind.String()).Msg("event dropped, subscriber is slow")
	}
}
