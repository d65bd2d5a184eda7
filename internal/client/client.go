package client

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/config"
	"github.com/vladimirruppel/roomchat/internal/protocol"
	"github.com/vladimirruppel/roomchat/internal/roomapi"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrNoActiveRoom    = errors.New("no active room")
)

// rejoinTimeout bounds the membership call made after a reconnect.
const rejoinTimeout = 30 * time.Second

// Config tunes the connection controller.
type Config struct {
	URL string
	// Enabled set to false makes Connect a no-op and disables reconnects.
	Enabled           bool
	MaxAttempts       int
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	HistoryDelay      time.Duration
	HandshakeTimeout  time.Duration
}

// DefaultConfig returns the stock timings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		Enabled:           true,
		MaxAttempts:       5,
		ReconnectDelay:    3 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HistoryDelay:      100 * time.Millisecond,
		HandshakeTimeout:  10 * time.Second,
	}
}

// ConfigFrom maps environment settings onto a session config.
func ConfigFrom(c *config.Client) Config {
	return Config{
		URL:               c.WSURL,
		Enabled:           c.Reconnect,
		MaxAttempts:       c.ReconnectAttempts,
		ReconnectDelay:    c.ReconnectDelay,
		HeartbeatInterval: c.HeartbeatInterval,
		HistoryDelay:      c.HistoryDelay,
		HandshakeTimeout:  c.HandshakeTimeout,
	}
}

// RoomService registers room membership over HTTP.
type RoomService interface {
	JoinRoom(ctx context.Context, roomID, userID int64) error
}

type Option func(*Session)

func WithIdentity(id protocol.Identity) Option {
	return func(s *Session) { s.identity = &id }
}

func WithRoomService(rs RoomService) Option {
	return func(s *Session) { s.rooms = rs }
}

func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is the surface a view layer talks to. Every method is safe for
// concurrent use; state lives on the session's own loop goroutine.
type Session struct {
	id        string
	log       zerolog.Logger
	loop      *eventLoop
	ctrl      *Controller
	dialer    Dialer
	rooms     RoomService
	now       func() time.Time
	events    chan Event
	closeOnce sync.Once

	// Loop-owned state.
	identity *protocol.Identity
	room     *protocol.Room
	members  map[int64]struct{}
	store    *MessageStore
	err      string

	// lastSendMs keeps client send times strictly increasing so that
	// message ids built from them never collide.
	lastSendMs int64
}

// New creates a session. Nothing is dialed until Connect.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		log:     zerolog.Nop(),
		now:     time.Now,
		events:  make(chan Event, eventBuffer),
		members: make(map[int64]struct{}),
		store:   NewMessageStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}

	base := s.log.With().Str("session_id", s.id).Logger()
	s.log = base.With().Str("component", "session").Logger()
	s.loop = newEventLoop()
	s.ctrl = newController(cfg, s.dialer, s.loop, base, s.id, controllerHooks{
		onOpen:        s.onOpen,
		onFrame:       s.processServerFrame,
		onStateChange: s.onStateChange,
		onFailed:      s.onFailed,
	})
	return s
}

func (s *Session) ID() string { return s.id }

// Events delivers change notifications. The channel is closed by Close.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Connect() error {
	return s.loop.call(s.ctrl.Connect)
}

func (s *Session) Disconnect() error {
	return s.loop.call(s.ctrl.Disconnect)
}

// SetIdentity signs a user in. nil signs out and drops the room, the
// memberships and the messages.
func (s *Session) SetIdentity(id *protocol.Identity) error {
	return s.loop.call(func() {
		if id == nil {
			s.identity = nil
			s.room = nil
			clear(s.members)
			s.store.Clear()
			s.publish(Event{Kind: EventMessages})
			return
		}
		cp := *id
		s.identity = &cp
	})
}

// JoinRoom registers membership with the room service unless this
// session already holds it, then announces the user on the channel.
// Service failures become the session error.
func (s *Session) JoinRoom(ctx context.Context, roomID int64) error {
	var (
		ident  protocol.Identity
		member bool
		signed bool
	)
	if err := s.loop.call(func() {
		if s.identity == nil {
			return
		}
		signed = true
		ident = *s.identity
		_, member = s.members[roomID]
	}); err != nil {
		return err
	}
	if !signed {
		return ErrUnauthenticated
	}

	if !member && s.rooms != nil {
		if err := s.rooms.JoinRoom(ctx, roomID, ident.UserID); err != nil {
			s.log.Warn().Err(err).Int64("room_id", roomID).Msg("join failed")
			_ = s.loop.call(func() { s.setError(err.Error()) })
			return errors.Wrapf(err, "join room %d", roomID)
		}
	}

	return s.loop.call(func() {
		// Signed out or switched user while the request was in flight.
		if s.identity == nil || s.identity.UserID != ident.UserID {
			return
		}
		s.members[roomID] = struct{}{}
		s.ctrl.Send(protocol.NewUserJoined(roomID, ident))
	})
}

// LeaveRoom announces that the user left the active room.
func (s *Session) LeaveRoom() error {
	return s.loop.call(func() {
		if s.identity == nil || s.room == nil {
			return
		}
		s.ctrl.Send(protocol.NewUserLeft(s.room.RoomID, *s.identity))
	})
}

// SwitchRoom makes room the active one. The store is discarded and, if
// the channel is open, history is requested shortly after.
func (s *Session) SwitchRoom(room protocol.Room) error {
	return s.loop.call(func() {
		s.store.Clear()
		s.room = &room
		s.publish(Event{Kind: EventMessages})
		if s.ctrl.IsOpen() {
			s.ctrl.DeferHistory(s.requestHistory)
		}
	})
}

// SendMessage posts content to the active room. The message shows up in
// the store at once; blank content does nothing.
func (s *Session) SendMessage(content string) (SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return SendDropped, nil
	}

	result := SendDropped
	var failure error
	if err := s.loop.call(func() {
		switch {
		case s.identity == nil:
			failure = ErrUnauthenticated
			return
		case s.room == nil:
			failure = ErrNoActiveRoom
			return
		}
		ts := max(s.now().UnixMilli(), s.lastSendMs+1)
		s.lastSendMs = ts
		msg := protocol.ChatMessage{
			ID:         GenerateMessageID(s.identity.UserID, ts),
			SenderID:   s.identity.UserID,
			SenderName: s.identity.Username,
			Content:    content,
			Timestamp:  ts,
			RoomID:     s.room.RoomID,
		}
		s.store.Add(msg)
		s.publish(Event{Kind: EventMessages})
		result = s.ctrl.Send(protocol.NewChatMessage(msg))
	}); err != nil {
		return SendDropped, err
	}
	return result, failure
}

// FetchHistory asks for the active room's history. Does nothing unless
// the channel is open and a room is active.
func (s *Session) FetchHistory() error {
	return s.loop.call(s.requestHistory)
}

func (s *Session) ClearError() error {
	return s.loop.call(func() { s.err = "" })
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	if err := s.loop.call(func() { snap = s.snapshot() }); err != nil {
		// Closed: nothing mutates the state any more.
		<-s.loop.stopped
		return s.snapshot()
	}
	return snap
}

// Close disconnects and stops the session. Later calls return
// ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.loop.call(s.ctrl.shutdown)
		s.loop.stop()
		close(s.events)
		s.log.Debug().Msg("session closed")
	})
	return nil
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:         s.id,
		State:             s.ctrl.State(),
		Connected:         s.ctrl.State() == StateOpen,
		ConnectionError:   s.ctrl.LastError(),
		Error:             s.err,
		Memberships:       slices.Sorted(maps.Keys(s.members)),
		Messages:          s.store.Messages(),
		ReconnectAttempts: s.ctrl.Attempts(),
		QueuedEnvelopes:   s.ctrl.QueueLen(),
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	if s.room != nil {
		room := *s.room
		snap.Room = &room
	}
	return snap
}

func (s *Session) requestHistory() {
	if s.room == nil || !s.ctrl.IsOpen() {
		return
	}
	s.ctrl.Send(protocol.NewHistoryRequest(s.room.RoomID))
}

func (s *Session) setError(msg string) {
	s.err = msg
	s.publish(Event{Kind: EventError, Error: msg})
}

func (s *Session) onStateChange(state ConnectionState) {
	s.publish(Event{Kind: EventState, State: state})
}

func (s *Session) onFailed(err error, attempts int) {
	s.log.Error().Err(err).Msg("connection failed")
	s.setError(fmt.Sprintf("Unable to establish connection after %d attempts", attempts))
}

// onOpen restores the active room on a fresh channel. History is always
// requested again; user_joined is sent once membership is confirmed.
func (s *Session) onOpen() {
	if s.room == nil {
		return
	}
	s.ctrl.DeferHistory(s.requestHistory)
	if s.identity == nil {
		return
	}
	roomID, ident := s.room.RoomID, *s.identity

	if _, ok := s.members[roomID]; ok || s.rooms == nil {
		s.members[roomID] = struct{}{}
		s.ctrl.Send(protocol.NewUserJoined(roomID, ident))
		return
	}

	gen := s.ctrl.gen
	rooms := s.rooms
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), rejoinTimeout)
		defer cancel()
		err := rooms.JoinRoom(ctx, roomID, ident.UserID)
		s.loop.post(func() {
			if gen != s.ctrl.gen || !s.ctrl.IsOpen() || s.room == nil || s.room.RoomID != roomID {
				return
			}
			if err != nil && !roomapi.IsAlreadyMember(err) {
				s.log.Warn().Err(err).Int64("room_id", roomID).Msg("rejoin failed")
				s.setError(err.Error())
				return
			}
			s.members[roomID] = struct{}{}
			s.ctrl.Send(protocol.NewUserJoined(roomID, ident))
		})
	}()
}
