package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimirruppel/roomchat/internal/metrics"
	"github.com/vladimirruppel/roomchat/internal/protocol"
	"github.com/vladimirruppel/roomchat/internal/roomapi"
)

// openSession returns a signed-in session with an open channel.
func openSession(t *testing.T, cfg Config, opts ...Option) (*Session, *fakeDialer, *fakeConn) {
	t.Helper()
	d := &fakeDialer{}
	s := newTestSession(t, cfg, d, append([]Option{WithIdentity(testIdentity)}, opts...)...)
	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	return s, d, d.last()
}

func waitEvent(t *testing.T, s *Session, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "events closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("event never arrived")
		}
	}
}

func TestSendMessageBlankIsIgnored(t *testing.T) {
	s := newTestSession(t, testConfig(), &fakeDialer{}, WithIdentity(testIdentity))
	require.NoError(t, s.SwitchRoom(testRoom))

	result, err := s.SendMessage("   \n\t")
	require.NoError(t, err)
	assert.Equal(t, SendDropped, result)

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Zero(t, snap.QueuedEnvelopes)
}

func TestSendMessageNeedsIdentityAndRoom(t *testing.T) {
	s := newTestSession(t, testConfig(), &fakeDialer{})

	_, err := s.SendMessage("hello")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, s.SetIdentity(&testIdentity))
	_, err = s.SendMessage("hello")
	assert.ErrorIs(t, err, ErrNoActiveRoom)
	assert.Empty(t, s.Snapshot().Messages)
}

func TestQueuedMessagesFlushInOrderOnOpen(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity))
	require.NoError(t, s.SwitchRoom(testRoom))

	for _, content := range []string{"one", "two"} {
		result, err := s.SendMessage(content)
		require.NoError(t, err)
		assert.Equal(t, SendQueued, result)
	}
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.QueuedEnvelopes)
	require.Len(t, snap.Messages, 2, "sent messages show up before delivery")

	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	require.Eventually(t, func() bool { return len(conn.types()) == 4 }, waitFor, tick)
	assert.Equal(t, []protocol.Type{
		protocol.TypeMessage,
		protocol.TypeMessage,
		protocol.TypeUserJoined,
		protocol.TypeMessageHistory,
	}, conn.types())

	sent := conn.envelopes()
	assert.Equal(t, "one", sent[0].Content)
	assert.Equal(t, "two", sent[1].Content)
	assert.Equal(t, testRoom.RoomID, sent[2].RoomID)
	assert.Zero(t, s.Snapshot().QueuedEnvelopes)
}

func TestSendWhileOpenTransmitsAtOnce(t *testing.T) {
	s, _, conn := openSession(t, testConfig())
	require.NoError(t, s.SwitchRoom(testRoom))

	result, err := s.SendMessage("  hi  ")
	require.NoError(t, err)
	assert.Equal(t, SendSent, result)

	var msg protocol.Envelope
	for _, env := range conn.envelopes() {
		if env.Type == protocol.TypeMessage {
			msg = env
		}
	}
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, testIdentity.UserID, msg.UserID)
	assert.Equal(t, testIdentity.Username, msg.Username)
	assert.NotEmpty(t, msg.MessageID)
}

func TestWriteFailureQueuesAndReconnects(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryDelay = time.Hour
	s, d, conn := openSession(t, cfg)
	require.NoError(t, s.SwitchRoom(testRoom))
	conn.setFailWrite(true)

	result, err := s.SendMessage("hi")
	require.NoError(t, err)
	assert.Equal(t, SendQueued, result)
	assert.True(t, conn.isClosed(), "a failed write drops the channel")

	require.Eventually(t, func() bool { return d.dialCount() == 2 }, waitFor, tick)
	requireState(t, s, StateOpen)
	next := d.last()
	require.Eventually(t, func() bool { return next.count(protocol.TypeMessage) == 1 }, waitFor, tick)
	assert.Equal(t, "hi", next.envelopes()[0].Content)
	assert.Zero(t, s.Snapshot().QueuedEnvelopes)
}

func TestSendMessageIDsUniqueWithinMillisecond(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity))
	s.now = func() time.Time { return fixedNow }
	require.NoError(t, s.SwitchRoom(testRoom))

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.SendMessage(content)
		require.NoError(t, err)
	}

	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	base := fixedNow.UnixMilli()
	for i, m := range msgs {
		assert.Equal(t, base+int64(i), m.Timestamp)
		assert.Equal(t, GenerateMessageID(testIdentity.UserID, m.Timestamp), m.ID)
	}

	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()
	require.Eventually(t, func() bool { return conn.count(protocol.TypeMessage) == 3 }, waitFor, tick)
	seen := map[string]bool{}
	for _, env := range conn.envelopes() {
		if env.Type == protocol.TypeMessage {
			assert.False(t, seen[env.MessageID], "duplicate message_id %s", env.MessageID)
			seen[env.MessageID] = true
		}
	}
}

func TestOpenWithoutIdentityStillRequestsHistory(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d)
	require.NoError(t, s.SwitchRoom(testRoom))

	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	require.Eventually(t, func() bool { return conn.count(protocol.TypeMessageHistory) == 1 }, waitFor, tick)
	assert.Zero(t, conn.count(protocol.TypeUserJoined))
}

func TestFailsAfterMaxAttempts(t *testing.T) {
	d := &fakeDialer{failAll: true}
	s := newTestSession(t, testConfig(), d)
	failuresBefore := testutil.ToFloat64(metrics.ConnectFailures)
	require.NoError(t, s.Connect())

	requireState(t, s, StateFailed)
	assert.Equal(t, 4, d.dialCount(), "one initial dial plus three reconnects")
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.ConnectFailures), failuresBefore+1)

	snap := s.Snapshot()
	assert.Equal(t, "Unable to establish connection after 3 attempts", snap.Error)
	assert.Contains(t, snap.ConnectionError, "connection refused")
	assert.False(t, snap.Connected)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, d.dialCount(), "no dials after giving up")
}

func TestConnectAfterFailedStartsOver(t *testing.T) {
	d := &fakeDialer{failAll: true}
	s := newTestSession(t, testConfig(), d)
	require.NoError(t, s.Connect())
	requireState(t, s, StateFailed)

	d.setFailAll(false)
	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	assert.Equal(t, 5, d.dialCount())
	assert.Zero(t, s.Snapshot().ReconnectAttempts)
}

func TestAttemptsResetOnOpen(t *testing.T) {
	d := &fakeDialer{failFirst: 2}
	s := newTestSession(t, testConfig(), d)
	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	assert.Equal(t, 3, d.dialCount())

	snap := s.Snapshot()
	assert.Zero(t, snap.ReconnectAttempts)
	assert.Empty(t, snap.ConnectionError)

	// A drop now gets the full budget again.
	d.setFailAll(true)
	require.NoError(t, d.last().Close())
	requireState(t, s, StateFailed)
	// A drop spends reconnect dials only; there is no fresh initial dial.
	assert.Equal(t, 3+3, d.dialCount())
}

func TestReconnectsAfterDrop(t *testing.T) {
	s, d, conn := openSession(t, testConfig())
	require.NoError(t, s.SwitchRoom(testRoom))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return d.dialCount() == 2 }, waitFor, tick)
	requireState(t, s, StateOpen)

	next := d.last()
	require.NotSame(t, conn, next)
	require.Eventually(t, func() bool { return next.count(protocol.TypeMessageHistory) == 1 }, waitFor, tick)
	assert.Equal(t, 1, next.count(protocol.TypeUserJoined))
}

func TestConnectFromReconnectingKeepsAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectDelay = time.Hour
	d := &fakeDialer{failAll: true}
	s := newTestSession(t, cfg, d)

	require.NoError(t, s.Connect())
	requireState(t, s, StateReconnecting)
	assert.Equal(t, 1, s.Snapshot().ReconnectAttempts)

	require.NoError(t, s.Connect())
	require.Eventually(t, func() bool {
		return s.Snapshot().ReconnectAttempts == 2
	}, waitFor, tick)
	assert.Equal(t, 2, d.dialCount())
	assert.Equal(t, StateReconnecting, s.Snapshot().State)
}

func TestConnectIsNoopWhileOpen(t *testing.T) {
	s, d, _ := openSession(t, testConfig())
	require.NoError(t, s.Connect())
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, StateOpen, s.Snapshot().State)
}

func TestDisconnectCancelsHistoryRequest(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryDelay = 100 * time.Millisecond
	s, _, conn := openSession(t, cfg)

	require.NoError(t, s.SwitchRoom(testRoom))
	require.NoError(t, s.Disconnect())

	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.True(t, conn.isClosed())
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, conn.count(protocol.TypeMessageHistory))
	assert.Equal(t, StateIdle, s.Snapshot().State, "closing our own channel does not reconnect")
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectDelay = 100 * time.Millisecond
	d := &fakeDialer{failAll: true}
	s := newTestSession(t, cfg, d)

	require.NoError(t, s.Connect())
	requireState(t, s, StateReconnecting)
	require.NoError(t, s.Disconnect())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Zero(t, snap.ReconnectAttempts)
}

func TestDisabledConnectionNeverDials(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	d := &fakeDialer{}
	s := newTestSession(t, cfg, d)

	require.NoError(t, s.Connect())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, d.dialCount())
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestRejoinRegistersMembershipFirst(t *testing.T) {
	rooms := &fakeRooms{}
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity), WithRoomService(rooms))
	require.NoError(t, s.SwitchRoom(testRoom))

	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	require.Eventually(t, func() bool {
		return conn.count(protocol.TypeMessageHistory) == 1 && conn.count(protocol.TypeUserJoined) == 1
	}, waitFor, tick)
	assert.Equal(t, 1, rooms.callCount())
	assert.Len(t, conn.types(), 2)
	assert.True(t, s.Snapshot().IsMember(testRoom.RoomID))
}

func TestRejoinSkipsServiceForKnownMembership(t *testing.T) {
	rooms := &fakeRooms{}
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity), WithRoomService(rooms))

	require.NoError(t, s.JoinRoom(context.Background(), testRoom.RoomID))
	require.NoError(t, s.SwitchRoom(testRoom))
	assert.Equal(t, 1, rooms.callCount())

	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	require.Eventually(t, func() bool { return conn.count(protocol.TypeMessageHistory) == 1 }, waitFor, tick)
	assert.Equal(t, 1, rooms.callCount())
	// The queued announce plus the one made on open.
	assert.Equal(t, 2, conn.count(protocol.TypeUserJoined))
}

func TestRejoinTreatsAlreadyMemberAsSuccess(t *testing.T) {
	rooms := &fakeRooms{err: &roomapi.ServiceError{StatusCode: 400, Code: roomapi.CodeAlreadyMember, Message: "User already in room"}}
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity), WithRoomService(rooms))
	require.NoError(t, s.SwitchRoom(testRoom))

	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	require.Eventually(t, func() bool { return conn.count(protocol.TypeUserJoined) == 1 }, waitFor, tick)
	assert.Empty(t, s.Snapshot().Error)
}

func TestRejoinFailureSetsError(t *testing.T) {
	rooms := &fakeRooms{err: &roomapi.ServiceError{StatusCode: 400, Code: roomapi.CodeRoomFull, Message: "Room is full"}}
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity), WithRoomService(rooms))
	require.NoError(t, s.SwitchRoom(testRoom))

	require.NoError(t, s.Connect())
	require.Eventually(t, func() bool {
		return s.Snapshot().Error == "This room is full - please try another room"
	}, waitFor, tick)
	conn := d.last()
	require.Eventually(t, func() bool { return conn.count(protocol.TypeMessageHistory) == 1 }, waitFor, tick)
	assert.Zero(t, conn.count(protocol.TypeUserJoined))
	assert.False(t, s.Snapshot().IsMember(testRoom.RoomID))
}

func TestJoinRoomMapsServiceErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms/1/join", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"User already in room","error_code":-2}`))
	}))
	defer ts.Close()

	s := newTestSession(t, testConfig(), &fakeDialer{},
		WithIdentity(testIdentity), WithRoomService(roomapi.New(ts.URL)))

	err := s.JoinRoom(context.Background(), testRoom.RoomID)
	require.Error(t, err)
	assert.True(t, roomapi.IsAlreadyMember(err))

	snap := s.Snapshot()
	assert.Equal(t, "You are already a member of this room", snap.Error)
	assert.Empty(t, snap.Memberships)
	assert.Zero(t, snap.QueuedEnvelopes)

	require.NoError(t, s.ClearError())
	assert.Empty(t, s.Snapshot().Error)
}

func TestJoinRoomRequiresIdentity(t *testing.T) {
	rooms := &fakeRooms{}
	s := newTestSession(t, testConfig(), &fakeDialer{}, WithRoomService(rooms))

	err := s.JoinRoom(context.Background(), testRoom.RoomID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, rooms.callCount())
}

func TestLeaveRoomAnnounces(t *testing.T) {
	s, _, conn := openSession(t, testConfig())
	require.NoError(t, s.LeaveRoom())
	assert.Zero(t, conn.count(protocol.TypeUserLeft), "no active room")

	require.NoError(t, s.SwitchRoom(testRoom))
	require.NoError(t, s.LeaveRoom())
	assert.Equal(t, 1, conn.count(protocol.TypeUserLeft))
}

func TestInboundMessagesFilteredAndNormalised(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, testConfig(), d, WithIdentity(testIdentity))
	s.now = func() time.Time { return fixedNow }
	require.NoError(t, s.SwitchRoom(testRoom))
	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	conn.push(`{"type":"message","room_id":2,"user_id":3,"content":"elsewhere"}`)
	conn.push(`{"type":"message","room_id":1,"user_id":3,"content":"hello"}`)

	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 1 }, waitFor, tick)
	got := s.Snapshot().Messages[0]
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "Unknown", got.SenderName)
	assert.Equal(t, fixedNow.UnixMilli(), got.Timestamp)
	assert.Equal(t, "3-1700000000000", got.ID)
}

func TestHistoryReplacesStore(t *testing.T) {
	s, _, conn := openSession(t, testConfig())
	require.NoError(t, s.SwitchRoom(testRoom))
	_, err := s.SendMessage("optimistic")
	require.NoError(t, err)

	// An echo without messages and a reply for another room change nothing.
	conn.push(`{"type":"message_history","room_id":1}`)
	conn.push(`{"type":"message_history","room_id":2,"messages":[{"id":"x","content":"x","timestamp":1}]}`)
	conn.push(`{"type":"message_history","room_id":1,"messages":[` +
		`{"id":"b","sender_id":2,"sender_name":"bob","content":"b","timestamp":5},` +
		`{"message_id":7,"user_id":3,"username":"carol","content":"a","timestamp":2}]}`)

	require.Eventually(t, func() bool {
		msgs := s.Snapshot().Messages
		return len(msgs) == 2 && msgs[0].Content == "a"
	}, waitFor, tick)
	msgs := s.Snapshot().Messages
	assert.Equal(t, []string{"7", "b"}, ids(msgs))
	assert.Equal(t, "carol", msgs[0].SenderName)
	assert.Equal(t, int64(1), msgs[0].RoomID)
}

func TestServerErrorFrames(t *testing.T) {
	s, _, conn := openSession(t, testConfig())

	conn.push(`{"type":"error"}`)
	require.Eventually(t, func() bool { return s.Snapshot().Error == "An error occurred" }, waitFor, tick)

	conn.push(`{"type":"error","data":{"message":"Room not found"}}`)
	ev := waitEvent(t, s, func(ev Event) bool { return ev.Kind == EventError && ev.Error == "Room not found" })
	assert.Equal(t, "Room not found", ev.Error)
	assert.Equal(t, "Room not found", s.Snapshot().Error)
}

func TestBadFramesAreDropped(t *testing.T) {
	s, _, conn := openSession(t, testConfig())
	require.NoError(t, s.SwitchRoom(testRoom))
	undecodable := metrics.FramesDropped.WithLabelValues("undecodable")
	unknown := metrics.FramesDropped.WithLabelValues("unknown_type")
	undecodableBefore, unknownBefore := testutil.ToFloat64(undecodable), testutil.ToFloat64(unknown)

	conn.push(`not json`)
	conn.push(`{"type":"typing","room_id":1}`)
	conn.push(`{"type":"message","room_id":1,"user_id":3,"username":"bob","content":"still here","timestamp":5}`)

	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 1 }, waitFor, tick)
	snap := s.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Empty(t, snap.Error)
	assert.GreaterOrEqual(t, testutil.ToFloat64(undecodable), undecodableBefore+1)
	assert.GreaterOrEqual(t, testutil.ToFloat64(unknown), unknownBefore+1)
}

func TestPresenceEvents(t *testing.T) {
	s, _, conn := openSession(t, testConfig())

	conn.push(`{"type":"user_joined","room_id":1,"user_id":3,"username":"bob"}`)
	ev := waitEvent(t, s, func(ev Event) bool { return ev.Kind == EventPresence })
	assert.Equal(t, Presence{RoomID: 1, UserID: 3, Username: "bob", Joined: true}, ev.Presence)

	conn.push(`{"type":"user_left","room_id":1,"user_id":3,"username":"bob"}`)
	ev = waitEvent(t, s, func(ev Event) bool { return ev.Kind == EventPresence })
	assert.False(t, ev.Presence.Joined)
}

func TestHeartbeatPingsWhileOpen(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	s, _, conn := openSession(t, cfg)

	require.Eventually(t, func() bool { return conn.count(protocol.TypePing) >= 2 }, waitFor, tick)
	assert.Zero(t, s.Snapshot().QueuedEnvelopes, "pings are never queued")

	require.NoError(t, s.Disconnect())
	pings := conn.count(protocol.TypePing)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, pings, conn.count(protocol.TypePing))
}

func TestSetIdentityNilClearsSession(t *testing.T) {
	s, _, _ := openSession(t, testConfig())
	require.NoError(t, s.JoinRoom(context.Background(), testRoom.RoomID))
	require.NoError(t, s.SwitchRoom(testRoom))
	_, err := s.SendMessage("hi")
	require.NoError(t, err)

	require.NoError(t, s.SetIdentity(nil))
	snap := s.Snapshot()
	assert.Nil(t, snap.Identity)
	assert.Nil(t, snap.Room)
	assert.Empty(t, snap.Memberships)
	assert.Empty(t, snap.Messages)
}

func TestSwitchRoomClearsMessages(t *testing.T) {
	s, _, conn := openSession(t, testConfig())
	require.NoError(t, s.SwitchRoom(testRoom))
	_, err := s.SendMessage("hi")
	require.NoError(t, err)

	other := protocol.Room{RoomID: 2, RoomName: "random"}
	require.NoError(t, s.SwitchRoom(other))
	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, other, *snap.Room)

	require.Eventually(t, func() bool {
		for _, env := range conn.envelopes() {
			if env.Type == protocol.TypeMessageHistory && env.RoomID == 2 {
				return true
			}
		}
		return false
	}, waitFor, tick)
}

func TestCloseStopsSession(t *testing.T) {
	s, _, conn := openSession(t, testConfig())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, conn.isClosed())
	assert.ErrorIs(t, s.Connect(), ErrSessionClosed)
	_, err := s.SendMessage("late")
	assert.ErrorIs(t, err, ErrSessionClosed)

	for range s.Events() {
	}
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestFetchHistoryNeedsOpenChannelAndRoom(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryDelay = time.Hour
	d := &fakeDialer{}
	s := newTestSession(t, cfg, d, WithIdentity(testIdentity))

	require.NoError(t, s.SwitchRoom(testRoom))
	require.NoError(t, s.FetchHistory())
	assert.Zero(t, s.Snapshot().QueuedEnvelopes, "nothing is queued while closed")

	require.NoError(t, s.Disconnect())
	require.NoError(t, s.SetIdentity(nil))
	require.NoError(t, s.Connect())
	requireState(t, s, StateOpen)
	conn := d.last()

	require.NoError(t, s.FetchHistory())
	assert.Zero(t, conn.count(protocol.TypeMessageHistory), "no active room")

	require.NoError(t, s.SwitchRoom(testRoom))
	require.NoError(t, s.FetchHistory())
	assert.Equal(t, 1, conn.count(protocol.TypeMessageHistory))
}
