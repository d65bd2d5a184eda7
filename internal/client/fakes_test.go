package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

var errConnClosed = errors.New("fake connection closed")

// fakeConn is an in-memory channel. Frames pushed by the test are read by
// the controller; frames written by the controller are recorded.
type fakeConn struct {
	mu        sync.Mutex
	written   []protocol.Envelope
	failWrite bool

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errors.New("write refused")
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.written = append(c.written, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(frame string) {
	c.inbound <- []byte(frame)
}

func (c *fakeConn) setFailWrite(fail bool) {
	c.mu.Lock()
	c.failWrite = fail
	c.mu.Unlock()
}

func (c *fakeConn) envelopes() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) types() []protocol.Type {
	var out []protocol.Type
	for _, env := range c.envelopes() {
		out = append(out, env.Type)
	}
	return out
}

func (c *fakeConn) count(t protocol.Type) int {
	n := 0
	for _, got := range c.types() {
		if got == t {
			n++
		}
	}
	return n
}

// fakeDialer hands out fakeConns. The first failFirst dials fail, and
// every dial fails while failAll is set.
type fakeDialer struct {
	mu        sync.Mutex
	dials     int
	failFirst int
	failAll   bool
	conns     []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failAll || d.dials <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) setFailAll(fail bool) {
	d.mu.Lock()
	d.failAll = fail
	d.mu.Unlock()
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// fakeRooms records membership calls and answers with err.
type fakeRooms struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (r *fakeRooms) JoinRoom(_ context.Context, roomID, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, roomID)
	return r.err
}

func (r *fakeRooms) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var (
	testIdentity = protocol.Identity{UserID: 7, Username: "alice", Role: "user", Token: "tok"}
	testRoom     = protocol.Room{RoomID: 1, RoomName: "general"}
)

func testConfig() Config {
	return Config{
		URL:               "ws://chat.test/ws",
		Enabled:           true,
		MaxAttempts:       3,
		ReconnectDelay:    20 * time.Millisecond,
		HeartbeatInterval: 0,
		HistoryDelay:      10 * time.Millisecond,
		HandshakeTimeout:  time.Second,
	}
}

func newTestSession(t *testing.T, cfg Config, d Dialer, opts ...Option) *Session {
	t.Helper()
	s := New(cfg, append([]Option{WithDialer(d)}, opts...)...)
	t.Cleanup(func() { s.Close() })
	return s
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func requireState(t *testing.T, s *Session, want ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == want
	}, waitFor, tick, "state never became %s (now %s)", want, s.Snapshot().State)
}
