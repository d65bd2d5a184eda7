package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/metrics"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// ErrReconnectExhausted is reported once the reconnect budget is spent.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// controllerHooks are invoked on the session loop.
type controllerHooks struct {
	onOpen        func()
	onFrame       func(data []byte)
	onStateChange func(state ConnectionState)
	onFailed      func(err error, attempts int)
}

// Controller owns the channel: its lifecycle state, the reconnect policy,
// the outbound queue, the heartbeat and every timer. It is not safe for
// concurrent use; all methods run on the session loop.
type Controller struct {
	cfg       Config
	dialer    Dialer
	loop      *eventLoop
	log       zerolog.Logger
	sessionID string
	hooks     controllerHooks

	state    ConnectionState
	attempts int
	conn     Conn
	// gen identifies the current connection. Dial results and reads that
	// carry an older generation are discarded.
	gen       uint64
	lastError string

	queue     *OutboundQueue
	heartbeat *Heartbeat

	reconnectTimer *time.Timer
	reconnectToken uint64
	historyTimer   *time.Timer
	historyToken   uint64
	cancelDial     context.CancelFunc
}

func newController(cfg Config, dialer Dialer, loop *eventLoop, log zerolog.Logger, sessionID string, hooks controllerHooks) *Controller {
	c := &Controller{
		cfg:       cfg,
		dialer:    dialer,
		loop:      loop,
		log:       log.With().Str("component", "connection").Logger(),
		sessionID: sessionID,
		hooks:     hooks,
		state:     StateIdle,
		queue:     NewOutboundQueue(),
	}
	c.heartbeat = newHeartbeat(cfg.HeartbeatInterval, loop.post, c.ping)
	metrics.ConnectionState.WithLabelValues(sessionID, StateIdle.String()).Set(1)
	return c
}

func (c *Controller) State() ConnectionState { return c.state }

func (c *Controller) Attempts() int { return c.attempts }

// LastError is the last transport failure, cleared when the channel opens.
func (c *Controller) LastError() string { return c.lastError }

func (c *Controller) QueueLen() int { return c.queue.Len() }

// Connect opens the channel. It is a no-op while connecting or open, and
// when the connection is disabled. From Reconnecting it dials at once and
// keeps the attempt count; from any other state the count starts over.
func (c *Controller) Connect() {
	if !c.cfg.Enabled {
		c.log.Debug().Msg("connect ignored, connection disabled")
		return
	}
	switch c.state {
	case StateConnecting, StateOpen:
		return
	case StateReconnecting:
		c.cancelReconnect()
	default:
		c.attempts = 0
	}
	c.dial()
}

// Disconnect drops the channel and every timer and returns to Idle.
// Nothing reconnects afterwards.
func (c *Controller) Disconnect() {
	c.cancelReconnect()
	c.cancelHistory()
	c.heartbeat.Stop()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.gen++
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close channel")
		}
		c.conn = nil
	}
	c.attempts = 0
	c.setState(StateIdle)
}

// IsOpen reports whether envelopes can be written right now.
func (c *Controller) IsOpen() bool {
	return c.state == StateOpen && c.conn != nil
}

// Transmit writes one envelope to the channel.
func (c *Controller) Transmit(env protocol.Envelope) error {
	if !c.IsOpen() {
		return errors.New("channel not open")
	}
	data, err := env.Encode()
	if err != nil {
		return errors.Wrapf(err, "encode %s", env.Type)
	}
	if err := c.conn.WriteMessage(data); err != nil {
		c.log.Warn().Err(err).Str("type", string(env.Type)).Msg("write failed")
		// A failed write leaves the socket unusable; reconnect now rather
		// than wait for the reader to notice.
		c.dropConn(err.Error())
		return errors.Wrapf(err, "write %s", env.Type)
	}
	metrics.FramesSent.WithLabelValues(string(env.Type)).Inc()
	return nil
}

// Send hands env to the outbound queue.
func (c *Controller) Send(env protocol.Envelope) SendResult {
	result := c.queue.Send(env, c)
	c.updateQueueDepth()
	if result == SendQueued {
		c.log.Debug().
			Str("type", string(env.Type)).
			Int("queued", c.queue.Len()).
			Msg("envelope queued")
	}
	return result
}

// DeferHistory runs request after the history delay if the channel is
// still open by then. A newer call replaces a pending one.
func (c *Controller) DeferHistory(request func()) {
	c.cancelHistory()
	c.historyToken++
	token := c.historyToken
	c.historyTimer = time.AfterFunc(c.cfg.HistoryDelay, func() {
		c.loop.post(func() {
			if token != c.historyToken || c.state != StateOpen {
				return
			}
			c.historyTimer = nil
			request()
		})
	})
}

// shutdown is Disconnect plus clearing per-session metric series.
func (c *Controller) shutdown() {
	c.Disconnect()
	for _, s := range stateNames {
		metrics.ConnectionState.DeleteLabelValues(c.sessionID, s)
	}
	metrics.QueueDepth.DeleteLabelValues(c.sessionID)
}

func (c *Controller) dial() {
	c.gen++
	gen := c.gen
	c.setState(StateConnecting)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.cfg.HandshakeTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancelDial = cancel

	c.log.Debug().Str("url", c.cfg.URL).Int("attempt", c.attempts).Msg("dialing")
	dialer, url := c.dialer, c.cfg.URL
	go func() {
		conn, err := dialer.Dial(ctx, url)
		cancel()
		posted := c.loop.post(func() { c.handleDial(gen, conn, err) })
		if !posted && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *Controller) handleDial(gen uint64, conn Conn, err error) {
	if gen != c.gen || c.state != StateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.cancelDial = nil

	if err != nil {
		c.lastError = err.Error()
		c.log.Warn().Err(err).Int("attempt", c.attempts).Msg("connect failed")
		c.handleClosed()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.lastError = ""
	c.setState(StateOpen)
	c.log.Info().Str("url", c.cfg.URL).Msg("channel open")

	c.heartbeat.Start()
	go c.readPump(gen, conn)

	if sent := c.queue.Flush(c); sent > 0 {
		c.log.Debug().Int("sent", sent).Int("left", c.queue.Len()).Msg("outbound queue flushed")
	}
	c.updateQueueDepth()
	if c.state != StateOpen {
		// A write failed during the flush and the channel is gone again.
		return
	}

	if c.hooks.onOpen != nil {
		c.hooks.onOpen()
	}
}

// readPump is the single reader of one connection. Frames are posted in
// arrival order, followed by the read error that ended the connection.
func (c *Controller) readPump(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.loop.post(func() { c.handleReadError(gen, err) })
			return
		}
		ok := c.loop.post(func() {
			if gen != c.gen || c.conn == nil {
				return
			}
			if c.hooks.onFrame != nil {
				c.hooks.onFrame(data)
			}
		})
		if !ok {
			return
		}
	}
}

func (c *Controller) handleReadError(gen uint64, err error) {
	if gen != c.gen || c.conn == nil {
		return
	}
	if isNormalClose(err) {
		c.log.Info().Msg("channel closed by server")
		c.dropConn("connection closed by server")
		return
	}
	c.log.Warn().Err(err).Msg("channel lost")
	c.dropConn(err.Error())
}

// dropConn closes the current connection and runs the close transition.
func (c *Controller) dropConn(reason string) {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.lastError = reason
	c.handleClosed()
}

// handleClosed moves to Closed and then to Reconnecting or Failed.
func (c *Controller) handleClosed() {
	c.heartbeat.Stop()
	c.cancelHistory()
	c.setState(StateClosed)

	if !c.cfg.Enabled {
		return
	}
	if c.attempts >= c.cfg.MaxAttempts {
		c.setState(StateFailed)
		metrics.ConnectFailures.Inc()
		err := errors.Wrapf(ErrReconnectExhausted, "after %d attempts", c.attempts)
		c.log.Error().Err(err).Msg("giving up on the channel")
		if c.hooks.onFailed != nil {
			c.hooks.onFailed(err, c.attempts)
		}
		return
	}
	c.scheduleReconnect()
}

func (c *Controller) scheduleReconnect() {
	c.attempts++
	metrics.ReconnectAttempts.Inc()
	c.setState(StateReconnecting)

	c.reconnectToken++
	token := c.reconnectToken
	c.log.Info().
		Int("attempt", c.attempts).
		Int("max", c.cfg.MaxAttempts).
		Dur("delay", c.cfg.ReconnectDelay).
		Msg("reconnect scheduled")

	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.loop.post(func() {
			if token != c.reconnectToken || c.state != StateReconnecting {
				return
			}
			c.reconnectTimer = nil
			c.dial()
		})
	})
}

func (c *Controller) cancelReconnect() {
	c.reconnectToken++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Controller) cancelHistory() {
	c.historyToken++
	if c.historyTimer != nil {
		c.historyTimer.Stop()
		c.historyTimer = nil
	}
}

// ping is written directly and never queued.
func (c *Controller) ping() {
	if !c.IsOpen() {
		return
	}
	if err := c.Transmit(protocol.NewPing()); err != nil {
		c.log.Debug().Err(err).Msg("ping failed")
	}
}

func (c *Controller) setState(next ConnectionState) {
	if c.state == next {
		return
	}
	prev := c.state
	c.state = next
	metrics.ConnectionState.WithLabelValues(c.sessionID, prev.String()).Set(0)
	metrics.ConnectionState.WithLabelValues(c.sessionID, next.String()).Set(1)
	c.log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("state change")
	if c.hooks.onStateChange != nil {
		c.hooks.onStateChange(next)
	}
}

func (c *Controller) updateQueueDepth() {
	metrics.QueueDepth.WithLabelValues(c.sessionID).Set(float64(c.queue.Len()))
}
