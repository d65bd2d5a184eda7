package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/metrics"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size accepted from the peer.
	maxMessageSize = 1024 * 10

	sendBuffer = 256
)

// Client is one WebSocket connection to the dev server.
type Client struct {
	id   string
	srv  *Server
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	// Set from user_joined frames; touched only by readPump.
	userID   int64
	username string
	joined   map[int64]struct{}
}

func newClient(srv *Server, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		srv:    srv,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		log:    srv.log.With().Str("component", "ws").Str("conn_id", id).Logger(),
		joined: make(map[int64]struct{}),
	}
}

// readPump reads frames from the peer and acts on them.
func (c *Client) readPump() {
	defer func() {
		for roomID := range c.joined {
			c.srv.hub.Unsubscribe(c, roomID)
			c.broadcast(roomID, nil, protocol.NewUserLeft(roomID, c.identity()))
		}
		c.srv.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn().Err(err).Msg("unexpected close")
			} else {
				c.log.Debug().Err(err).Msg("read ended")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// Any frame proves the peer is alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("bad frame")
		c.sendError("Invalid message format")
		return
	}

	switch f := frame.(type) {
	case protocol.UserJoined:
		c.handleUserJoined(f)
	case protocol.UserLeft:
		c.handleUserLeft(f)
	case protocol.Message:
		c.handleMessage(f)
	case protocol.History:
		c.handleHistoryRequest(f)
	case protocol.Ping:
		c.sendJSON(protocol.NewPong())
	case protocol.Pong:
	default:
		c.log.Debug().Str("type", string(frame.FrameType())).Msg("unhandled frame type")
		c.sendError("Unknown message type")
	}
}

func (c *Client) handleUserJoined(f protocol.UserJoined) {
	if f.RoomID == 0 || f.UserID == 0 {
		c.sendError("Missing room_id or user_id")
		return
	}
	if !c.srv.rooms.Exists(f.RoomID) {
		c.sendError("Room not found")
		return
	}
	c.userID, c.username = f.UserID, f.Username
	if c.username == "" {
		if u, ok := c.srv.auth.UserByID(f.UserID); ok {
			c.username = u.Username
		}
	}

	c.joined[f.RoomID] = struct{}{}
	c.srv.hub.Subscribe(c, f.RoomID)
	c.broadcast(f.RoomID, nil, protocol.NewUserJoined(f.RoomID, c.identity()))
	c.log.Info().Int64("room_id", f.RoomID).Int64("user_id", c.userID).Msg("user joined room")
}

func (c *Client) handleUserLeft(f protocol.UserLeft) {
	if _, ok := c.joined[f.RoomID]; !ok {
		return
	}
	delete(c.joined, f.RoomID)
	c.srv.hub.Unsubscribe(c, f.RoomID)
	c.broadcast(f.RoomID, nil, protocol.NewUserLeft(f.RoomID, c.identity()))
}

func (c *Client) handleMessage(f protocol.Message) {
	if f.RoomID == 0 || strings.TrimSpace(f.Content) == "" {
		c.sendError("Missing room_id or content")
		return
	}
	if !c.srv.rooms.Exists(f.RoomID) {
		c.sendError("Room not found")
		return
	}

	m := protocol.ChatMessage{
		ID:         f.MessageID,
		SenderID:   f.UserID,
		SenderName: f.Username,
		Content:    f.Content,
		Timestamp:  f.Timestamp,
		RoomID:     f.RoomID,
	}
	if m.SenderID == 0 {
		m.SenderID = c.userID
	}
	if m.SenderName == "" {
		m.SenderName = c.username
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}

	stored, err := c.srv.history.Save(m)
	if err != nil {
		c.log.Error().Err(err).Msg("save message")
		c.sendError("Failed to store message")
		return
	}
	metrics.ServerMessagesRelayed.Inc()
	c.broadcast(stored.RoomID, c, protocol.NewChatMessage(stored))
}

func (c *Client) handleHistoryRequest(f protocol.History) {
	if f.RoomID == 0 {
		c.sendError("Missing room_id")
		return
	}
	messages, err := c.srv.history.Load(f.RoomID, c.srv.cfg.HistoryLimit)
	if err != nil {
		c.log.Error().Err(err).Int64("room_id", f.RoomID).Msg("load history")
		c.sendError("Failed to load history")
		return
	}
	c.sendJSON(protocol.HistoryReply{
		Type:     protocol.TypeMessageHistory,
		RoomID:   f.RoomID,
		Messages: historyEntries(messages),
	})
}

func (c *Client) identity() protocol.Identity {
	return protocol.Identity{UserID: c.userID, Username: c.username}
}

// writePump sends queued frames and pings to the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode reply")
		return
	}
	c.srv.hub.SendTo(c, data)
}

func (c *Client) sendError(message string) {
	c.sendJSON(protocol.NewErrorReply(message))
}

func (c *Client) broadcast(roomID int64, except *Client, env protocol.Envelope) {
	data, err := env.Encode()
	if err != nil {
		c.log.Error().Err(err).Msg("encode broadcast")
		return
	}
	c.srv.hub.Broadcast(roomID, except, data)
}
