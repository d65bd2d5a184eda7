package client

import (
	"time"

	"github.com/vladimirruppel/roomchat/internal/metrics"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

const (
	unknownSender       = "Unknown"
	defaultErrorMessage = "An error occurred"
)

// processServerFrame decodes one inbound frame and routes it by type.
// Runs on the session loop. Bad frames are logged and counted, never fatal.
func (s *Session) processServerFrame(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("undecodable").Inc()
		s.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable frame")
		return
	}
	metrics.FramesReceived.WithLabelValues(string(frame.FrameType())).Inc()

	switch f := frame.(type) {
	case protocol.Message:
		s.handleChatMessage(f)
	case protocol.History:
		s.handleHistory(f)
	case protocol.UserJoined:
		s.publish(Event{Kind: EventPresence, Presence: Presence{
			RoomID: f.RoomID, UserID: f.UserID, Username: f.Username, Joined: true,
		}})
	case protocol.UserLeft:
		s.publish(Event{Kind: EventPresence, Presence: Presence{
			RoomID: f.RoomID, UserID: f.UserID, Username: f.Username,
		}})
	case protocol.ServerError:
		msg := f.Message
		if msg == "" {
			msg = defaultErrorMessage
		}
		s.log.Warn().Str("error", msg).Msg("server error")
		s.setError(msg)
	case protocol.Connected:
		s.log.Debug().Msg("server acknowledged connection")
	case protocol.Ping, protocol.Pong:
		// Keepalive only.
	case protocol.Unknown:
		metrics.FramesDropped.WithLabelValues("unknown_type").Inc()
		s.log.Debug().Str("type", string(f.Type)).Msg("ignoring unknown frame type")
	}
}

func (s *Session) handleChatMessage(f protocol.Message) {
	if s.room == nil || f.RoomID != s.room.RoomID {
		return
	}
	s.store.Add(normalizeMessage(f, s.now()))
	s.publish(Event{Kind: EventMessages})
}

func (s *Session) handleHistory(f protocol.History) {
	// A history frame without messages is the echo of our own request.
	if !f.Loaded || s.room == nil {
		return
	}
	if f.RoomID != 0 && f.RoomID != s.room.RoomID {
		s.log.Debug().Int64("room_id", f.RoomID).Msg("ignoring history for another room")
		return
	}
	s.store.Replace(normalizeHistory(f.Messages, s.room.RoomID, s.now()))
	s.publish(Event{Kind: EventMessages})
}

// normalizeMessage fills the fields a server may leave out.
func normalizeMessage(f protocol.Message, now time.Time) protocol.ChatMessage {
	m := protocol.ChatMessage{
		ID:         f.MessageID,
		SenderID:   f.UserID,
		SenderName: f.Username,
		Content:    f.Content,
		Timestamp:  f.Timestamp,
		RoomID:     f.RoomID,
	}
	if m.Timestamp == 0 {
		m.Timestamp = now.UnixMilli()
	}
	if m.SenderName == "" {
		m.SenderName = unknownSender
	}
	if m.ID == "" {
		m.ID = GenerateMessageID(m.SenderID, m.Timestamp)
	}
	return m
}

// normalizeHistory maps stored entries to messages, accepting either
// field spelling per entry.
func normalizeHistory(entries []protocol.HistoryEntry, activeRoom int64, now time.Time) []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, 0, len(entries))
	for _, e := range entries {
		m := protocol.ChatMessage{
			SenderID:   e.SenderID,
			SenderName: e.SenderName,
			Content:    e.Content,
			Timestamp:  e.Timestamp,
			RoomID:     e.RoomID,
		}
		if m.SenderID == 0 {
			m.SenderID = e.UserID
		}
		if m.SenderName == "" {
			m.SenderName = e.Username
		}
		if m.SenderName == "" {
			m.SenderName = unknownSender
		}
		if m.RoomID == 0 {
			m.RoomID = activeRoom
		}
		if m.Timestamp == 0 {
			m.Timestamp = now.UnixMilli()
		}
		switch {
		case e.MessageID != "":
			m.ID = string(e.MessageID)
		case e.ID != "":
			m.ID = string(e.ID)
		default:
			m.ID = GenerateMessageID(m.SenderID, m.Timestamp)
		}
		out = append(out, m)
	}
	return out
}
