package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// HistoryStore appends room messages to one JSONL file per room.
type HistoryStore struct {
	dir string
	log zerolog.Logger

	mu      sync.Mutex // guards fileMus
	fileMus map[int64]*sync.Mutex
}

// NewHistoryStore creates dir if needed.
func NewHistoryStore(dir string, log zerolog.Logger) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create history dir %s", dir)
	}
	return &HistoryStore{
		dir:     dir,
		log:     log.With().Str("component", "history").Logger(),
		fileMus: make(map[int64]*sync.Mutex),
	}, nil
}

func (s *HistoryStore) path(roomID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("room_%d.jsonl", roomID))
}

func (s *HistoryStore) fileMutex(roomID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.fileMus[roomID]
	if !ok {
		m = &sync.Mutex{}
		s.fileMus[roomID] = m
	}
	return m
}

// Save appends m to its room's file. A message without an id gets a uuid.
func (s *HistoryStore) Save(m protocol.ChatMessage) (protocol.ChatMessage, error) {
	if m.RoomID == 0 {
		return m, errors.New("room id is required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	fm := s.fileMutex(m.RoomID)
	fm.Lock()
	defer fm.Unlock()

	f, err := os.OpenFile(s.path(m.RoomID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return m, errors.Wrapf(err, "open history for room %d", m.RoomID)
	}
	defer f.Close()

	line, err := json.Marshal(m)
	if err != nil {
		return m, errors.Wrap(err, "encode message")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return m, errors.Wrapf(err, "append history for room %d", m.RoomID)
	}
	return m, nil
}

// Load returns the last limit messages of a room, oldest first.
// limit <= 0 means all of them.
func (s *HistoryStore) Load(roomID int64, limit int) ([]protocol.ChatMessage, error) {
	fm := s.fileMutex(roomID)
	fm.Lock()
	defer fm.Unlock()

	f, err := os.Open(s.path(roomID))
	if errors.Is(err, os.ErrNotExist) {
		return []protocol.ChatMessage{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open history for room %d", roomID)
	}
	defer f.Close()

	messages := []protocol.ChatMessage{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m protocol.ChatMessage
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			// Skip the damaged line, keep the rest.
			s.log.Warn().Err(err).Int64("room_id", roomID).Msg("bad history line")
			continue
		}
		messages = append(messages, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan history for room %d", roomID)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// historyEntries converts stored messages to the history reply shape.
func historyEntries(messages []protocol.ChatMessage) []protocol.HistoryEntry {
	out := make([]protocol.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		out = append(out, protocol.HistoryEntry{
			MessageID:  protocol.ID(m.ID),
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
			RoomID:     m.RoomID,
		})
	}
	return out
}
