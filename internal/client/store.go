package client

import (
	"slices"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// MessageStore is the ordered message list of the room on screen.
// Ids are unique and timestamps never decrease; equal timestamps keep
// insertion order.
type MessageStore struct {
	messages []protocol.ChatMessage
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Add upserts m: an entry with the same id is replaced, not duplicated.
func (s *MessageStore) Add(m protocol.ChatMessage) {
	s.messages = slices.DeleteFunc(s.messages, func(existing protocol.ChatMessage) bool {
		return existing.ID == m.ID
	})
	s.messages = append(s.messages, m)
	sortByTimestamp(s.messages)
}

// Replace discards the current content and loads messages. Used for
// history loads only.
func (s *MessageStore) Replace(messages []protocol.ChatMessage) {
	next := make([]protocol.ChatMessage, 0, len(messages))
	for _, m := range messages {
		// A later duplicate wins, same as a sequence of Adds.
		next = slices.DeleteFunc(next, func(existing protocol.ChatMessage) bool {
			return existing.ID == m.ID
		})
		next = append(next, m)
	}
	sortByTimestamp(next)
	s.messages = next
}

func (s *MessageStore) Clear() {
	s.messages = nil
}

// Messages returns a copy of the current sequence.
func (s *MessageStore) Messages() []protocol.ChatMessage {
	return slices.Clone(s.messages)
}

func (s *MessageStore) Len() int {
	return len(s.messages)
}

func sortByTimestamp(messages []protocol.ChatMessage) {
	slices.SortStableFunc(messages, func(a, b protocol.ChatMessage) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
}
