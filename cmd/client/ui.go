package main

import (
	"fmt"
	"io"
	"time"

	"github.com/vladimirruppel/roomchat/internal/client"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

func printRooms(w io.Writer, rooms []protocol.Room) {
	fmt.Fprintln(w, "\n--- Rooms ---")
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms yet. Create one with: roomchat create-room <name>")
		return
	}
	for _, r := range rooms {
		fmt.Fprintf(w, "%d. %s (%d users)\n", r.RoomID, r.RoomName, r.UserCount)
	}
}

func printChatHelp(w io.Writer, room protocol.Room, who protocol.Identity) {
	fmt.Fprintf(w, "\n--- %s ---\n", room.RoomName)
	fmt.Fprintf(w, "Logged in as: %s (ID: %d)\n", who.Username, who.UserID)
	fmt.Fprintln(w, "Type a message and press Enter.")
	fmt.Fprintln(w, "Commands: /history  /status  /leave  /quit")
}

func printMessage(w io.Writer, m protocol.ChatMessage, self int64) {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	name := m.SenderName
	if m.SenderID == self {
		name = "you"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", ts, name, m.Content)
}

func printPresence(w io.Writer, p client.Presence) {
	verb := "left"
	if p.Joined {
		verb = "joined"
	}
	name := p.Username
	if name == "" {
		name = fmt.Sprintf("user %d", p.UserID)
	}
	fmt.Fprintf(w, "* %s %s the room\n", name, verb)
}

func printStatus(w io.Writer, s client.Snapshot) {
	fmt.Fprintf(w, "state: %s\n", s.State)
	if s.Room != nil {
		fmt.Fprintf(w, "room: %s (ID: %d)\n", s.Room.RoomName, s.Room.RoomID)
	}
	fmt.Fprintf(w, "messages: %d, queued: %d, reconnect attempts: %d\n",
		len(s.Messages), s.QueuedEnvelopes, s.ReconnectAttempts)
	if s.ConnectionError != "" {
		fmt.Fprintf(w, "last connection error: %s\n", s.ConnectionError)
	}
}
