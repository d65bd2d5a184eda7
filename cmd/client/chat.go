package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vladimirruppel/roomchat/internal/client"
	"github.com/vladimirruppel/roomchat/internal/protocol"
	"github.com/vladimirruppel/roomchat/internal/roomapi"
)

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <room-id>",
		Short: "Join a room and chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || roomID <= 0 {
				return errors.Errorf("invalid room id %q", args[0])
			}
			return a.chat(cmd.Context(), roomID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) chat(ctx context.Context, roomID int64, in io.Reader, out io.Writer) error {
	id, err := a.identity(ctx)
	if err != nil {
		return err
	}
	room, err := a.findRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		stopMetrics := a.serveMetrics()
		defer stopMetrics()
	}

	cfg := client.ConfigFrom(a.cfg)
	dialer := client.WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	if id.Token != "" {
		dialer.Header = http.Header{"Authorization": []string{"Bearer " + id.Token}}
	}
	session := client.New(cfg,
		client.WithIdentity(*id),
		client.WithRoomService(a.api),
		client.WithDialer(dialer),
		client.WithLogger(a.log),
	)
	defer session.Close()

	if err := session.Connect(); err != nil {
		return err
	}
	if err := session.JoinRoom(ctx, room.RoomID); err != nil && !roomapi.IsAlreadyMember(err) {
		return err
	}
	_ = session.ClearError()
	if err := session.SwitchRoom(room); err != nil {
		return err
	}
	printChatHelp(out, room, *id)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	v := newView(out, id.UserID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-session.Events():
			if !ok {
				return nil
			}
			v.render(session, ev)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := v.handleInput(session, line)
			if err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
			if done {
				return nil
			}
		}
	}
}

func (a *app) findRoom(ctx context.Context, roomID int64) (protocol.Room, error) {
	rooms, err := a.api.ListRooms(ctx)
	if err != nil {
		return protocol.Room{}, err
	}
	for _, r := range rooms {
		if r.RoomID == roomID {
			return r, nil
		}
	}
	return protocol.Room{}, errors.Errorf("room %d not found", roomID)
}

// serveMetrics exposes the client's collectors and returns a stop func.
func (a *app) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// view prints session changes to the terminal. A message is printed when
// first seen and again whenever its content changes under the same id.
type view struct {
	out     io.Writer
	self    int64
	printed map[string]string
}

func newView(out io.Writer, self int64) *view {
	return &view{out: out, self: self, printed: make(map[string]string)}
}

func (v *view) render(s *client.Session, ev client.Event) {
	switch ev.Kind {
	case client.EventMessages:
		v.showMessages(s.Snapshot().Messages)
	case client.EventPresence:
		if ev.Presence.UserID != v.self {
			printPresence(v.out, ev.Presence)
		}
	case client.EventState:
		switch ev.State {
		case client.StateOpen, client.StateReconnecting, client.StateFailed:
			fmt.Fprintf(v.out, "-- %s --\n", strings.ToLower(ev.State.String()))
		}
	case client.EventError:
		fmt.Fprintln(v.out, "!!", ev.Error)
		_ = s.ClearError()
	}
}

func (v *view) showMessages(messages []protocol.ChatMessage) {
	for _, m := range messages {
		if content, ok := v.printed[m.ID]; ok && content == m.Content {
			continue
		}
		v.printed[m.ID] = m.Content
		printMessage(v.out, m, v.self)
	}
}

// handleInput runs one line of input. It reports true when the chat
// should end.
func (v *view) handleInput(s *client.Session, line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case "/quit":
		return true, nil
	case "/leave":
		return true, s.LeaveRoom()
	case "/history":
		return false, s.FetchHistory()
	case "/status":
		printStatus(v.out, s.Snapshot())
		return false, nil
	}

	result, err := s.SendMessage(line)
	if err != nil {
		return false, err
	}
	if result == client.SendQueued {
		fmt.Fprintln(v.out, "(queued until the connection is back)")
	}
	return false, nil
}

