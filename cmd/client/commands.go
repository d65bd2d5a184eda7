package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vladimirruppel/roomchat/internal/identity"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

var errNotSignedIn = errors.New("not signed in, run: roomchat login <username> <password>")

func registerCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.api.Register(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (ID: %d, role: %s)\n", u.Username, u.UserID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "account role (default: user)")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Sign in and remember the identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.api.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if err := a.store.Save(cmd.Context(), *id); err != nil {
				return err
			}
			a.log.Debug().Int64("user_id", id.UserID).Msg("identity saved")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (ID: %d)\n", id.Username, id.UserID)
			return nil
		},
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (ID: %d, role: %s)\n", id.Username, id.UserID, id.Role)
			return nil
		},
	}
}

func roomsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := a.api.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), rooms)
			return nil
		},
	}
}

func createRoomCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-room <name>",
		Short: "Create a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity(cmd.Context())
			if err != nil {
				return err
			}
			room, err := a.api.CreateRoom(cmd.Context(), args[0], id.UserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created room %q (ID: %d)\n", room.RoomName, room.RoomID)
			return nil
		},
	}
}

// identity loads the signed-in user or explains how to sign in.
func (a *app) identity(ctx context.Context) (*protocol.Identity, error) {
	id, err := a.store.Load(ctx)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, errNotSignedIn
	}
	if err != nil {
		return nil, err
	}
	if !id.Valid() {
		return nil, errNotSignedIn
	}
	return id, nil
}
