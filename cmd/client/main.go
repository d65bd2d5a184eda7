// Command client is a terminal front end for the room chat session core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vladimirruppel/roomchat/internal/config"
	"github.com/vladimirruppel/roomchat/internal/identity"
	"github.com/vladimirruppel/roomchat/internal/logging"
	"github.com/vladimirruppel/roomchat/internal/roomapi"
)

// app carries what every subcommand needs. It is filled in by the root
// command's pre-run hook.
type app struct {
	cfg   *config.Client
	log   zerolog.Logger
	api   *roomapi.Client
	store identity.Store
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "roomchat",
		Short:         "Chat in rooms from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.AddCommand(
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		roomsCmd(a),
		createRoomCmd(a),
		chatCmd(a),
	)
	return cmd
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.IsDevelopment(), cfg.LogLevel, os.Stderr)
	a.api = roomapi.New(cfg.APIURL,
		roomapi.WithTimeout(cfg.HTTPTimeout),
		roomapi.WithLogger(a.log),
	)

	store, err := identity.Open(ctx, cfg.IdentityStore)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
