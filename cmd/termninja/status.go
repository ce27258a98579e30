package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/termninja/config"
	"github.com/cyberinferno/termninja/store"
	"github.com/cyberinferno/termninja/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this server's registration record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, _, err := newStore(cfg)
		if err != nil {
			return err
		}

		return printStatus(cmd.Context(), cmd.OutOrStdout(), cfg, st, time.Now())
	},
}

// printStatus looks up the record the heartbeat keeps for cfg.ServerName.
func printStatus(ctx context.Context, w io.Writer, cfg config.Config, st store.Store, now time.Time) error {
	if err := st.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer st.Disconnect(context.WithoutCancel(ctx))

	slug := utils.Slugify(cfg.ServerName)
	game, err := st.Games().GetGame(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		_, err = fmt.Fprintf(w, "%s (%s) is not registered\n", cfg.ServerName, slug)
		return err
	}
	if err != nil {
		return fmt.Errorf("get game %s: %w", slug, err)
	}

	age := now.Sub(game.LastHeartbeat).Round(time.Second)
	state := "alive"
	if age > 2*cfg.HeartbeatInterval {
		state = "stale"
	}

	_, err = fmt.Fprintf(w, "%s (%s) port %d, last heartbeat %s ago, %s\n",
		game.ServerName, slug, game.Port, age, state)
	return err
}
