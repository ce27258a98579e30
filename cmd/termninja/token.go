package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/termninja/config"
	"github.com/cyberinferno/termninja/store"
)

var (
	tokenUsername string
	tokenScore    int64
	tokenTTL      time.Duration
)

// userCreator is implemented by the persistent store drivers.
type userCreator interface {
	CreateUser(ctx context.Context, u store.User) (store.User, error)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Create a user with a fresh play token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		u, err := issueToken(cmd.Context(), cfg, tokenUsername, tokenScore, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (expires %s)\n", u.Username, u.PlayToken, u.PlayTokenExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUsername, "username", "u", "", "Username of the new user")
	tokenCmd.Flags().Int64Var(&tokenScore, "score", 0, "Initial score")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "How long the token stays valid")
	_ = tokenCmd.MarkFlagRequired("username")
}

func issueToken(ctx context.Context, cfg config.Config, username string, score int64, ttl time.Duration) (store.User, error) {
	st, _, err := newStore(cfg)
	if err != nil {
		return store.User{}, err
	}

	creator, ok := st.(userCreator)
	if !ok {
		return store.User{}, fmt.Errorf("store driver %q cannot persist users", cfg.StoreDriver)
	}

	if err := st.Connect(ctx); err != nil {
		return store.User{}, fmt.Errorf("connect store: %w", err)
	}
	defer st.Disconnect(context.WithoutCancel(ctx))

	return creator.CreateUser(ctx, store.User{
		Username:           username,
		Score:              score,
		PlayToken:          uuid.NewString(),
		PlayTokenExpiresAt: time.Now().Add(ttl).UTC(),
	})
}
