package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sorealabs/mybro-agent/internal/app/background"
	"github.com/sorealabs/mybro-agent/internal/config"
	"github.com/sorealabs/mybro-agent/internal/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat <email> <message...>",
	Short: "Run a single conversation turn from the command line",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(args[0], strings.Join(args[1:], " "))
	},
}

func runChat(email, message string) error {
	ctx := context.Background()
	cfg := config.Load()

	store, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	launcher := background.NewLauncher(0)
	defer launcher.Close()

	orchestrator, err := buildOrchestrator(ctx, cfg, store, launcher)
	if err != nil {
		return err
	}

	userID := domain.UserID(email)

	// The chat loop assumes the profile exists; a one-shot CLI turn
	// registers the user on the fly instead.
	if _, err := store.GetProfile(ctx, userID); err != nil {
		if upErr := store.UpsertProfile(ctx, &domain.Profile{ID: userID, DisplayName: email}); upErr != nil {
			return fmt.Errorf("registering user: %w", upErr)
		}
	}

	reply, err := orchestrator.ProcessTurn(ctx, userID, message)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}
