package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/guestbook/config"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale upload sessions and orphaned blobs",
	Long: `Reclaim storage left behind by deleted files and abandoned uploads.

This command:
  1. Deletes upload sessions that were used or have expired
  2. Finds blobs no file references that are older than the upload expiry
  3. Deletes each blob from storage, then its blob info

Run this periodically, for example from cron.`,
	RunE: runCleanup,
}

var cleanupLimit int

func init() {
	cleanupCmd.Flags().IntVar(&cleanupLimit, "limit", 100, "maximum number of blobs to sweep per batch")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	slog.Info("starting cleanup", "limit", cleanupLimit)

	result, err := a.service.Sweep(ctx, cleanupLimit)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	slog.Info("cleanup complete", "sessions_removed", result.Sessions, "blobs_removed", result.Blobs)
	return nil
}
