package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/guestbook/config"
	"github.com/sagarc03/guestbook/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long: `Create the greeting, file, blob info and upload session tables and
validate their schema. Running it again is harmless.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := database.Open(cmd.Context(), cfg.Database.Config, true)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database migration complete",
		"type", cfg.Database.Type,
		"greetings", cfg.Database.Tables.Greetings,
		"files", cfg.Database.Tables.Files,
		"blob_infos", cfg.Database.Tables.BlobInfos,
		"upload_sessions", cfg.Database.Tables.UploadSessions,
	)
	return nil
}
