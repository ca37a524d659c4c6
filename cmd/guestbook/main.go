package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/guestbook/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "guestbook",
	Short:   "Guestbook and personal file sharing server",
	Long: `Guestbook serves a multi-book guestbook and a small personal file
store: visitors sign a guestbook, upload files through one-time upload
URLs and browse, view or delete what they uploaded.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Env, cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeat to merge (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: GUESTBOOK_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: guestbook.db, env: GUESTBOOK_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-backend", "", "blob backend: filesystem, s3, minio (default: filesystem, env: GUESTBOOK_STORAGE_BACKEND)")
	rootCmd.PersistentFlags().String("storage-path", "", "blob directory for the filesystem backend (default: ./data, env: GUESTBOOK_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: GUESTBOOK_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
