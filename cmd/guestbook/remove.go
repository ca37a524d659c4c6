package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <key1> [key2] ...",
	Short: "Remove files or greetings by key",
	Long: `Delete records by the key shown in /view, /download and /delete links.

Deleting a File leaves its blob in storage. The blob is reclaimed later
by 'guestbook cleanup'.

With files.enforce_ownership on, only records owned by --owner can be
removed.

Examples:
  # Remove one file
  guestbook remove RmlsZTo...

  # Remove every file alice owns
  guestbook remove --all --owner alice@example.com

  # Remove quietly (suppress per-key output)
  guestbook remove -q RmlsZTo... R3Vlc3Rib29r...`,
	Args: func(cmd *cobra.Command, args []string) error {
		if removeAll {
			if removeOwner == "" && removeOwnerID == "" {
				return errors.New("--all requires --owner or --owner-id")
			}
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runRemove,
}

var (
	removeOwner   string
	removeOwnerID string
	removeAll     bool
	removeQuiet   bool
)

// operator acts for remove when no owner is given.
var operator = &guestbook.User{ID: "guestbook-cli"}

func init() {
	removeCmd.Flags().StringVarP(&removeOwner, "owner", "o", "", "email of the user the records belong to")
	removeCmd.Flags().StringVar(&removeOwnerID, "owner-id", "", "user id of the owner (default: the dev sign-in id of --owner)")
	removeCmd.Flags().BoolVarP(&removeAll, "all", "a", false, "remove every file of --owner")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-key output")
	rootCmd.AddCommand(removeCmd)
}

type removeResult struct {
	removed  int
	notFound int
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	owner := cliUser(removeOwner, removeOwnerID)

	keys := args
	if removeAll {
		keys, err = ownedKeys(ctx, a.service, owner)
		if err != nil {
			return err
		}
	}

	actor := owner
	if actor == nil {
		actor = operator
	}

	result, err := removeKeys(ctx, a.service, actor, keys, removeQuiet)
	if err != nil {
		return err
	}

	slog.Info("remove complete", "removed", result.removed, "not_found", result.notFound)
	return nil
}

// ownedKeys returns the encoded keys of every file owner has.
func ownedKeys(ctx context.Context, service *guestbook.Service, owner *guestbook.User) ([]string, error) {
	files, err := service.ListFiles(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", owner, err)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.Key.Encode())
	}
	return keys, nil
}

// removeKeys deletes each record as actor. Missing records are counted, not
// fatal.
func removeKeys(ctx context.Context, service *guestbook.Service, actor *guestbook.User, keys []string, quiet bool) (removeResult, error) {
	var result removeResult

	for _, key := range keys {
		err := service.DeleteRecord(ctx, actor, key)
		if errors.Is(err, guestbook.ErrNotFound) {
			result.notFound++
			if !quiet {
				slog.Warn("not found", "key", key)
			}
			continue
		}
		if err != nil {
			return result, fmt.Errorf("remove %s: %w", key, err)
		}

		result.removed++
		if !quiet {
			slog.Info("removed", "key", key)
		}
	}

	return result, nil
}
