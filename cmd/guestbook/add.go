package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/config"
	"github.com/sagarc03/guestbook/identity"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import local files as uploaded files",
	Long: `Import files from local paths as if they had been uploaded.

Each file is written to blob storage, gets a blob info and a File record
owned by --owner. Without --owner the files have no owner and show up
for signed-out visitors.

Examples:
  # Add a single file for alice
  guestbook add --owner alice@example.com /path/to/photo.jpg

  # Add a directory recursively
  guestbook add -r --owner alice@example.com /path/to/music

  # Skip files the owner already has under the same name
  guestbook add --no-clobber --owner alice@example.com /path/to/photo.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addOwner     string
	addOwnerID   string
	addRecursive bool
	addNoClobber bool
	addQuiet     bool
)

func init() {
	addCmd.Flags().StringVarP(&addOwner, "owner", "o", "", "email of the owning user")
	addCmd.Flags().StringVar(&addOwnerID, "owner-id", "", "user id of the owner (default: the dev sign-in id of --owner)")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip files the owner already has under the same name")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(addCmd)
}

// fileEntry is a local file and the filename it is recorded under.
type fileEntry struct {
	sourcePath string
	filename   string
}

type addOptions struct {
	owner     *guestbook.User
	noClobber bool
	quiet     bool
}

type addResult struct {
	added   int
	skipped int
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	result, err := addFiles(ctx, a.service, files, addOptions{
		owner:     cliUser(addOwner, addOwnerID),
		noClobber: addNoClobber,
		quiet:     addQuiet,
	})
	if err != nil {
		return err
	}

	slog.Info("add complete", "added", result.added, "skipped", result.skipped)
	return nil
}

// addFiles stores each file as a blob and records a File for it.
func addFiles(ctx context.Context, service *guestbook.Service, files []fileEntry, opts addOptions) (addResult, error) {
	var result addResult

	existing := make(map[string]bool)
	if opts.noClobber {
		owned, err := service.ListFiles(ctx, opts.owner)
		if err != nil {
			return result, fmt.Errorf("list existing files: %w", err)
		}
		for _, f := range owned {
			existing[f.Blob.Filename] = true
		}
	}

	for _, entry := range files {
		if existing[entry.filename] {
			result.skipped++
			if !opts.quiet {
				slog.Info("skipped (exists)", "filename", entry.filename)
			}
			continue
		}

		file, err := addFile(ctx, service, entry, opts.owner)
		if err != nil {
			return result, err
		}
		if opts.noClobber {
			existing[entry.filename] = true
		}

		result.added++
		if !opts.quiet {
			slog.Info("added", "filename", entry.filename, "key", file.Key.Encode(), "content_type", file.Blob.ContentType)
		}
	}

	return result, nil
}

func addFile(ctx context.Context, service *guestbook.Service, entry fileEntry, owner *guestbook.User) (guestbook.File, error) {
	f, err := os.Open(entry.sourcePath)
	if err != nil {
		return guestbook.File{}, fmt.Errorf("open %s: %w", entry.sourcePath, err)
	}
	defer func() { _ = f.Close() }()

	var size int64 = -1
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}

	blob, err := service.StoreBlob(ctx, guestbook.Upload{
		Field:       "file",
		Filename:    entry.filename,
		ContentType: detectContentType(entry.sourcePath),
		Size:        size,
	}, f)
	if err != nil {
		return guestbook.File{}, fmt.Errorf("add %s: %w", entry.filename, err)
	}

	// A blob without a File is an orphan; cleanup collects it.
	file, err := service.CompleteUpload(ctx, []guestbook.BlobInfo{blob}, owner)
	if err != nil {
		return guestbook.File{}, fmt.Errorf("add %s: %w", entry.filename, err)
	}

	return file, nil
}

// cliUser builds the user a command acts for. An empty email and id means
// no user.
func cliUser(email, id string) *guestbook.User {
	if email == "" && id == "" {
		return nil
	}
	if id == "" {
		id = identity.DevUserID(email)
	}
	return &guestbook.User{ID: id, Email: email}
}

// collectFiles gathers files from a path, optionally recursively. Files
// found in a directory are named by their slash-separated path relative to it.
func collectFiles(path string, recursive bool) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []fileEntry{{sourcePath: path, filename: filepath.Base(path)}}, nil
	}

	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, fileEntry{
			sourcePath: walkPath,
			filename:   filepath.ToSlash(relPath),
		})
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}

// detectContentType determines the MIME type from a file's extension.
func detectContentType(path string) string {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		return guestbook.DefaultContentType
	}
	return contentType
}
