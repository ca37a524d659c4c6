package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/blobstore"
	"github.com/sagarc03/guestbook/config"
	"github.com/sagarc03/guestbook/database"
	"github.com/sagarc03/guestbook/keybackend"
)

// app holds what every command that touches records needs.
type app struct {
	db      database.Database
	service *guestbook.Service
	keys    *keybackend.MapSecretStore
	close   func()
}

type appOptions struct {
	migrate bool
	// signing loads the keys; commands that never sign can run without them.
	signing bool
}

// openApp connects the database, opens blob storage and builds the service.
// The caller runs close when done.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	var keys *keybackend.MapSecretStore
	var signer *guestbook.UploadSigner
	if opts.signing {
		var err error
		keys, err = keybackend.NewSecretStore(cfg.Keys)
		if err != nil {
			return nil, fmt.Errorf("load signing keys: %w", err)
		}
		signer = guestbook.NewUploadSigner(keys, cfg.Keys.Active)
		slog.Debug("loaded signing keys", "count", keys.Len(), "active", cfg.Keys.Active)
	}

	db, err := database.Open(ctx, cfg.Database.Config, opts.migrate)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("connected to database", "type", cfg.Database.Type, "migrated", opts.migrate)

	storage, closeStorage, err := blobstore.Open(ctx, cfg.Storage)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open blob storage: %w", err)
	}
	slog.Info("opened blob storage", "backend", cfg.Storage.Backend)

	service, err := guestbook.NewService(db.GetRepo(), storage, guestbook.ServiceConfig{
		DefaultGuestbook: cfg.Guestbook.DefaultName,
		PageSize:         cfg.Guestbook.PageSize,
		EnforceOwnership: cfg.Files.EnforceOwnership,
		UploadExpiry:     time.Duration(cfg.Upload.Expires) * time.Second,
		CleanupTimeout:   time.Duration(cfg.Upload.CleanupTimeout) * time.Second,
		PublicURL:        cfg.Server.PublicURL,
		Signer:           signer,
	})
	if err != nil {
		closeStorage()
		_ = db.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}

	return &app{
		db:      db,
		service: service,
		keys:    keys,
		close: func() {
			closeStorage()
			_ = db.Close()
		},
	}, nil
}
