// Package guestbook provides a guestbook and personal file-sharing service
// built on pluggable identity, record storage and blob storage backends.
//
// Signed-in or anonymous visitors post short greetings to a named guestbook.
// All greetings of one guestbook share a parent key, so listing them is a
// single strongly-consistent query ordered newest first. Separately, users
// upload binary files through one-time upload URLs and later list, stream,
// download or delete the files they own.
//
// # Key Components
//
//   - Service: every guestbook and file operation, combining a Repo and a BlobStorage
//   - Repo: record persistence (SQLite, PostgreSQL) for greetings, files,
//     blob infos and upload sessions, plus generic lookup by Key
//   - BlobStorage: blob bytes (filesystem, S3, MinIO)
//   - UploadSigner: signs and verifies one-time upload URLs
//   - Key: opaque, URL-safe record keys carrying kind and parent
//
// # Example Usage
//
//	signer := guestbook.NewUploadSigner(secrets, "k1")
//	service, err := guestbook.NewService(repo, storage, guestbook.ServiceConfig{
//	    Signer: signer,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Post a greeting
//	greeting, err := service.Sign(ctx, "default_name", user, "hello")
//
//	// Newest ten greetings
//	greetings, err := service.Greetings(ctx, "default_name")
//
// See the http package for the web front end and the database packages for
// record backends.
package guestbook
