package guestbook

import "errors"

var (
	// ErrNotFound is returned when a record or blob does not exist
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when a signature or session is rejected
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoUpload is returned when an upload callback carries no stored blob
	ErrNoUpload = errors.New("no file uploaded")
	// ErrUploadExpired is returned when a signed upload URL is past its expiry
	ErrUploadExpired = errors.New("upload url expired")
)
