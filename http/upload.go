package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sagarc03/guestbook"
)

// maxFormValueSize bounds a single non-file field of an upload.
const maxFormValueSize = 1 << 20

type uploadsKey struct{}

// dispatchKey marks a request the upload endpoint handed to its callback.
type dispatchKey struct{}

func isDispatched(ctx context.Context) bool {
	dispatched, _ := ctx.Value(dispatchKey{}).(bool)
	return dispatched
}

// WithUploads returns a copy of ctx carrying the blobs stored by the upload
// endpoint, keyed by form field.
func WithUploads(ctx context.Context, uploads map[string][]guestbook.BlobInfo) context.Context {
	return context.WithValue(ctx, uploadsKey{}, uploads)
}

// UploadsFromContext returns the blobs stored for field, or nil when the
// request did not come through the upload endpoint.
func UploadsFromContext(ctx context.Context, field string) []guestbook.BlobInfo {
	uploads, _ := ctx.Value(uploadsKey{}).(map[string][]guestbook.BlobInfo)
	return uploads[field]
}

// handleUpload serves the one-time upload URL. File parts go to blob
// storage, then the request is handed to the session's callback on router
// with the stored blobs in its context.
func (h *Handler) handleUpload(router http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)

		session, err := h.service.ConsumeUpload(r.Context(), r.URL.Path, r.URL.Query(), chi.URLParam(r, "session"))
		if err != nil {
			h.HandleError(w, r, err)
			return
		}

		callback, err := url.Parse(session.CallbackPath)
		if err != nil || strings.HasPrefix(callback.Path, guestbook.UploadPathPrefix) {
			h.HandleError(w, r, fmt.Errorf("upload callback %q: %w", session.CallbackPath, guestbook.ErrInternal))
			return
		}

		uploads, values, err := h.storeParts(r)
		if err != nil {
			h.HandleError(w, r, err)
			return
		}

		slog.Debug("upload stored", "session", session.ID.String(), "fields", len(uploads), "callback", callback.Path)

		ctx := context.WithValue(WithUploads(r.Context(), uploads), dispatchKey{}, true)
		next := r.Clone(ctx)
		// The callback keeps the endpoint's request id.
		next.Header.Set(middleware.RequestIDHeader, middleware.GetReqID(ctx))
		next.Method = http.MethodPost
		next.URL = callback
		next.RequestURI = callback.RequestURI()
		next.Body = http.NoBody
		next.ContentLength = 0
		next.Header.Del("Content-Type")
		next.PostForm = values
		next.Form = values
		next.MultipartForm = nil

		router.ServeHTTP(w, next)
	}
}

// storeParts streams every file part of a multipart body into blob storage.
// Parts without a filename are kept as form values.
func (h *Handler) storeParts(r *http.Request) (map[string][]guestbook.BlobInfo, url.Values, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("upload: %w: %w", guestbook.ErrInvalidInput, err)
	}

	uploads := make(map[string][]guestbook.BlobInfo)
	values := make(url.Values)

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, uploadReadError(err)
		}

		if err := h.storePart(r.Context(), part, uploads, values); err != nil {
			_ = part.Close()
			return nil, nil, err
		}
		_ = part.Close()
	}

	return uploads, values, nil
}

func (h *Handler) storePart(ctx context.Context, part *multipart.Part, uploads map[string][]guestbook.BlobInfo, values url.Values) error {
	field := part.FormName()
	if field == "" {
		return nil
	}

	filename := part.FileName()
	if filename == "" {
		// A file input left empty still sends a part with filename="".
		if _, ok := part.Header["Content-Type"]; ok {
			_, err := io.Copy(io.Discard, part)
			return uploadReadError(err)
		}
		value, err := io.ReadAll(io.LimitReader(part, maxFormValueSize))
		if err != nil {
			return uploadReadError(err)
		}
		values.Add(field, string(value))
		return nil
	}

	info, err := h.service.StoreBlob(ctx, guestbook.Upload{
		Field:       field,
		Filename:    filename,
		ContentType: part.Header.Get("Content-Type"),
		Size:        -1,
	}, part)
	if err != nil {
		return err
	}

	uploads[field] = append(uploads[field], info)
	return nil
}

func uploadReadError(err error) error {
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("upload: %w", err)
	}
	return fmt.Errorf("upload: %w: %w", guestbook.ErrInvalidInput, err)
}
