package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/web"
)

const fallbackErrorHTML = `<html>
<head><title>Error</title></head>
<body>
<center><h1>Something went wrong</h1></center>
<hr><center>guestbook</center>
</body>
</html>`

var statusMessages = map[int]string{
	http.StatusBadRequest:            "The request could not be understood.",
	http.StatusForbidden:             "This link is not valid any more.",
	http.StatusNotFound:              "There is nothing here.",
	http.StatusMethodNotAllowed:      "That method is not allowed here.",
	http.StatusRequestEntityTooLarge: "The upload is too large.",
	http.StatusInternalServerError:   "The server could not finish the request.",
}

// StatusFor maps an error from the service to an HTTP status.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, guestbook.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, guestbook.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, guestbook.ErrUnauthorized), errors.Is(err, guestbook.ErrUploadExpired):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HandleError logs err and writes the error page for its status.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request error", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request refused", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeErrorPage(w, status)
}

func (h *Handler) writeErrorPage(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Del("Content-Disposition")
	w.WriteHeader(status)

	data := web.ErrorData{Status: status, Title: http.StatusText(status), Message: statusMessages[status]}
	if err := h.renderer.Render(w, web.ErrorPage, data); err != nil {
		slog.Error("render error page", "error", err)
		_, _ = io.WriteString(w, fallbackErrorHTML)
	}
}
