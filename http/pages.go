package http

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/identity"
	"github.com/sagarc03/guestbook/web"
)

// UploadCallbackPath receives the blobs of the upload form.
const UploadCallbackPath = "/upload_image"

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, page, data); err != nil {
		h.HandleError(w, r, err)
	}
}

func (h *Handler) handleMainPage(w http.ResponseWriter, r *http.Request) {
	name := h.service.GuestbookName(r.URL.Query().Get("guestbook_name"))

	greetings, err := h.service.Greetings(r.Context(), name)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	link, linkText := h.identity.LoginURL(r.URL.RequestURI()), "Login"
	if identity.UserFromContext(r.Context()) != nil {
		link, linkText = h.identity.LogoutURL(r.URL.RequestURI()), "Logout"
	}

	h.render(w, r, web.IndexPage, web.NewIndexData(greetings, name, link, linkText))
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	name := h.service.GuestbookName(r.FormValue("guestbook_name"))
	author := identity.UserFromContext(r.Context())

	if _, err := h.service.Sign(r.Context(), name, author, r.FormValue("content")); err != nil {
		h.HandleError(w, r, err)
		return
	}

	http.Redirect(w, r, "/?"+url.Values{"guestbook_name": {name}}.Encode(), http.StatusFound)
}

const uploadFormHTML = `<html><body>
<form action="%s" method="POST" enctype="multipart/form-data">
Upload File: <input type="file" name="file"><br>
<input type="submit" name="submit" value="Submit">
</form>
</body></html>
`

func (h *Handler) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	uploadURL, err := h.service.CreateUploadURL(r.Context(), UploadCallbackPath)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = fmt.Fprintf(w, uploadFormHTML, html.EscapeString(uploadURL))
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())

	file, err := h.service.CompleteUpload(r.Context(), UploadsFromContext(r.Context(), "file"), user)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	slog.Info("file uploaded",
		"key", file.Key.String(),
		"filename", file.Blob.Filename,
		"size", file.Blob.Size,
		"request_id", middleware.GetReqID(r.Context()),
	)
	http.Redirect(w, r, "/list", http.StatusFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())

	files, err := h.service.ListFiles(r.Context(), user)
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	h.render(w, r, web.ListPage, web.FilesData{Files: files, User: user})
}

var categoryPages = map[guestbook.Category]string{
	guestbook.CategoryImages: web.ImagesPage,
	guestbook.CategoryAudio:  web.AudioPage,
	guestbook.CategoryVideo:  web.VideoPage,
}

func (h *Handler) handleCategory(c guestbook.Category) http.HandlerFunc {
	page := categoryPages[c]
	return func(w http.ResponseWriter, r *http.Request) {
		user := identity.UserFromContext(r.Context())

		files, err := h.service.ListCategory(r.Context(), user, c)
		if err != nil {
			h.HandleError(w, r, err)
			return
		}

		h.render(w, r, page, web.FilesData{Files: files, User: user})
	}
}

func (h *Handler) handleBlob(attachment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := identity.UserFromContext(r.Context())

		blob, content, err := h.service.OpenBlob(r.Context(), user, r.URL.Query().Get("key"))
		if err != nil {
			h.HandleError(w, r, err)
			return
		}

		serveBlob(w, r, blob, content, attachment)
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())

	if err := h.service.DeleteRecord(r.Context(), user, r.URL.Query().Get("key")); err != nil {
		h.HandleError(w, r, err)
		return
	}

	http.Redirect(w, r, "/list", http.StatusFound)
}
