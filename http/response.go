package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sagarc03/guestbook"
)

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

// contentDisposition builds the attachment header for filename.
func contentDisposition(filename string) string {
	return `attachment; filename="` + dispositionEscaper.Replace(filename) + `"`
}

// serveBlob writes a blob with its stored content type. A seekable reader
// goes through http.ServeContent for Range and conditional requests.
func serveBlob(w http.ResponseWriter, r *http.Request, blob guestbook.BlobInfo, content io.ReadCloser, attachment bool) {
	defer func() { _ = content.Close() }()

	contentType := blob.ContentType
	if contentType == "" {
		contentType = guestbook.DefaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	if blob.ETag != "" {
		w.Header().Set("ETag", `"`+blob.ETag+`"`)
	}
	if attachment {
		w.Header().Set("Content-Disposition", contentDisposition(blob.Filename))
	}

	if rs, ok := content.(io.ReadSeeker); ok {
		http.ServeContent(w, r, blob.Filename, blob.CreatedAt, rs)
		return
	}

	if blob.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, content); err != nil {
		slog.Warn("stream blob", "key", blob.Key, "error", err)
	}
}
