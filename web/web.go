// Package web holds the page templates, embedded in the binary and parsed
// once at startup.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/sagarc03/guestbook"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	IndexPage  = "index.html"
	ListPage   = "list.html"
	ImagesPage = "images.html"
	AudioPage  = "audio.html"
	VideoPage  = "video.html"
	ErrorPage  = "error.html"
)

var pages = []string{IndexPage, ListPage, ImagesPage, AudioPage, VideoPage, ErrorPage}

// IndexData feeds index.html.
type IndexData struct {
	Greetings []guestbook.Greeting
	// GuestbookName is already query-escaped.
	GuestbookName template.URL
	URL           string
	URLLinkText   string
}

// NewIndexData query-escapes name for the page.
func NewIndexData(greetings []guestbook.Greeting, name, link, linkText string) IndexData {
	return IndexData{
		Greetings:     greetings,
		GuestbookName: template.URL(url.QueryEscape(name)), //nolint:gosec // G203: QueryEscape output is URL safe
		URL:           link,
		URLLinkText:   linkText,
	}
}

// FilesData feeds list.html and the category pages.
type FilesData struct {
	Files []guestbook.File
	User  *guestbook.User
}

// ErrorData feeds error.html.
type ErrorData struct {
	Status  int
	Title   string
	Message string
}

// Renderer executes the page templates. It is safe for concurrent use.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page together with the shared partials.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).ParseFS(templateFS, "templates/nav.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes page into w. Output is buffered so a template error never
// leaves a half-written page.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("render %s: %w: unknown page", page, guestbook.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	_, err := buf.WriteTo(w)
	return err
}
