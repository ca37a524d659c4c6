package http

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/identity"
)

// Service is what the handlers need from guestbook.Service.
type Service interface {
	GuestbookName(name string) string
	Greetings(ctx context.Context, guestbook string) ([]guestbook.Greeting, error)
	Sign(ctx context.Context, guestbook string, author *guestbook.User, content string) (guestbook.Greeting, error)
	CreateUploadURL(ctx context.Context, callback string) (string, error)
	ConsumeUpload(ctx context.Context, path string, query url.Values, sessionID string) (guestbook.UploadSession, error)
	StoreBlob(ctx context.Context, up guestbook.Upload, content io.Reader) (guestbook.BlobInfo, error)
	CompleteUpload(ctx context.Context, blobs []guestbook.BlobInfo, user *guestbook.User) (guestbook.File, error)
	ListFiles(ctx context.Context, user *guestbook.User) ([]guestbook.File, error)
	ListCategory(ctx context.Context, user *guestbook.User, c guestbook.Category) ([]guestbook.File, error)
	OpenBlob(ctx context.Context, user *guestbook.User, encodedKey string) (guestbook.BlobInfo, io.ReadCloser, error)
	DeleteRecord(ctx context.Context, user *guestbook.User, encodedKey string) error
}

// Renderer executes a named page template.
type Renderer interface {
	Render(w io.Writer, page string, data any) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// DefaultMaxUploadSize bounds an upload request body when none is configured.
const DefaultMaxUploadSize int64 = 32 << 20

type HandlerConfig struct {
	CORS CORSConfig
	// MaxUploadSize bounds the whole multipart body of an upload.
	MaxUploadSize int64
}

// Handler serves the guestbook pages.
type Handler struct {
	config   HandlerConfig
	service  Service
	renderer Renderer
	identity identity.Provider
}

// NewHandler creates a new Handler.
func NewHandler(config *HandlerConfig, service Service, renderer Renderer, provider identity.Provider) *Handler {
	cfg := *config
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		config:   cfg,
		service:  service,
		renderer: renderer,
		identity: provider,
	}
}

// Router returns the application's http.Handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Use(identity.Middleware(h.identity))

	r.Get("/_ah/health", h.handleHealth)
	h.identity.Routes(r)

	r.Get("/", h.handleMainPage)
	r.Post("/sign", h.handleSign)

	r.Get("/upload", h.handleUploadForm)
	r.Post("/upload_image", h.handleUploadImage)
	// r is captured so the endpoint can dispatch to the session's callback.
	r.Post(guestbook.UploadPathPrefix+"{session}", h.handleUpload(r))

	r.Get("/list", h.handleList)
	r.Get("/images", h.handleCategory(guestbook.CategoryImages))
	r.Get("/audio", h.handleCategory(guestbook.CategoryAudio))
	r.Get("/video", h.handleCategory(guestbook.CategoryVideo))

	r.Get("/view", h.handleBlob(false))
	r.Get("/download", h.handleBlob(true))
	r.Get("/delete", h.handleDelete)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeErrorPage(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeErrorPage(w, http.StatusMethodNotAllowed)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}
