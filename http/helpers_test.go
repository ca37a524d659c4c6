package http_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sagarc03/guestbook"
	gbhttp "github.com/sagarc03/guestbook/http"
	"github.com/sagarc03/guestbook/web"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = &guestbook.User{ID: "alice-id", Email: "alice@example.com"}
	bob   = &guestbook.User{ID: "bob-id", Email: "bob@example.com"}
)

// MockService implements gbhttp.Service for handler tests.
type MockService struct {
	mock.Mock
}

func (m *MockService) GuestbookName(name string) string {
	args := m.Called(name)
	return args.String(0)
}

func (m *MockService) Greetings(ctx context.Context, book string) ([]guestbook.Greeting, error) {
	args := m.Called(ctx, book)
	greetings, _ := args.Get(0).([]guestbook.Greeting)
	return greetings, args.Error(1)
}

func (m *MockService) Sign(ctx context.Context, book string, author *guestbook.User, content string) (guestbook.Greeting, error) {
	args := m.Called(ctx, book, author, content)
	return args.Get(0).(guestbook.Greeting), args.Error(1)
}

func (m *MockService) CreateUploadURL(ctx context.Context, callback string) (string, error) {
	args := m.Called(ctx, callback)
	return args.String(0), args.Error(1)
}

func (m *MockService) ConsumeUpload(ctx context.Context, path string, query url.Values, sessionID string) (guestbook.UploadSession, error) {
	args := m.Called(ctx, path, query, sessionID)
	return args.Get(0).(guestbook.UploadSession), args.Error(1)
}

func (m *MockService) StoreBlob(ctx context.Context, up guestbook.Upload, content io.Reader) (guestbook.BlobInfo, error) {
	args := m.Called(ctx, up, content)
	return args.Get(0).(guestbook.BlobInfo), args.Error(1)
}

func (m *MockService) CompleteUpload(ctx context.Context, blobs []guestbook.BlobInfo, user *guestbook.User) (guestbook.File, error) {
	args := m.Called(ctx, blobs, user)
	return args.Get(0).(guestbook.File), args.Error(1)
}

func (m *MockService) ListFiles(ctx context.Context, user *guestbook.User) ([]guestbook.File, error) {
	args := m.Called(ctx, user)
	files, _ := args.Get(0).([]guestbook.File)
	return files, args.Error(1)
}

func (m *MockService) ListCategory(ctx context.Context, user *guestbook.User, c guestbook.Category) ([]guestbook.File, error) {
	args := m.Called(ctx, user, c)
	files, _ := args.Get(0).([]guestbook.File)
	return files, args.Error(1)
}

func (m *MockService) OpenBlob(ctx context.Context, user *guestbook.User, encodedKey string) (guestbook.BlobInfo, io.ReadCloser, error) {
	args := m.Called(ctx, user, encodedKey)
	content, _ := args.Get(1).(io.ReadCloser)
	return args.Get(0).(guestbook.BlobInfo), content, args.Error(2)
}

func (m *MockService) DeleteRecord(ctx context.Context, user *guestbook.User, encodedKey string) error {
	args := m.Called(ctx, user, encodedKey)
	return args.Error(0)
}

// stubProvider reports a fixed user and serves no routes of its own.
type stubProvider struct {
	user *guestbook.User
}

func (p stubProvider) CurrentUser(*http.Request) *guestbook.User { return p.user }

func (p stubProvider) LoginURL(dest string) string {
	return "/_ah/login?continue=" + url.QueryEscape(dest)
}

func (p stubProvider) LogoutURL(dest string) string {
	return "/_ah/logout?continue=" + url.QueryEscape(dest)
}

func (p stubProvider) Routes(chi.Router) {}

func newRouter(t *testing.T, svc gbhttp.Service, user *guestbook.User, cfg gbhttp.HandlerConfig) http.Handler {
	t.Helper()

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	return gbhttp.NewHandler(&cfg, svc, renderer, stubProvider{user: user}).Router()
}
