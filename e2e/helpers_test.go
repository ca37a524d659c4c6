package e2e_test

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	// Create shared temp directory for the binary
	var err error
	sharedTempDir, err = os.MkdirTemp("", "guestbook-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	if testCleanup != nil {
		testCleanup()
	}

	// Cleanup shared temp directory
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

// ServerConfig holds configuration for starting the guestbook server.
type ServerConfig struct {
	Port             int
	DBType           string // sqlite, postgres
	DBDSN            string
	StoragePath      string
	EnforceOwnership bool
	UploadExpires    int // seconds, 0 for the default
}

// buildBinary compiles the guestbook binary once per test run.
// Returns the path to the compiled binary.
func buildBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "guestbook")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/guestbook")
		cmd.Dir = getProjectRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			binaryBuildErr = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
			return
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binary: %v", binaryBuildErr)
	}

	return binaryPath
}

// getProjectRoot returns the root directory of the project.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	// Find the go.mod file to determine project root
	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes a config file for the server. Table names get a
// random suffix so servers sharing one PostgreSQL database do not collide.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	suffix := uuid.NewString()[:8]
	expires := cfg.UploadExpires
	if expires == 0 {
		expires = 600
	}

	content := fmt.Sprintf(`server:
  port: %d

database:
  type: %s
  dsn: "%s"
  auto_migrate: false
  tables:
    greetings: greetings_%s
    files: files_%s
    blob_infos: blob_infos_%s
    upload_sessions: upload_sessions_%s

storage:
  backend: filesystem
  path: "%s"

upload:
  expires: %d

keys:
  active: e2e
  inline:
    - id: e2e
      secret: e2e-secret

auth:
  provider: dev

files:
  enforce_ownership: %t

log:
  level: error
`,
		cfg.Port,
		cfg.DBType,
		cfg.DBDSN,
		suffix, suffix, suffix, suffix,
		cfg.StoragePath,
		expires,
		cfg.EnforceOwnership,
	)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// runCommand runs a one-shot subcommand such as migrate or cleanup.
func runCommand(t *testing.T, configPath string, args ...string) string {
	t.Helper()

	binary := buildBinary(t)
	cmd := exec.Command(binary, append(args, "--config", configPath)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s: %s", args[0], output)
	return string(output)
}

// startServer migrates the database and starts the guestbook binary.
// Returns the base URL, the config path, and a cleanup function that must
// be called to stop the server.
func startServer(t *testing.T, cfg ServerConfig) (string, string, func()) {
	t.Helper()

	binary := buildBinary(t)
	configPath := createConfigFile(t, cfg)

	runCommand(t, configPath, "migrate")

	cmd := exec.Command(binary, "serve", "--config", configPath)

	// Capture output for debugging
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Start()
	require.NoError(t, err, "start server")

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)

	// Wait for server to be ready
	waitForServer(t, baseURL, 10*time.Second)

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	}

	return baseURL, configPath, cleanup
}

// waitForServer polls the health route until it responds or times out.
func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/_ah/health")
		if err == nil {
			resp.Body.Close()
			return // Server is ready
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	addr := l.Addr().(*net.TCPAddr)
	port := addr.Port

	err = l.Close()
	require.NoError(t, err, "close port")

	return port
}

// visitor is a browser stand-in: it keeps cookies and does not follow
// redirects, so tests can assert on them.
type visitor struct {
	t       *testing.T
	baseURL string
	client  *http.Client
}

func newVisitor(t *testing.T, baseURL string) *visitor {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &visitor{
		t:       t,
		baseURL: baseURL,
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// response is a fully read HTTP response.
type response struct {
	Status int
	Header http.Header
	Body   string
}

func (v *visitor) do(req *http.Request) response {
	v.t.Helper()

	resp, err := v.client.Do(req)
	require.NoError(v.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(v.t, err)

	return response{Status: resp.StatusCode, Header: resp.Header, Body: string(body)}
}

func (v *visitor) get(path string) response {
	v.t.Helper()

	req, err := http.NewRequest(http.MethodGet, v.baseURL+path, nil)
	require.NoError(v.t, err)
	return v.do(req)
}

func (v *visitor) postForm(path string, values url.Values) response {
	v.t.Helper()

	req, err := http.NewRequest(http.MethodPost, v.baseURL+path, strings.NewReader(values.Encode()))
	require.NoError(v.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return v.do(req)
}

// login signs in through the dev provider.
func (v *visitor) login(email string) {
	v.t.Helper()

	resp := v.postForm("/_ah/login", url.Values{"email": {email}, "continue": {"/"}})
	require.Equal(v.t, http.StatusFound, resp.Status, resp.Body)
}

var actionPattern = regexp.MustCompile(`action="([^"]+)"`)

// uploadURL fetches the upload form and returns its one-time action URL.
func (v *visitor) uploadURL() string {
	v.t.Helper()

	resp := v.get("/upload")
	require.Equal(v.t, http.StatusOK, resp.Status)

	m := actionPattern.FindStringSubmatch(resp.Body)
	require.Len(v.t, m, 2, "upload form has an action")
	return html.UnescapeString(m[1])
}

// upload posts one file to target as the upload form would.
func (v *visitor) upload(target, filename, contentType string, content []byte) response {
	v.t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	header["Content-Type"] = []string{contentType}
	w, err := mw.CreatePart(header)
	require.NoError(v.t, err)
	_, err = w.Write(content)
	require.NoError(v.t, err)
	require.NoError(v.t, mw.WriteField("submit", "Submit"))
	require.NoError(v.t, mw.Close())

	if !strings.HasPrefix(target, "http") {
		target = v.baseURL + target
	}
	req, err := http.NewRequest(http.MethodPost, target, &body)
	require.NoError(v.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return v.do(req)
}

var keyPattern = regexp.MustCompile(`/view\?key=([A-Za-z0-9_-]+)`)

// fileKeys returns the encoded keys linked from a file listing page.
func fileKeys(body string) []string {
	var keys []string
	for _, m := range keyPattern.FindAllStringSubmatch(body, -1) {
		keys = append(keys, m[1])
	}
	return keys
}
