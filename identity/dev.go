package identity

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sagarc03/guestbook"
)

var devLoginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
  <head><title>Login</title></head>
  <body>
    <h3>Not signed in</h3>
    {{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
    <form method="post" action="{{.Action}}">
      <input type="hidden" name="continue" value="{{.Continue}}">
      <label>Email: <input type="text" name="email" value="{{.Email}}"></label>
      <input type="submit" value="Log In">
    </form>
  </body>
</html>
`))

type devLoginData struct {
	Action   string
	Continue string
	Email    string
	Error    string
}

// DevProvider signs in whoever types an email address. It is meant for
// local development only.
type DevProvider struct {
	sessionProvider
	validate *validator.Validate
}

// NewDevProvider creates a DevProvider storing users in sessions.
func NewDevProvider(sessions *Sessions) *DevProvider {
	return &DevProvider{
		sessionProvider: sessionProvider{sessions: sessions},
		validate:        validator.New(),
	}
}

// DevUserID derives a stable user id from an email address.
func DevUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(email))).String()
}

// Routes mounts the login form and logout.
func (p *DevProvider) Routes(r chi.Router) {
	r.Get(LoginPath, p.loginForm)
	r.Post(LoginPath, p.login)
	r.Get(LogoutPath, p.logout)
}

func (p *DevProvider) render(w http.ResponseWriter, status int, data devLoginData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := devLoginPage.Execute(w, data); err != nil {
		slog.Error("render login form", "error", err)
	}
}

func (p *DevProvider) loginForm(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, devLoginData{
		Action:   LoginPath,
		Continue: SafeContinue(r.URL.Query().Get(ContinueParam)),
	})
}

func (p *DevProvider) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	dest := SafeContinue(r.PostFormValue(ContinueParam))
	email := strings.TrimSpace(r.PostFormValue("email"))

	if err := p.validate.Var(email, "required,email"); err != nil {
		p.render(w, http.StatusBadRequest, devLoginData{
			Action:   LoginPath,
			Continue: dest,
			Email:    email,
			Error:    "Enter a valid email address.",
		})
		return
	}

	user := guestbook.User{ID: DevUserID(email), Email: email}
	if err := p.sessions.Issue(w, user); err != nil {
		slog.Error("issue dev session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slog.Debug("dev sign-in", "email", email)
	http.Redirect(w, r, dest, http.StatusFound)
}
