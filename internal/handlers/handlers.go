package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/config"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/models"
	"expense-ledger/internal/report"
	"expense-ledger/internal/storage"
	"expense-ledger/web"

	"github.com/shopspring/decimal"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// DefaultSessionDuration is how long sessions last (30 days).
	DefaultSessionDuration = 30 * 24 * time.Hour
)

var pages = []string{"login.html", "signup.html", "list.html", "form.html", "stats.html"}

// Options configures Handlers. Zero values fall back to defaults.
type Options struct {
	Mode            config.Mode
	SingleUser      string
	SecureCookie    bool
	SessionDuration time.Duration
	CurrencySymbol  string
	Logger          *slog.Logger
	Now             func() time.Time
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db        *storage.DB
	ledger    *ledger.Ledger
	creds     *auth.Credentials
	opts      Options
	log       *slog.Logger
	now       func() time.Time
	templates map[string]*template.Template
}

// NewHandlers creates a new Handlers instance and parses the page templates.
func NewHandlers(db *storage.DB, l *ledger.Ledger, creds *auth.Credentials, opts Options) (*Handlers, error) {
	if opts.Mode == "" {
		opts.Mode = config.ModeMulti
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = DefaultSessionDuration
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "₹"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	h := &Handlers{
		db:     db,
		ledger: l,
		creds:  creds,
		opts:   opts,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if err := h.parseTemplates(); err != nil {
		return nil, err
	}
	return h, nil
}

// Mode reports how users are identified.
func (h *Handlers) Mode() config.Mode {
	return h.opts.Mode
}

// ReadOnly reports whether mutations are disabled.
func (h *Handlers) ReadOnly() bool {
	return h.opts.Mode == config.ModeReadOnly
}

// Single reports whether a single implicit user is served.
func (h *Handlers) Single() bool {
	return h.opts.Mode == config.ModeSingle
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
// In single mode the configured user is attached without a session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Single() {
			next.ServeHTTP(w, withUser(r, &models.User{Username: h.opts.SingleUser}))
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		sessionInfo, err := h.db.ValidateSessionWithInfo(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				h.serverError(w, r, "validate session", err)
				return
			}
			// Invalid or expired session, clear the cookie
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		// Rolling session: renew if past halfway point
		now := h.now()
		if sessionInfo.ExpiresAt.Sub(now) < h.opts.SessionDuration/2 {
			newExpiresAt := now.Add(h.opts.SessionDuration)
			if err := h.db.RenewSession(r.Context(), cookie.Value, newExpiresAt); err == nil {
				h.setSessionCookie(w, cookie.Value)
			} else {
				// If renewal fails, just continue with the current session
				h.logger(r).Warn("session renewal failed", "error", err)
			}
		}

		next.ServeHTTP(w, withUser(r, sessionInfo.User))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Username string
	Error    string
	Notice   string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to expenses
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.db.ValidateSession(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/expenses", http.StatusFound)
			return
		}
	}
	vm := LoginViewModel{}
	if r.URL.Query().Get("registered") == "1" {
		vm.Notice = "Account created successfully! Please login."
	}
	h.render(w, r, http.StatusOK, "login.html", "Login", vm)
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login.html", "Login", LoginViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.render(w, r, http.StatusBadRequest, "login.html", "Login", LoginViewModel{Username: username, Error: "Please enter both username and password."})
		return
	}

	user, err := h.creds.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger(r).Warn("login failed", "username", username)
			h.render(w, r, http.StatusUnauthorized, "login.html", "Login", LoginViewModel{Username: username, Error: "Invalid username or password."})
			return
		}
		h.logger(r).Error("login lookup failed", "error", err)
		h.render(w, r, http.StatusInternalServerError, "login.html", "Login", LoginViewModel{Username: username, Error: "An error occurred. Please try again."})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.logger(r).Error("failed to generate session token", "error", err)
		h.render(w, r, http.StatusInternalServerError, "login.html", "Login", LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	expiresAt := h.now().Add(h.opts.SessionDuration)
	if err := h.db.CreateSession(r.Context(), token, user.ID, expiresAt); err != nil {
		h.logger(r).Error("failed to create session", "error", err)
		h.render(w, r, http.StatusInternalServerError, "login.html", "Login", LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	h.setSessionCookie(w, token)
	h.logger(r).Info("user logged in", "username", user.Username)
	http.Redirect(w, r, "/expenses", http.StatusFound)
}

// SignupViewModel holds data for the signup page.
type SignupViewModel struct {
	Username string
	Error    string
}

// SignupForm renders the signup page.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", "Sign up", SignupViewModel{})
}

// Signup registers a new account and sends the user to the login page.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "signup.html", "Sign up", SignupViewModel{Error: "Invalid form submission"})
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	confirm := r.FormValue("confirm")
	vm := SignupViewModel{Username: strings.TrimSpace(username)}

	switch {
	case strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(confirm) == "":
		vm.Error = "Please fill in all fields."
	case password != confirm:
		vm.Error = "Passwords do not match."
	}
	if vm.Error != "" {
		h.render(w, r, http.StatusUnprocessableEntity, "signup.html", "Sign up", vm)
		return
	}

	user, err := h.creds.Register(r.Context(), username, password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateUsername):
		vm.Error = "Username already exists. Please choose a different one."
		h.render(w, r, http.StatusConflict, "signup.html", "Sign up", vm)
		return
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
		vm.Error = capitalize(err.Error()) + "."
		h.render(w, r, http.StatusUnprocessableEntity, "signup.html", "Sign up", vm)
		return
	default:
		h.logger(r).Error("registration failed", "error", err)
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "signup.html", "Sign up", vm)
		return
	}

	h.logger(r).Info("user registered", "username", user.Username)
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			h.logger(r).Error("failed to delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.opts.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// View is the data every page template receives.
type View struct {
	Title    string
	User     *models.User
	ReadOnly bool
	Single   bool
	Data     any
}

func (h *Handlers) parseTemplates() error {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return report.FormatMoney(d, h.opts.CurrencySymbol)
		},
		"moneyOr": func(d decimal.NullDecimal, fallback string) string {
			if !d.Valid {
				return fallback
			}
			return report.FormatMoney(d.Decimal, h.opts.CurrencySymbol)
		},
		"style": getCategoryStyle,
	}

	h.templates = make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(web.TemplatesFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", page, err)
		}
		h.templates[page] = tmpl
	}
	return nil
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName, title string, data any) {
	tmpl, ok := h.templates[viewName]
	if !ok {
		h.serverError(w, r, "render", fmt.Errorf("unknown template %s", viewName))
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := tmpl.ExecuteTemplate(w, target, View{
		Title:    title,
		User:     GetUserFromContext(r),
		ReadOnly: h.ReadOnly(),
		Single:   h.Single(),
		Data:     data,
	})
	if err != nil {
		h.logger(r).Error("template execution failed", "template", viewName, "error", err)
	}
}

// redirect sends the browser to path, or tells htmx where to go.
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Location", fmt.Sprintf(`{"path":%q, "target":"#content"}`, path))
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger(r).Error(op+" failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handlers) logger(r *http.Request) *slog.Logger {
	if id := RequestIDFromContext(r.Context()); id != "" {
		return h.log.With("request_id", id)
	}
	return h.log
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
