package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finance-tracker/internal/aggregate"
	"finance-tracker/internal/auth"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/metrics"
	"finance-tracker/internal/models"
	"finance-tracker/internal/session"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session_id"
)

// Deps are the components the handlers serve.
type Deps struct {
	Verifier *auth.Verifier
	Sessions session.Store
	Ledger   *ledger.Ledger
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Window selects the monthly-data window. Defaults to the calendar month.
	Window aggregate.Window
	// SessionMaxAge sets the cookie lifetime. Defaults to session.DefaultMaxAge.
	SessionMaxAge time.Duration
	SecureCookie  bool
	// Now overrides time.Now for monthly figures.
	Now func() time.Time
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	verifier      *auth.Verifier
	sessions      session.Store
	ledger        *ledger.Ledger
	metrics       *metrics.Metrics
	logger        *slog.Logger
	window        aggregate.Window
	sessionMaxAge time.Duration
	secureCookie  bool
	now           func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d Deps) *Handlers {
	h := &Handlers{
		verifier:      d.Verifier,
		sessions:      d.Sessions,
		ledger:        d.Ledger,
		metrics:       d.Metrics,
		logger:        d.Logger,
		window:        d.Window,
		sessionMaxAge: d.SessionMaxAge,
		secureCookie:  d.SecureCookie,
		now:           d.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.window == "" {
		h.window = aggregate.WindowCalendar
	}
	if h.sessionMaxAge <= 0 {
		h.sessionMaxAge = session.DefaultMaxAge
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes registers every API route on a new ServeMux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.Handle("POST /api/auth/logout", h.OptionalAuth(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/auth/me", h.RequireAuth(http.HandlerFunc(h.Me)))

	mux.Handle("GET /api/dashboard/balance", h.RequireAuth(http.HandlerFunc(h.Balance)))
	mux.Handle("GET /api/dashboard/monthly-data", h.RequireAuth(http.HandlerFunc(h.MonthlyData)))
	mux.Handle("GET /api/dashboard/transactions", h.RequireAuth(http.HandlerFunc(h.ListTransactions)))
	mux.Handle("POST /api/dashboard/transactions", h.RequireAuth(http.HandlerFunc(h.CreateTransaction)))
	mux.Handle("PUT /api/dashboard/transactions/{id}", h.RequireAuth(http.HandlerFunc(h.UpdateTransaction)))
	mux.Handle("DELETE /api/dashboard/transactions/{id}", h.RequireAuth(http.HandlerFunc(h.DeleteTransaction)))

	return mux
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.UserView {
	if user, ok := r.Context().Value(UserContextKey).(*models.UserView); ok {
		return user
	}
	return nil
}

// sessionToken reads the token from the session cookie or a bearer header.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:]), false
	}
	return "", false
}

// RequireAuth rejects requests without a valid session with 401.
// Cookie sessions get their cookie lifetime extended on every request,
// matching the sliding expiry on the server side.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			h.writeError(w, r, errNoSession)
			return
		}

		user, ok, err := h.sessions.Resolve(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !ok {
			if fromCookie {
				h.clearSessionCookie(w)
			}
			h.writeError(w, r, errInvalidSession)
			return
		}

		if fromCookie {
			h.setSessionCookie(w, token)
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the user when the session is valid and otherwise
// lets the request through unauthenticated.
func (h *Handlers) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := sessionToken(r)
		if token != "" {
			user, ok, err := h.sessions.Resolve(r.Context(), token)
			if err != nil {
				h.logger.WarnContext(r.Context(), "session lookup failed", "error", err)
			}
			if ok {
				r = r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *models.UserView `json:"user"`
}

// Login verifies credentials and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.Login(false)
		h.writeError(w, r, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), *user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.Login(true)
	h.logger.InfoContext(r.Context(), "user logged in", "user_id", user.ID)

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// Logout ends the presented session, if any. It always succeeds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := sessionToken(r); token != "" {
		if _, err := h.sessions.Invalidate(r.Context(), token); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, struct{}{})
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{User: GetUserFromContext(r)})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Service:   "Finance Tracker API",
	})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
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
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
