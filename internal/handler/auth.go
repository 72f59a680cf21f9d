package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/auth"
	"github.com/sakif/onelink-portfolio/internal/service"
)

// OAuthProvider is the part of *auth.GitHubProvider the login flow uses.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthConfig carries the settings of the OAuth redirect dance.
type AuthConfig struct {
	// FrontendURL receives the browser after a completed login, at
	// {FrontendURL}/auth/callback?token=...&user_id=...&username=...
	FrontendURL  string
	StateTTL     time.Duration
	TokenTTL     time.Duration
	SecureCookie bool
}

// AuthHandler manages the GitHub OAuth login flow and the session cookie.
//
//   - HandleGitHubLogin    → store a state token, redirect to GitHub
//   - HandleGitHubCallback → consume the state, exchange the code, log in
//   - HandleLogout         → clear the cookie
type AuthHandler struct {
	github OAuthProvider
	states auth.StateStore
	auth   *service.AuthService
	cfg    AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(
	github OAuthProvider,
	states auth.StateStore,
	authService *service.AuthService,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthHandler {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = auth.DefaultStateTTL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = auth.DefaultTokenTTL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &AuthHandler{
		github: github,
		states: states,
		auth:   authService,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// The state token goes into the pending-authorization store rather than a
// cookie, so a callback landing on another instance sharing the database
// still validates.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewState()
	if err != nil {
		h.logger.Error("auth login: generating state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if err := h.states.Save(r.Context(), state, h.now().Add(h.cfg.StateTTL)); err != nil {
		h.logger.Error("auth login: saving state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
//  1. Consume the state (single use, CSRF check)
//  2. Exchange the code for a GitHub profile and token
//  3. Create or refresh the local user
//  4. Set the JWT cookie and redirect to the frontend with the token
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// GitHub sends error=access_denied when the user declines.
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendURL("/login", url.Values{"error": {errParam}}), http.StatusSeeOther)
		return
	}

	ok, err := h.states.Consume(r.Context(), q.Get("state"))
	if err != nil {
		h.logger.Error("auth callback: consuming state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if !ok {
		h.logger.Warn("auth callback: unknown or expired state")
		writeError(w, apperror.ValidationFailed("state", "invalid or expired OAuth state"))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Transient("github oauth exchange", nil))
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.frontendURL("/auth/callback", url.Values{
		"token":    {result.Token},
		"user_id":  {result.User.ID},
		"username": {result.User.PortfolioUsername},
	}), http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so an already issued token stays valid until it
// expires; the browser just stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) frontendURL(path string, params url.Values) string {
	return h.cfg.FrontendURL + path + "?" + params.Encode()
}
