package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/service"
)

// UserHandler serves the caller's own profile and public profiles.
type UserHandler struct {
	auth     *service.AuthService
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewUserHandler(authService *service.AuthService, profiles *service.ProfileService, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authService, profiles: profiles, logger: logger}
}

// HandleMe returns the authenticated user's full profile.
//
// HTTP: GET /users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Warn("users/me: lookup failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe applies a partial profile update.
//
// HTTP: PUT /users/me
// REQUEST BODY: {"bio": "...", "location": "...", "is_public": false}
//
// Omitted fields are left unchanged.
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch model.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.profiles.UpdateMe(r.Context(), userID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGetPublic returns the public profile behind a portfolio username.
//
// HTTP: GET /users/{username}
func (h *UserHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.GetPublicUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
