package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/service"
)

// Syncer runs a synchronization pass for one user.
type Syncer interface {
	SyncUser(ctx context.Context, userID string) (*service.SyncResult, error)
}

// ProjectHandler serves the owner's project list and the sync trigger.
type ProjectHandler struct {
	projects *service.ProjectService
	syncer   Syncer
	logger   *slog.Logger
}

func NewProjectHandler(projects *service.ProjectService, syncer Syncer, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, syncer: syncer, logger: logger}
}

// SyncResponse is the body of POST /projects/sync.
type SyncResponse struct {
	Message       string                 `json:"message"`
	SyncedCount   int                    `json:"synced_count"`
	DegradedCount int                    `json:"degraded_count"`
	Degraded      []service.DegradedRepo `json:"degraded,omitempty"`
	Complete      bool                   `json:"complete"`
	// Warning is set when the pass stopped early but some projects were
	// already saved.
	Warning string `json:"warning,omitempty"`
}

// HandleSync pulls the caller's repositories from GitHub.
//
// HTTP: POST /projects/sync
//
// A pass that stopped early (rate limit, revoked token) after saving some
// projects still answers 200 with complete=false and a warning. A pass that
// saved nothing answers with the mapped error status.
func (h *ProjectHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.SyncUser(r.Context(), userID)
	if err != nil && (result == nil || result.SyncedCount == 0) {
		h.logger.Warn("project sync failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	resp := SyncResponse{
		Message:       fmt.Sprintf("Synced %d projects", result.SyncedCount),
		SyncedCount:   result.SyncedCount,
		DegradedCount: len(result.Degraded),
		Degraded:      result.Degraded,
		Complete:      result.Complete,
	}
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			resp.Warning = appErr.Message
		} else {
			resp.Warning = "sync stopped before all repositories were processed"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleList returns one page of the caller's projects.
//
// HTTP: GET /projects?skip=0&limit=20&status=deployed
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	skip, err := intParam(q.Get("skip"), "skip", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit", service.DefaultListLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.projects.List(r.Context(), userID, model.ProjectStatus(q.Get("status")), limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HTTP: GET /projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleUpdate changes the user-owned fields of a project.
//
// HTTP: PUT /projects/{id}
// REQUEST BODY: {"is_visible": false}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch model.ProjectPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.projects.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HTTP: DELETE /projects/{id}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}
