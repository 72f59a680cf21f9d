package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/service"
)

// ResumeHandler serves CRUD for the experience, education and skill sections
// of the caller's portfolio. All three share one shape:
//
//	GET    /users/me/{section}       → list
//	POST   /users/me/{section}       → create (201)
//	PUT    /users/me/{section}/{id}  → partial update
//	DELETE /users/me/{section}/{id}  → delete (204)
//
// Dates are RFC 3339 timestamps.
type ResumeHandler struct {
	experience section[model.Experience, model.ExperiencePatch]
	education  section[model.Education, model.EducationPatch]
	skills     section[model.Skill, model.SkillPatch]
}

func NewResumeHandler(profiles *service.ProfileService) *ResumeHandler {
	return &ResumeHandler{
		experience: section[model.Experience, model.ExperiencePatch]{
			list:   profiles.ListExperiences,
			add:    profiles.AddExperience,
			update: profiles.UpdateExperience,
			remove: profiles.DeleteExperience,
		},
		education: section[model.Education, model.EducationPatch]{
			list:   profiles.ListEducation,
			add:    profiles.AddEducation,
			update: profiles.UpdateEducation,
			remove: profiles.DeleteEducation,
		},
		skills: section[model.Skill, model.SkillPatch]{
			list:   profiles.ListSkills,
			add:    profiles.AddSkill,
			update: profiles.UpdateSkill,
			remove: profiles.DeleteSkill,
		},
	}
}

// Routes mounts the three sections on r, which must sit behind RequireAuth.
func (h *ResumeHandler) Routes(r chi.Router) {
	r.Route("/experience", h.experience.mount)
	r.Route("/education", h.education.mount)
	r.Route("/skills", h.skills.mount)
}

// section adapts one resume section of ProfileService to HTTP. T is the
// entry type, P its patch type.
type section[T, P any] struct {
	list   func(ctx context.Context, userID string) ([]T, error)
	add    func(ctx context.Context, userID string, v T) (*T, error)
	update func(ctx context.Context, userID, id string, patch P) (*T, error)
	remove func(ctx context.Context, userID, id string) error
}

func (s section[T, P]) mount(r chi.Router) {
	r.Get("/", s.handleList)
	r.Post("/", s.handleCreate)
	r.Put("/{id}", s.handleUpdate)
	r.Delete("/{id}", s.handleDelete)
}

func (s section[T, P]) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := s.list(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s section[T, P]) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in T
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.add(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s section[T, P]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var patch P
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s section[T, P]) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
