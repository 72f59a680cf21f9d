package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ProjectPage is one page of a user's projects.
type ProjectPage struct {
	Items    []model.Project `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ProjectService serves the owner's view of synced projects. Projects are
// only ever created by sync.
type ProjectService struct {
	repo   repository.ProjectRepository
	logger *slog.Logger
}

func NewProjectService(repo repository.ProjectRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{repo: repo, logger: logger}
}

// List clamps limit to [1, MaxListLimit] and offset to >= 0. An unknown
// status is a validation error.
func (s *ProjectService) List(ctx context.Context, userID string, status model.ProjectStatus, limit, offset int) (*ProjectPage, error) {
	if status != "" && !status.Valid() {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("status must be one of %s, %s, %s", model.StatusDeployed, model.StatusCodeOnly, model.StatusInProgress))
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.repo.List(ctx, userID, model.ProjectFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list projects", slog.String("userID", userID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return &ProjectPage{
		Items:    items,
		Total:    total,
		Page:     offset/limit + 1,
		PageSize: limit,
	}, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, id string) (*model.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}
	return s.repo.GetByID(ctx, userID, id)
}

// Update applies a patch. An empty patch returns the project unchanged.
func (s *ProjectService) Update(ctx context.Context, userID, id string, patch model.ProjectPatch) (*model.Project, error) {
	project, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if !patch.Apply(project) {
		return project, nil
	}

	if err := s.repo.Update(ctx, project); err != nil {
		s.logger.Error("failed to update project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Info("project updated",
		slog.String("id", project.ID),
		slog.Bool("visible", project.IsVisible),
	)
	return project, nil
}

// Delete removes the local copy only. A later sync that still sees the
// repository on GitHub creates it again.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "project ID is required")
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("project deleted", slog.String("id", id), slog.String("userID", userID))
	return nil
}
