// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite is the only implementation; service tests use
// hand-written in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/onelink-portfolio/internal/model"
)

// ListOptions is a page window. Limit <= 0 means the implementation default.
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// Create inserts a new user. A taken github_id, GitHub username or
	// portfolio username yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	GetByPortfolioUsername(ctx context.Context, username string) (*model.User, error)
	PortfolioUsernameTaken(ctx context.Context, username string) (bool, error)
	// UpdateOnLogin refreshes the GitHub-owned profile fields and the sealed
	// access token. The portfolio username is never touched.
	UpdateOnLogin(ctx context.Context, user *model.User) error
	// UpdateProfile writes the user-editable fields (bio, location, is_public).
	UpdateProfile(ctx context.Context, user *model.User) error
	SetLastSync(ctx context.Context, userID string, at time.Time) error
	// ListIDsWithCredential returns the users a background sync can act for.
	ListIDsWithCredential(ctx context.Context) ([]string, error)
}

type ProjectRepository interface {
	// FindByUserAndGitHubID returns apperror.ErrNotFound when the user has no
	// project for that repository.
	FindByUserAndGitHubID(ctx context.Context, userID string, githubID int64) (*model.Project, error)
	// Upsert inserts the project or, when (user_id, github_id) already exists,
	// overwrites the remote-owned fields. ID and IsVisible are written back
	// from the stored row.
	Upsert(ctx context.Context, project *model.Project) error
	List(ctx context.Context, userID string, filter model.ProjectFilter) ([]model.Project, int, error)
	GetByID(ctx context.Context, userID, id string) (*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, userID, id string) error
}

type ResumeRepository interface {
	CreateExperience(ctx context.Context, e *model.Experience) error
	GetExperience(ctx context.Context, userID, id string) (*model.Experience, error)
	ListExperiences(ctx context.Context, userID string) ([]model.Experience, error)
	UpdateExperience(ctx context.Context, e *model.Experience) error
	DeleteExperience(ctx context.Context, userID, id string) error

	CreateEducation(ctx context.Context, e *model.Education) error
	GetEducation(ctx context.Context, userID, id string) (*model.Education, error)
	ListEducation(ctx context.Context, userID string) ([]model.Education, error)
	UpdateEducation(ctx context.Context, e *model.Education) error
	DeleteEducation(ctx context.Context, userID, id string) error

	CreateSkill(ctx context.Context, s *model.Skill) error
	GetSkill(ctx context.Context, userID, id string) (*model.Skill, error)
	ListSkills(ctx context.Context, userID string) ([]model.Skill, error)
	UpdateSkill(ctx context.Context, s *model.Skill) error
	DeleteSkill(ctx context.Context, userID, id string) error
}
