package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

// portfolioProjectLimit caps the projects shown on a public page.
const portfolioProjectLimit = 100

// PortfolioService assembles the public page served at
// /portfolio/{portfolio_username}.
type PortfolioService struct {
	profiles *ProfileService
	projects repository.ProjectRepository
	resume   repository.ResumeRepository
	logger   *slog.Logger
}

func NewPortfolioService(
	profiles *ProfileService,
	projects repository.ProjectRepository,
	resume repository.ResumeRepository,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{profiles: profiles, projects: projects, resume: resume, logger: logger}
}

// Get returns only visible projects; hidden ones never leave the store.
func (s *PortfolioService) Get(ctx context.Context, username string) (*model.Portfolio, error) {
	user, err := s.profiles.GetPublicUser(ctx, username)
	if err != nil {
		return nil, err
	}

	projects, _, err := s.projects.List(ctx, user.ID, model.ProjectFilter{
		VisibleOnly: true,
		Limit:       portfolioProjectLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("portfolio: listing projects: %w", err)
	}
	experiences, err := s.resume.ListExperiences(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("portfolio: listing experiences: %w", err)
	}
	education, err := s.resume.ListEducation(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("portfolio: listing education: %w", err)
	}
	skills, err := s.resume.ListSkills(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("portfolio: listing skills: %w", err)
	}

	out := &model.Portfolio{
		User:        user.Public(),
		Projects:    make([]model.PublicProject, 0, len(projects)),
		Experiences: experiences,
		Education:   education,
		Skills:      skills,
	}
	for i := range projects {
		out.Projects = append(out.Projects, projects[i].Public())
	}
	return out, nil
}
