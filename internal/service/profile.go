package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

const (
	MaxBioLength      = 1000
	MaxLocationLength = 100
	maxTitleLength    = 200
)

// ProfileService edits the user-owned parts of a portfolio: profile fields
// and the experience, education and skill sections.
type ProfileService struct {
	users  repository.UserRepository
	resume repository.ResumeRepository
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, resume repository.ResumeRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, resume: resume, logger: logger}
}

func (s *ProfileService) UpdateMe(ctx context.Context, userID string, patch model.UserPatch) (*model.User, error) {
	if patch.Bio != nil && len(*patch.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio", fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}
	if patch.Location != nil && len(*patch.Location) > MaxLocationLength {
		return nil, apperror.ValidationFailed("location", fmt.Sprintf("location must be %d characters or less", MaxLocationLength))
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !patch.Apply(user) {
		return user, nil
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}

// GetPublicUser returns the profile behind a portfolio username. A private
// profile is reported as not found.
func (s *ProfileService) GetPublicUser(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	user, err := s.users.GetByPortfolioUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.IsPublic {
		return nil, apperror.NotFound("user", username)
	}
	return user, nil
}

// ---- experience ----

func validateSpan(start time.Time, end *time.Time, current bool) error {
	if start.IsZero() {
		return apperror.ValidationFailed("start_date", "start date is required")
	}
	if end != nil && !current && end.Before(start) {
		return apperror.ValidationFailed("end_date", "end date must not be before start date")
	}
	return nil
}

func requireText(field, value string) error {
	if value == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if len(value) > maxTitleLength {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, maxTitleLength))
	}
	return nil
}

func validateExperience(e *model.Experience) error {
	if err := requireText("title", e.Title); err != nil {
		return err
	}
	if err := requireText("company", e.Company); err != nil {
		return err
	}
	return validateSpan(e.StartDate, e.EndDate, e.IsCurrent)
}

func (s *ProfileService) ListExperiences(ctx context.Context, userID string) ([]model.Experience, error) {
	return s.resume.ListExperiences(ctx, userID)
}

func (s *ProfileService) AddExperience(ctx context.Context, userID string, e model.Experience) (*model.Experience, error) {
	e.UserID = userID
	e.Title = strings.TrimSpace(e.Title)
	e.Company = strings.TrimSpace(e.Company)
	if e.IsCurrent {
		e.EndDate = nil
	}
	if err := validateExperience(&e); err != nil {
		return nil, err
	}
	if err := s.resume.CreateExperience(ctx, &e); err != nil {
		return nil, fmt.Errorf("creating experience: %w", err)
	}
	return &e, nil
}

func (s *ProfileService) UpdateExperience(ctx context.Context, userID, id string, patch model.ExperiencePatch) (*model.Experience, error) {
	e, err := s.resume.GetExperience(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(e)
	if err := validateExperience(e); err != nil {
		return nil, err
	}
	if err := s.resume.UpdateExperience(ctx, e); err != nil {
		return nil, fmt.Errorf("updating experience: %w", err)
	}
	return e, nil
}

func (s *ProfileService) DeleteExperience(ctx context.Context, userID, id string) error {
	return s.resume.DeleteExperience(ctx, userID, id)
}

// ---- education ----

func validateEducation(e *model.Education) error {
	if err := requireText("school", e.School); err != nil {
		return err
	}
	if err := requireText("degree", e.Degree); err != nil {
		return err
	}
	return validateSpan(e.StartDate, e.EndDate, e.IsCurrent)
}

func (s *ProfileService) ListEducation(ctx context.Context, userID string) ([]model.Education, error) {
	return s.resume.ListEducation(ctx, userID)
}

func (s *ProfileService) AddEducation(ctx context.Context, userID string, e model.Education) (*model.Education, error) {
	e.UserID = userID
	e.School = strings.TrimSpace(e.School)
	e.Degree = strings.TrimSpace(e.Degree)
	if e.IsCurrent {
		e.EndDate = nil
	}
	if err := validateEducation(&e); err != nil {
		return nil, err
	}
	if err := s.resume.CreateEducation(ctx, &e); err != nil {
		return nil, fmt.Errorf("creating education: %w", err)
	}
	return &e, nil
}

func (s *ProfileService) UpdateEducation(ctx context.Context, userID, id string, patch model.EducationPatch) (*model.Education, error) {
	e, err := s.resume.GetEducation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(e)
	if err := validateEducation(e); err != nil {
		return nil, err
	}
	if err := s.resume.UpdateEducation(ctx, e); err != nil {
		return nil, fmt.Errorf("updating education: %w", err)
	}
	return e, nil
}

func (s *ProfileService) DeleteEducation(ctx context.Context, userID, id string) error {
	return s.resume.DeleteEducation(ctx, userID, id)
}

// ---- skills ----

func (s *ProfileService) ListSkills(ctx context.Context, userID string) ([]model.Skill, error) {
	return s.resume.ListSkills(ctx, userID)
}

func (s *ProfileService) AddSkill(ctx context.Context, userID string, sk model.Skill) (*model.Skill, error) {
	sk.UserID = userID
	sk.Name = strings.TrimSpace(sk.Name)
	sk.Proficiency = strings.TrimSpace(sk.Proficiency)
	sk.Category = strings.TrimSpace(sk.Category)
	if err := requireText("name", sk.Name); err != nil {
		return nil, err
	}
	if err := s.resume.CreateSkill(ctx, &sk); err != nil {
		return nil, fmt.Errorf("creating skill: %w", err)
	}
	return &sk, nil
}

func (s *ProfileService) UpdateSkill(ctx context.Context, userID, id string, patch model.SkillPatch) (*model.Skill, error) {
	sk, err := s.resume.GetSkill(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(sk)
	if err := requireText("name", sk.Name); err != nil {
		return nil, err
	}
	if err := s.resume.UpdateSkill(ctx, sk); err != nil {
		return nil, fmt.Errorf("updating skill: %w", err)
	}
	return sk, nil
}

func (s *ProfileService) DeleteSkill(ctx context.Context, userID, id string) error {
	return s.resume.DeleteSkill(ctx, userID, id)
}
