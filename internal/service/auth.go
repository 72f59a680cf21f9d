// Package service holds the business rules. Handlers and the CLI call into
// it; it talks to storage only through the repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/auth"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

// maxUsernameAttempts bounds the login, login1, login2… search.
const maxUsernameAttempts = 1000

// AuthService turns a completed GitHub OAuth exchange into a local user and
// an access token.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	vault  *auth.Vault
	logger *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	vault *auth.Vault,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		vault:  vault,
		logger: logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and redirect in one step.
type AuthResult struct {
	User    *model.User
	Token   string
	Created bool
}

// LoginOrRegisterGitHub creates the user on first login and refreshes the
// GitHub-owned fields (username, avatar, email, access token) afterwards.
// The portfolio username is picked once, at creation.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	created := false
	switch {
	case err == nil:
		if err := s.refresh(ctx, user, ghUser); err != nil {
			return nil, err
		}
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.register(ctx, ghUser)
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, fmt.Errorf("service/auth: looking up github user %d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.GitHubUsername),
		slog.Bool("created", created),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token, Created: created}, nil
}

func (s *AuthService) refresh(ctx context.Context, user *model.User, ghUser *auth.GitHubUser) error {
	sealed, err := s.vault.Seal(user.ID, ghUser.AccessToken)
	if err != nil {
		return fmt.Errorf("service/auth: sealing token: %w", err)
	}

	user.GitHubUsername = ghUser.Login
	user.AvatarURL = ghUser.AvatarURL
	user.ProfileURL = ghUser.ProfileURL
	user.Email = ghUser.Email
	if sealed != "" {
		user.AccessToken = sealed
	}

	if err := s.users.UpdateOnLogin(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating user %s: %w", user.ID, err)
	}
	return nil
}

// register inserts a new user. A concurrent registration can take the chosen
// portfolio username between the check and the insert; the search is then
// repeated.
func (s *AuthService) register(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, error) {
	for range 3 {
		slug, err := s.pickPortfolioUsername(ctx, ghUser.Login)
		if err != nil {
			return nil, err
		}

		user := &model.User{
			ID:                newUserID(),
			GitHubID:          ghUser.ID,
			GitHubUsername:    ghUser.Login,
			PortfolioUsername: slug,
			AvatarURL:         ghUser.AvatarURL,
			ProfileURL:        ghUser.ProfileURL,
			Bio:               ghUser.Bio,
			Location:          ghUser.Location,
			Email:             ghUser.Email,
			IsPublic:          true,
		}
		// The user id is bound into the sealed token, so it is assigned first.
		user.AccessToken, err = s.vault.Seal(user.ID, ghUser.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("service/auth: sealing token: %w", err)
		}

		err = s.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating user (githubID=%d): %w", ghUser.ID, err)
		}

		// Same GitHub account registered concurrently: treat as a login.
		if existing, getErr := s.users.GetByGitHubID(ctx, ghUser.ID); getErr == nil {
			if err := s.refresh(ctx, existing, ghUser); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}
	return nil, apperror.Conflict("user", ghUser.Login)
}

// pickPortfolioUsername returns login, or login1, login2… for the first one
// not taken.
func (s *AuthService) pickPortfolioUsername(ctx context.Context, login string) (string, error) {
	base := strings.ToLower(strings.TrimSpace(login))
	if base == "" {
		return "", apperror.ValidationFailed("login", "GitHub login is empty")
	}

	for i := 0; i < maxUsernameAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		taken, err := s.users.PortfolioUsernameTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("service/auth: checking portfolio username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperror.Conflict("portfolio username", base)
}

// GetUserByID backs GET /users/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken returns the user id encoded in tokenStr.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
