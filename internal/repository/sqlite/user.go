package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

// UserDB is the users view of DB.
type UserDB struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

// Users returns the user repository.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

const userColumns = `id, github_id, github_username, portfolio_username, avatar_url, profile_url,
	bio, location, email, is_public, access_token, created_at, updated_at, last_sync`

func scanUser(row scanner) (*model.User, error) {
	var (
		u        model.User
		lastSync sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.GitHubID,
		&u.GitHubUsername,
		&u.PortfolioUsername,
		&u.AvatarURL,
		&u.ProfileURL,
		&u.Bio,
		&u.Location,
		&u.Email,
		&u.IsPublic,
		&u.AccessToken,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastSync,
	)
	if err != nil {
		return nil, err
	}
	u.LastSyncAt = timePtr(lastSync)
	return &u, nil
}

// Create inserts user, assigning ID and timestamps when unset.
func (s *UserDB) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.GitHubID,
		user.GitHubUsername,
		user.PortfolioUsername,
		user.AvatarURL,
		user.ProfileURL,
		user.Bio,
		user.Location,
		user.Email,
		user.IsPublic,
		user.AccessToken,
		user.CreatedAt,
		user.UpdatedAt,
		nullTime(user.LastSyncAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.GitHubUsername)
		}
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

func (s *UserDB) getOne(ctx context.Context, where string, arg any, label string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` = ?`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", label, err)
	}
	return u, nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that id.
func (s *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getOne(ctx, "id", id, id)
}

func (s *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return s.getOne(ctx, "github_id", githubID, fmt.Sprintf("github:%d", githubID))
}

// GetByPortfolioUsername matches case-insensitively; slugs are stored as
// chosen.
func (s *UserDB) GetByPortfolioUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE portfolio_username = ? COLLATE NOCASE`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

func (s *UserDB) PortfolioUsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE portfolio_username = ? COLLATE NOCASE`, username,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking portfolio username %q: %w", username, err)
	}
	return n > 0, nil
}

func (s *UserDB) UpdateOnLogin(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users
		 SET github_username = ?, avatar_url = ?, profile_url = ?, email = ?, access_token = ?, updated_at = ?
		 WHERE id = ?`,
		user.GitHubUsername,
		user.AvatarURL,
		user.ProfileURL,
		user.Email,
		user.AccessToken,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.GitHubUsername)
		}
		return fmt.Errorf("sqlite: updating user %s on login: %w", user.ID, err)
	}
	return expectOneRow(res, "user", user.ID)
}

func (s *UserDB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET bio = ?, location = ?, is_public = ?, updated_at = ? WHERE id = ?`,
		user.Bio,
		user.Location,
		user.IsPublic,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile of user %s: %w", user.ID, err)
	}
	return expectOneRow(res, "user", user.ID)
}

func (s *UserDB) SetLastSync(ctx context.Context, userID string, at time.Time) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET last_sync = ? WHERE id = ?`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: setting last sync of user %s: %w", userID, err)
	}
	return expectOneRow(res, "user", userID)
}

func (s *UserDB) ListIDsWithCredential(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM users WHERE access_token != '' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users with credential: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return ids, nil
}

// expectOneRow turns "0 rows affected" into apperror.ErrNotFound.
func expectOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
