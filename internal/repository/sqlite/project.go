package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

// ProjectDB is the projects view of DB.
type ProjectDB struct {
	conn *sql.DB
}

var _ repository.ProjectRepository = (*ProjectDB)(nil)

// Projects returns the project repository.
func (db *DB) Projects() *ProjectDB {
	return &ProjectDB{conn: db.conn}
}

const projectColumns = `id, github_id, user_id, name, description, url, homepage, readme_content,
	languages, stars, forks, watchers, status, deployed_url, is_visible, is_archived, is_fork,
	created_at, updated_at, github_updated_at, last_seen_at`

func scanProject(row scanner) (*model.Project, error) {
	var (
		p         model.Project
		languages string
		status    string
		ghUpdated sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.GitHubID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.URL,
		&p.Homepage,
		&p.ReadmeContent,
		&languages,
		&p.Stars,
		&p.Forks,
		&p.Watchers,
		&status,
		&p.DeployedURL,
		&p.IsVisible,
		&p.IsArchived,
		&p.IsFork,
		&p.CreatedAt,
		&p.UpdatedAt,
		&ghUpdated,
		&p.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = model.ProjectStatus(status)
	p.GitHubUpdatedAt = timePtr(ghUpdated)
	p.Languages = map[string]int{}
	if languages != "" {
		if err := json.Unmarshal([]byte(languages), &p.Languages); err != nil {
			return nil, fmt.Errorf("decoding languages of project %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func encodeLanguages(langs map[string]int) (string, error) {
	if len(langs) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(langs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *ProjectDB) FindByUserAndGitHubID(ctx context.Context, userID string, githubID int64) (*model.Project, error) {
	p, err := scanProject(s.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? AND github_id = ?`,
		userID, githubID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", fmt.Sprintf("github:%d", githubID))
		}
		return nil, fmt.Errorf("sqlite: finding project github:%d of user %s: %w", githubID, userID, err)
	}
	return p, nil
}

// Upsert writes project in one statement. On a (user_id, github_id)
// conflict the stored id, is_visible and created_at win; id and is_visible
// are handed back through RETURNING.
func (s *ProjectDB) Upsert(ctx context.Context, project *model.Project) error {
	if project.ID == "" {
		project.ID = xid.New().String()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.LastSeenAt.IsZero() {
		project.LastSeenAt = now
	}
	if project.Status == "" {
		project.Status = model.StatusCodeOnly
	}

	languages, err := encodeLanguages(project.Languages)
	if err != nil {
		return fmt.Errorf("sqlite: encoding languages of %s: %w", project.Name, err)
	}

	err = s.conn.QueryRowContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, github_id) DO UPDATE SET
			name              = excluded.name,
			description       = excluded.description,
			url               = excluded.url,
			homepage          = excluded.homepage,
			readme_content    = excluded.readme_content,
			languages         = excluded.languages,
			stars             = excluded.stars,
			forks             = excluded.forks,
			watchers          = excluded.watchers,
			status            = excluded.status,
			deployed_url      = excluded.deployed_url,
			is_archived       = excluded.is_archived,
			is_fork           = excluded.is_fork,
			updated_at        = excluded.updated_at,
			github_updated_at = excluded.github_updated_at,
			last_seen_at      = excluded.last_seen_at
		 RETURNING id, is_visible`,
		project.ID,
		project.GitHubID,
		project.UserID,
		project.Name,
		project.Description,
		project.URL,
		project.Homepage,
		project.ReadmeContent,
		languages,
		project.Stars,
		project.Forks,
		project.Watchers,
		string(project.Status),
		project.DeployedURL,
		project.IsVisible,
		project.IsArchived,
		project.IsFork,
		project.CreatedAt,
		project.UpdatedAt,
		nullTime(project.GitHubUpdatedAt),
		project.LastSeenAt.UTC(),
	).Scan(&project.ID, &project.IsVisible)
	if err != nil {
		return fmt.Errorf("sqlite: upserting project github:%d of user %s: %w", project.GitHubID, project.UserID, err)
	}
	return nil
}

// List returns one page of the user's projects and the total matching the
// filter, most recently pushed first.
func (s *ProjectDB) List(ctx context.Context, userID string, filter model.ProjectFilter) ([]model.Project, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.VisibleOnly {
		where = append(where, "is_visible = 1")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting projects of user %s: %w", userID, err)
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	pageArgs := append(args, clampLimit(filter.Limit), offset)

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE `+cond+`
		 ORDER BY github_updated_at DESC NULLS LAST, name ASC
		 LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing projects of user %s: %w", userID, err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	return projects, total, nil
}

// GetByID is scoped to userID: another user's project is reported as not
// found.
func (s *ProjectDB) GetByID(ctx context.Context, userID, id string) (*model.Project, error) {
	p, err := scanProject(s.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return p, nil
}

// Update persists the user-controlled fields.
func (s *ProjectDB) Update(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE projects SET is_visible = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		project.IsVisible, project.UpdatedAt, project.ID, project.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}
	return expectOneRow(res, "project", project.ID)
}

func (s *ProjectDB) Delete(ctx context.Context, userID, id string) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	return expectOneRow(res, "project", id)
}
