package model

import "time"

// ProjectStatus classifies how far a project has come.
type ProjectStatus string

const (
	StatusDeployed   ProjectStatus = "deployed"
	StatusCodeOnly   ProjectStatus = "code_only"
	StatusInProgress ProjectStatus = "in_progress"
)

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusDeployed, StatusCodeOnly, StatusInProgress:
		return true
	}
	return false
}

// Project is one GitHub repository mirrored for a user.
//
// (UserID, GitHubID) is unique. Everything except ID, IsVisible and CreatedAt
// is overwritten on each sync pass that sees the repository again; a project
// that disappears from GitHub stays as it was.
type Project struct {
	ID              string         `json:"id"`
	GitHubID        int64          `json:"github_id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	URL             string         `json:"url"`
	Homepage        string         `json:"homepage,omitempty"`
	ReadmeContent   string         `json:"readme_content,omitempty"`
	Languages       map[string]int `json:"languages"`
	Stars           int            `json:"stars"`
	Forks           int            `json:"forks"`
	Watchers        int            `json:"watchers"`
	Status          ProjectStatus  `json:"status"`
	DeployedURL     string         `json:"deployed_url,omitempty"`
	IsVisible       bool           `json:"is_visible"`
	IsArchived      bool           `json:"is_archived"`
	IsFork          bool           `json:"is_fork"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	GitHubUpdatedAt *time.Time     `json:"github_updated_at,omitempty"`
	LastSeenAt      time.Time      `json:"last_seen_at"`
}

// IsDeployed is derived from DeployedURL rather than stored separately.
func (p *Project) IsDeployed() bool {
	return p.DeployedURL != ""
}

// PublicProject is what the public portfolio shows for a visible project.
type PublicProject struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url"`
	DeployedURL string         `json:"deployed_url,omitempty"`
	Status      ProjectStatus  `json:"status"`
	Languages   map[string]int `json:"languages"`
	Stars       int            `json:"stars"`
	Forks       int            `json:"forks"`
}

func (p *Project) Public() PublicProject {
	return PublicProject{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		URL:         p.URL,
		DeployedURL: p.DeployedURL,
		Status:      p.Status,
		Languages:   p.Languages,
		Stars:       p.Stars,
		Forks:       p.Forks,
	}
}

// SyncFields copies every remote-owned field from src into p, leaving the
// local identity (ID, UserID, CreatedAt) and the user's IsVisible choice alone.
func (p *Project) SyncFields(src *Project) {
	p.GitHubID = src.GitHubID
	p.Name = src.Name
	p.Description = src.Description
	p.URL = src.URL
	p.Homepage = src.Homepage
	p.ReadmeContent = src.ReadmeContent
	p.Languages = src.Languages
	p.Stars = src.Stars
	p.Forks = src.Forks
	p.Watchers = src.Watchers
	p.Status = src.Status
	p.DeployedURL = src.DeployedURL
	p.IsArchived = src.IsArchived
	p.IsFork = src.IsFork
	p.GitHubUpdatedAt = src.GitHubUpdatedAt
	p.LastSeenAt = src.LastSeenAt
}

// ProjectPatch is the set of project fields a user may change by hand.
type ProjectPatch struct {
	IsVisible *bool `json:"is_visible"`
}

func (p ProjectPatch) Apply(pr *Project) bool {
	if p.IsVisible == nil {
		return false
	}
	pr.IsVisible = *p.IsVisible
	return true
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	Status      ProjectStatus // "" = any
	VisibleOnly bool
	Limit       int
	Offset      int
}
