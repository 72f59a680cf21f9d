// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User represents a portfolio owner.
//
// GitHub OAuth is the only identity provider, so GitHubID is the stable
// external key. The internal ID is an xid so our primary keys don't depend
// on GitHub's numbering.
//
// PortfolioUsername is the public slug (/portfolio/{slug}). It is chosen once,
// at creation, from the GitHub login with a numeric suffix on collision, and
// never changes afterwards even if the GitHub login does.
//
// Optional text fields use "" for absent, not *string.
type User struct {
	ID                string     `json:"id"`
	GitHubID          int64      `json:"github_id"`
	GitHubUsername    string     `json:"github_username"`
	PortfolioUsername string     `json:"portfolio_username"`
	AvatarURL         string     `json:"avatar_url,omitempty"`
	ProfileURL        string     `json:"profile_url,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	Location          string     `json:"location,omitempty"`
	Email             string     `json:"email,omitempty"`
	IsPublic          bool       `json:"is_public"`
	AccessToken       string     `json:"-"` // sealed GitHub token, never serialized
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastSyncAt        *time.Time `json:"last_sync,omitempty"`
}

// PublicUser is the subset of a User shown to anonymous visitors.
type PublicUser struct {
	PortfolioUsername string    `json:"portfolio_username"`
	GitHubUsername    string    `json:"github_username"`
	Bio               string    `json:"bio,omitempty"`
	Location          string    `json:"location,omitempty"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	ProfileURL        string    `json:"profile_url,omitempty"`
	IsPublic          bool      `json:"is_public"`
	CreatedAt         time.Time `json:"created_at"`
}

// Public strips private fields (email, token, sync state).
func (u *User) Public() PublicUser {
	return PublicUser{
		PortfolioUsername: u.PortfolioUsername,
		GitHubUsername:    u.GitHubUsername,
		Bio:               u.Bio,
		Location:          u.Location,
		AvatarURL:         u.AvatarURL,
		ProfileURL:        u.ProfileURL,
		IsPublic:          u.IsPublic,
		CreatedAt:         u.CreatedAt,
	}
}

// UserPatch lists the profile fields a user may edit. A nil field means
// "leave unchanged".
type UserPatch struct {
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
	IsPublic *bool   `json:"is_public"`
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Bio == nil && p.Location == nil && p.IsPublic == nil
}

// Apply merges the supplied fields into u and reports whether anything changed.
func (p UserPatch) Apply(u *User) bool {
	changed := false
	if p.Bio != nil {
		u.Bio = strings.TrimSpace(*p.Bio)
		changed = true
	}
	if p.Location != nil {
		u.Location = strings.TrimSpace(*p.Location)
		changed = true
	}
	if p.IsPublic != nil {
		u.IsPublic = *p.IsPublic
		changed = true
	}
	return changed
}
