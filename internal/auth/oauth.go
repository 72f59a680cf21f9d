package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"
)

// GitHubUser is the authenticated GitHub profile plus the OAuth access token
// that produced it. The token is what later powers repository sync.
type GitHubUser struct {
	ID          int64
	Login       string
	Email       string
	AvatarURL   string
	ProfileURL  string
	Bio         string
	Location    string
	AccessToken string
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// The code-for-token exchange happens server to server with the client
// secret, so the access token never reaches the browser.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase *url.URL
}

// NewGitHubProvider creates a GitHubProvider.
//
// callbackURL must match the "Authorization callback URL" of the OAuth App
// exactly, e.g. "http://localhost:8000/auth/github/callback".
//
// Scopes:
//   - "read:user": public profile (id, login, avatar, bio, location)
//   - "user:email": primary email, even when hidden on the profile
//   - "public_repo": repository metadata for sync
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email", "public_repo"},
			Endpoint:     githubendpoint.Endpoint,
		},
	}
}

// WithEndpoints points the provider at non-default OAuth and API hosts
// (GitHub Enterprise or a fake server in tests).
func (p *GitHubProvider) WithEndpoints(authURL, tokenURL, apiBaseURL string) (*GitHubProvider, error) {
	cfg := *p.config
	cfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}

	cp := &GitHubProvider{config: &cfg}
	if apiBaseURL != "" {
		if !strings.HasSuffix(apiBaseURL, "/") {
			apiBaseURL += "/"
		}
		u, err := url.Parse(apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing API base URL: %w", err)
		}
		cp.apiBase = u
	}
	return cp, nil
}

// AuthURL returns the GitHub authorization URL carrying the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token and loads the
// authenticated user's profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	gh := github.NewClient(p.config.Client(ctx, oauthToken))
	if p.apiBase != nil {
		gh.BaseURL = p.apiBase
	}

	u, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("auth: fetching GitHub profile: %w", err)
	}
	if u.GetID() == 0 || u.GetLogin() == "" {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (id=%d login=%q)", u.GetID(), u.GetLogin())
	}

	email := u.GetEmail()
	if email == "" {
		// Hidden primary address; the user:email scope still lets us read it.
		emails, _, err := gh.Users.ListEmails(ctx, nil)
		if err == nil {
			for _, e := range emails {
				if e.GetPrimary() && e.GetVerified() {
					email = e.GetEmail()
					break
				}
			}
		}
	}

	return &GitHubUser{
		ID:          u.GetID(),
		Login:       u.GetLogin(),
		Email:       email,
		AvatarURL:   u.GetAvatarURL(),
		ProfileURL:  u.GetHTMLURL(),
		Bio:         u.GetBio(),
		Location:    u.GetLocation(),
		AccessToken: oauthToken.AccessToken,
	}, nil
}
