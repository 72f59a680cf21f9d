// Package githubapi is the read-only GitHub REST client used by project sync.
//
// Every call is:
//   - throttled by a token bucket shared by all users of the Client,
//   - bounded by a per-call timeout (a timeout counts as transient),
//   - retried with exponential backoff while the failure is transient.
//
// Failures are translated into apperror sentinels so the sync service can
// decide between aborting the pass (ErrAuth, ErrRateLimited) and degrading a
// single repository (ErrTransient, anything else).
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/sakif/onelink-portfolio/internal/apperror"
)

// Config tunes the client. Zero values fall back to DefaultConfig.
type Config struct {
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL string
	// CallTimeout bounds a single HTTP round trip.
	CallTimeout time.Duration
	// MaxRetries is the number of retries after the first transient failure.
	MaxRetries int
	// InitialBackoff doubles on every retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RequestsPerSecond <= 0 disables client-side throttling.
	RequestsPerSecond float64
	Burst             int
	// PerPage is the page size used when listing repositories.
	PerPage int
}

// DefaultConfig returns sensible defaults for api.github.com.
func DefaultConfig() Config {
	return Config{
		CallTimeout:       10 * time.Second,
		MaxRetries:        2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		RequestsPerSecond: 10,
		Burst:             10,
		PerPage:           100,
	}
}

// Repository is the part of a GitHub repository the portfolio mirrors.
type Repository struct {
	ID          int64
	Name        string
	Owner       string
	Description string
	HTMLURL     string
	Homepage    string
	Stars       int
	Forks       int
	Watchers    int
	Archived    bool
	Fork        bool
	UpdatedAt   *time.Time
}

// Client talks to the GitHub REST API on behalf of any user; the user's
// access token is passed per call.
type Client struct {
	cfg     Config
	baseURL *url.URL
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = def.PerPage
	}

	c := &Client{cfg: cfg, logger: logger}

	if cfg.BaseURL != "" {
		raw := cfg.BaseURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("githubapi: parsing base URL %q: %w", cfg.BaseURL, err)
		}
		c.baseURL = u
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	return c, nil
}

// api builds a go-github client authenticated with the user's token.
func (c *Client) api(ctx context.Context, credential string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}
	return gh
}

// ListRepositories returns every repository, public and private, owned by
// the credential's user. username labels the call and fills in a missing
// owner. A user with no repositories yields an empty slice, not an error.
func (c *Client) ListRepositories(ctx context.Context, credential, username string) ([]Repository, error) {
	gh := c.api(ctx, credential)
	opt := &github.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner",
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: c.cfg.PerPage},
	}

	repos := make([]Repository, 0)
	for {
		var (
			page []*github.Repository
			resp *github.Response
		)
		err := c.do(ctx, "listing repositories of "+username, func(callCtx context.Context) (*github.Response, error) {
			var err error
			page, resp, err = gh.Repositories.ListByAuthenticatedUser(callCtx, opt)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, r := range page {
			repos = append(repos, convertRepository(r, username))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	return repos, nil
}

// GetLanguages returns language -> byte count. A 404 (repository renamed or
// deleted mid-sync) yields an empty map.
func (c *Client) GetLanguages(ctx context.Context, credential, owner, repo string) (map[string]int, error) {
	gh := c.api(ctx, credential)

	var langs map[string]int
	err := c.do(ctx, fmt.Sprintf("listing languages of %s/%s", owner, repo), func(callCtx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		langs, resp, err = gh.Repositories.ListLanguages(callCtx, owner, repo)
		return resp, err
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return map[string]int{}, nil
		}
		return nil, err
	}
	if langs == nil {
		langs = map[string]int{}
	}
	return langs, nil
}

// GetReadme returns the decoded README text, or "" when the repository has
// none. READMEs over 1 MB come back without content and count as absent.
func (c *Client) GetReadme(ctx context.Context, credential, owner, repo string) (string, error) {
	gh := c.api(ctx, credential)

	var content *github.RepositoryContent
	op := fmt.Sprintf("fetching README of %s/%s", owner, repo)
	err := c.do(ctx, op, func(callCtx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		content, resp, err = gh.Repositories.GetReadme(callCtx, owner, repo, nil)
		return resp, err
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if content == nil {
		return "", nil
	}
	if content.GetEncoding() == "none" {
		c.logger.Debug("README too large to inline, treating as absent",
			slog.String("op", op), slog.Int("size", content.GetSize()))
		return "", nil
	}

	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("githubapi: %s: decoding content: %w", op, err)
	}
	return text, nil
}

// do runs fn with throttling and a per-call timeout, retrying transient
// failures with exponential backoff. Anything else is returned at once.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) (*github.Response, error)) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("githubapi: %s: waiting for rate limiter: %w", op, err))
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		resp, err := fn(callCtx)
		cancel()
		if err == nil {
			return struct{}{}, nil
		}

		err = classify(ctx, op, resp, err)
		if !errors.Is(err, apperror.ErrTransient) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("transient GitHub error, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	// Retry hands back the bare context error when cancelled between attempts.
	if cause := context.Cause(ctx); cause != nil && err == cause {
		return fmt.Errorf("githubapi: %s: %w", op, err)
	}
	return err
}

// newBackOff doubles from InitialBackoff up to MaxBackoff with 10% jitter.
func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.Reset()
	return b
}

// classify maps a go-github error onto the apperror taxonomy. parent is the
// caller's context: its cancellation is reported as-is, while a deadline hit
// by the per-call timeout is transient.
func classify(parent context.Context, op string, resp *github.Response, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("githubapi: %s: %w", op, parent.Err())
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperror.RateLimited(op, err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperror.RateLimited(op, err)
	}

	status := 0
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	} else if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized:
		return apperror.Auth(op, err)
	case status == http.StatusNotFound:
		return &apperror.AppError{Err: apperror.ErrNotFound, Cause: err, Message: op + ": not found"}
	case status == http.StatusTooManyRequests:
		return apperror.RateLimited(op, err)
	case status >= 500:
		return apperror.Transient(op, err)
	case status != 0:
		return fmt.Errorf("githubapi: %s: %w", op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Transient(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperror.Transient(op, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperror.Transient(op, err)
	}
	return fmt.Errorf("githubapi: %s: %w", op, err)
}

func convertRepository(r *github.Repository, fallbackOwner string) Repository {
	owner := fallbackOwner
	if r.Owner != nil && r.Owner.GetLogin() != "" {
		owner = r.Owner.GetLogin()
	}

	repo := Repository{
		ID:          r.GetID(),
		Name:        r.GetName(),
		Owner:       owner,
		Description: r.GetDescription(),
		HTMLURL:     r.GetHTMLURL(),
		Homepage:    r.GetHomepage(),
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		Watchers:    r.GetWatchersCount(),
		Archived:    r.GetArchived(),
		Fork:        r.GetFork(),
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		repo.UpdatedAt = &t
	}
	return repo
}
