package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/githubapi"
	"github.com/sakif/onelink-portfolio/internal/model"
)

// DefaultSyncConcurrency is the number of repositories enriched at once.
const DefaultSyncConcurrency = 4

// RepositoryClient is the read side of the GitHub API used by a sync pass.
type RepositoryClient interface {
	ListRepositories(ctx context.Context, credential, username string) ([]githubapi.Repository, error)
	GetLanguages(ctx context.Context, credential, owner, repo string) (map[string]int, error)
	GetReadme(ctx context.Context, credential, owner, repo string) (string, error)
}

// DemoDetector picks a repository's demo URL from its homepage and README.
type DemoDetector interface {
	Detect(homepage, readme string) string
}

// StatusClassifier derives a project's status from its demo URL and description.
type StatusClassifier interface {
	Classify(deployedURL string, hasHomepage bool, description string) model.ProjectStatus
}

// CredentialStore returns the user's GitHub access token.
type CredentialStore interface {
	GetAccessCredential(ctx context.Context, userID string) (string, error)
}

// SyncUserStore is the user storage a pass needs.
type SyncUserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	SetLastSync(ctx context.Context, userID string, at time.Time) error
	ListIDsWithCredential(ctx context.Context) ([]string, error)
}

// SyncProjectStore is the project storage a pass needs.
type SyncProjectStore interface {
	FindByUserAndGitHubID(ctx context.Context, userID string, githubID int64) (*model.Project, error)
	Upsert(ctx context.Context, project *model.Project) error
}

// DegradedRepo names a repository whose languages or README could not be
// fetched. Its base metadata was still saved.
type DegradedRepo struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// SyncResult describes one pass. Complete is false when the pass stopped
// early; Projects then holds only what was committed before it stopped.
type SyncResult struct {
	SyncedCount int             `json:"synced_count"`
	Projects    []model.Project `json:"projects"`
	Degraded    []DegradedRepo  `json:"degraded"`
	Complete    bool            `json:"complete"`
}

type SyncConfig struct {
	Concurrency int
}

// SyncService mirrors a user's GitHub repositories into the project store.
type SyncService struct {
	client     RepositoryClient
	detector   DemoDetector
	classifier StatusClassifier
	creds      CredentialStore
	users      SyncUserStore
	projects   SyncProjectStore
	cfg        SyncConfig
	locks      *userLocks
	logger     *slog.Logger
	now        func() time.Time
}

func NewSyncService(
	client RepositoryClient,
	detector DemoDetector,
	classifier StatusClassifier,
	creds CredentialStore,
	users SyncUserStore,
	projects SyncProjectStore,
	cfg SyncConfig,
	logger *slog.Logger,
) *SyncService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultSyncConcurrency
	}
	return &SyncService{
		client:     client,
		detector:   detector,
		classifier: classifier,
		creds:      creds,
		users:      users,
		projects:   projects,
		cfg:        cfg,
		locks:      newUserLocks(),
		logger:     logger,
		now:        time.Now,
	}
}

// enriched is a listed repository plus its languages and README. Enrichment
// that failed leaves an empty map and an absent README.
type enriched struct {
	repo      githubapi.Repository
	languages map[string]int
	readme    string
}

// SyncUser runs one pass for userID.
//
// Passes for the same user run one at a time. Each repository is upserted as
// soon as it is enriched, so a pass that stops early (cancellation, rejected
// credential, exhausted rate limit) keeps what it already committed; the
// partial result is returned together with the error. The user's last-sync
// time moves only when every listed repository was processed.
func (s *SyncService) SyncUser(ctx context.Context, userID string) (*SyncResult, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/sync: waiting for running pass of %s: %w", userID, err)
	}
	defer release()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/sync: %w", err)
	}

	credential, err := s.creds.GetAccessCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	repos, err := s.client.ListRepositories(ctx, credential, user.GitHubUsername)
	if err != nil {
		return nil, fmt.Errorf("service/sync: %w", err)
	}

	start := s.now()
	log := s.logger.With(slog.String("userID", userID), slog.String("login", user.GitHubUsername))
	log.Info("sync started", slog.Int("repositories", len(repos)))

	var (
		mu        sync.Mutex
		committed = make([]*model.Project, len(repos))
		degraded  []DegradedRepo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, repo := range repos {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			e, reasons, err := s.enrich(gctx, credential, repo)
			if err != nil {
				return err
			}
			if gctx.Err() != nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()

			p, err := s.reconcile(gctx, userID, e)
			if err != nil {
				return err
			}
			committed[i] = p
			for _, r := range reasons {
				degraded = append(degraded, DegradedRepo{Name: repo.Name, Reason: r})
			}
			return nil
		})
	}

	waitErr := g.Wait()

	result := &SyncResult{Projects: make([]model.Project, 0, len(repos)), Degraded: degraded}
	for _, p := range committed {
		if p != nil {
			result.Projects = append(result.Projects, *p)
		}
	}
	result.SyncedCount = len(result.Projects)
	if result.Degraded == nil {
		result.Degraded = []DegradedRepo{}
	}

	if waitErr == nil && ctx.Err() != nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		log.Warn("sync stopped early",
			slog.Int("synced", result.SyncedCount),
			slog.Int("listed", len(repos)),
			slog.String("error", waitErr.Error()),
		)
		if apperror.IsFatalForSync(waitErr) {
			return result, waitErr
		}
		return result, fmt.Errorf("service/sync: %w", waitErr)
	}

	if err := s.users.SetLastSync(ctx, userID, s.now()); err != nil {
		return result, fmt.Errorf("service/sync: recording last sync: %w", err)
	}
	result.Complete = true

	log.Info("sync finished",
		slog.Int("synced", result.SyncedCount),
		slog.Int("degraded", len(result.Degraded)),
		slog.Duration("took", s.now().Sub(start)),
	)
	return result, nil
}

// enrich fetches languages and README. Only errors that must stop the pass
// are returned; anything else is reported as a degradation reason.
func (s *SyncService) enrich(ctx context.Context, credential string, repo githubapi.Repository) (*enriched, []string, error) {
	e := &enriched{repo: repo, languages: map[string]int{}}
	var reasons []string

	langs, err := s.client.GetLanguages(ctx, credential, repo.Owner, repo.Name)
	switch {
	case err == nil:
		if langs != nil {
			e.languages = langs
		}
	case stopsPass(ctx, err):
		return nil, nil, err
	default:
		reasons = append(reasons, "languages: "+err.Error())
		s.logger.Warn("languages unavailable, storing none",
			slog.String("repo", repo.Name), slog.String("error", err.Error()))
	}

	readme, err := s.client.GetReadme(ctx, credential, repo.Owner, repo.Name)
	switch {
	case err == nil:
		e.readme = readme
	case stopsPass(ctx, err):
		return nil, nil, err
	default:
		reasons = append(reasons, "readme: "+err.Error())
		s.logger.Warn("README unavailable, treating as absent",
			slog.String("repo", repo.Name), slog.String("error", err.Error()))
	}

	return e, reasons, nil
}

// stopsPass reports whether err ends the whole pass rather than one
// repository's enrichment.
func stopsPass(ctx context.Context, err error) bool {
	if apperror.IsFatalForSync(err) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// reconcile merges e into the stored project (or a new one) and upserts it.
func (s *SyncService) reconcile(ctx context.Context, userID string, e *enriched) (*model.Project, error) {
	existing, err := s.projects.FindByUserAndGitHubID(ctx, userID, e.repo.ID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/sync: looking up %s: %w", e.repo.Name, err)
	}

	deployed := s.detector.Detect(e.repo.Homepage, e.readme)
	remote := &model.Project{
		GitHubID:        e.repo.ID,
		UserID:          userID,
		Name:            e.repo.Name,
		Description:     e.repo.Description,
		URL:             e.repo.HTMLURL,
		Homepage:        e.repo.Homepage,
		ReadmeContent:   e.readme,
		Languages:       e.languages,
		Stars:           e.repo.Stars,
		Forks:           e.repo.Forks,
		Watchers:        e.repo.Watchers,
		Status:          s.classifier.Classify(deployed, e.repo.Homepage != "", e.repo.Description),
		DeployedURL:     deployed,
		IsArchived:      e.repo.Archived,
		IsFork:          e.repo.Fork,
		GitHubUpdatedAt: e.repo.UpdatedAt,
		LastSeenAt:      s.now().UTC(),
	}

	project := remote
	if existing != nil {
		existing.SyncFields(remote)
		project = existing
	} else {
		project.IsVisible = true
	}

	if err := s.projects.Upsert(ctx, project); err != nil {
		return nil, fmt.Errorf("service/sync: saving %s: %w", e.repo.Name, err)
	}
	return project, nil
}

// UserSyncOutcome is one line of a SyncAll report.
type UserSyncOutcome struct {
	UserID string
	Result *SyncResult
	Err    error
}

// SyncAll runs a pass for every user holding a credential, one user at a
// time. A failing user does not stop the others; cancellation does.
func (s *SyncService) SyncAll(ctx context.Context) ([]UserSyncOutcome, error) {
	ids, err := s.users.ListIDsWithCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/sync: listing users: %w", err)
	}

	outcomes := make([]UserSyncOutcome, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		res, err := s.SyncUser(ctx, id)
		if err != nil {
			s.logger.Error("user sync failed", slog.String("userID", id), slog.String("error", err.Error()))
		}
		outcomes = append(outcomes, UserSyncOutcome{UserID: id, Result: res, Err: err})
	}
	return outcomes, nil
}

// userLocks hands out one lock per user id. Entries are dropped when nobody
// holds or waits for them.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	ch   chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*userLock)}
}

// acquire blocks until the user's lock is free or ctx is done.
func (l *userLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ul, ok := l.m[key]
	if !ok {
		ul = &userLock{ch: make(chan struct{}, 1)}
		l.m[key] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, ul)
		return nil, ctx.Err()
	}

	return func() {
		<-ul.ch
		l.unref(key, ul)
	}, nil
}

func (l *userLocks) unref(key string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.m, key)
	}
}
