package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/githubapi"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// users
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	createErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

// add stores u as-is and returns a pointer to the stored copy.
func (f *fakeUserRepo) add(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUserRepo) get(id string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID || strings.EqualFold(u.PortfolioUsername, user.PortfolioUsername) {
			return apperror.Conflict("user", user.GitHubUsername)
		}
	}
	if user.ID == "" {
		f.nextID++
		user.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GitHubID == githubID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(githubID))
}

func (f *fakeUserRepo) GetByPortfolioUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.PortfolioUsername, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) PortfolioUsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := f.GetByPortfolioUsername(ctx, username)
	return err == nil, nil
}

func (f *fakeUserRepo) UpdateOnLogin(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	u.GitHubUsername = user.GitHubUsername
	u.AvatarURL = user.AvatarURL
	u.ProfileURL = user.ProfileURL
	u.Email = user.Email
	u.AccessToken = user.AccessToken
	return nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	u.Bio, u.Location, u.IsPublic = user.Bio, user.Location, user.IsPublic
	return nil
}

func (f *fakeUserRepo) SetLastSync(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.LastSyncAt = &at
	return nil
}

func (f *fakeUserRepo) ListIDsWithCredential(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, u := range f.users {
		if u.AccessToken != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// =========================================================================
// projects
// =========================================================================

// fakeProjectRepo mimics the SQLite upsert: (user_id, github_id) is unique
// and a conflicting upsert keeps the stored id and visibility.
type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project // by id
	nextID   int
	upserts  int

	upsertErr error
}

var _ repository.ProjectRepository = (*fakeProjectRepo)(nil)

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[string]*model.Project)}
}

func (f *fakeProjectRepo) byKey(userID string, githubID int64) *model.Project {
	for _, p := range f.projects {
		if p.UserID == userID && p.GitHubID == githubID {
			return p
		}
	}
	return nil
}

func (f *fakeProjectRepo) all(userID string) []model.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Project
	for _, p := range f.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeProjectRepo) setVisible(userID string, githubID int64, visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey(userID, githubID).IsVisible = visible
}

func (f *fakeProjectRepo) FindByUserAndGitHubID(_ context.Context, userID string, githubID int64) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byKey(userID, githubID)
	if p == nil {
		return nil, apperror.NotFound("project", fmt.Sprint(githubID))
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProjectRepo) Upsert(_ context.Context, project *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++

	if existing := f.byKey(project.UserID, project.GitHubID); existing != nil {
		id, visible, created := existing.ID, existing.IsVisible, existing.CreatedAt
		*existing = *project
		existing.ID, existing.IsVisible, existing.CreatedAt = id, visible, created
		project.ID, project.IsVisible = id, visible
		return nil
	}

	if project.ID == "" {
		f.nextID++
		project.ID = fmt.Sprintf("project-%d", f.nextID)
	}
	project.CreatedAt = time.Now()
	copied := *project
	f.projects[project.ID] = &copied
	return nil
}

func (f *fakeProjectRepo) List(_ context.Context, userID string, filter model.ProjectFilter) ([]model.Project, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Project
	for _, p := range f.projects {
		if p.UserID != userID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.VisibleOnly && !p.IsVisible {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return append([]model.Project{}, matched[start:end]...), total, nil
}

func (f *fakeProjectRepo) GetByID(_ context.Context, userID, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.UserID != userID {
		return nil, apperror.NotFound("project", id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProjectRepo) Update(_ context.Context, project *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[project.ID]
	if !ok || p.UserID != project.UserID {
		return apperror.NotFound("project", project.ID)
	}
	p.IsVisible = project.IsVisible
	return nil
}

func (f *fakeProjectRepo) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.UserID != userID {
		return apperror.NotFound("project", id)
	}
	delete(f.projects, id)
	return nil
}

// =========================================================================
// resume
// =========================================================================

type fakeResumeRepo struct {
	mu          sync.Mutex
	nextID      int
	experiences []model.Experience
	education   []model.Education
	skills      []model.Skill
}

var _ repository.ResumeRepository = (*fakeResumeRepo)(nil)

func (f *fakeResumeRepo) id() string {
	f.nextID++
	return fmt.Sprintf("r-%d", f.nextID)
}

func (f *fakeResumeRepo) CreateExperience(_ context.Context, e *model.Experience) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.id()
	f.experiences = append(f.experiences, *e)
	return nil
}

func (f *fakeResumeRepo) GetExperience(_ context.Context, userID, id string) (*model.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.experiences {
		if e.ID == id && e.UserID == userID {
			return &e, nil
		}
	}
	return nil, apperror.NotFound("experience", id)
}

func (f *fakeResumeRepo) ListExperiences(_ context.Context, userID string) ([]model.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Experience{}
	for _, e := range f.experiences {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeResumeRepo) UpdateExperience(_ context.Context, e *model.Experience) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.experiences {
		if f.experiences[i].ID == e.ID && f.experiences[i].UserID == e.UserID {
			f.experiences[i] = *e
			return nil
		}
	}
	return apperror.NotFound("experience", e.ID)
}

func (f *fakeResumeRepo) DeleteExperience(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.experiences {
		if e.ID == id && e.UserID == userID {
			f.experiences = append(f.experiences[:i], f.experiences[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("experience", id)
}

func (f *fakeResumeRepo) CreateEducation(_ context.Context, e *model.Education) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.id()
	f.education = append(f.education, *e)
	return nil
}

func (f *fakeResumeRepo) GetEducation(_ context.Context, userID, id string) (*model.Education, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.education {
		if e.ID == id && e.UserID == userID {
			return &e, nil
		}
	}
	return nil, apperror.NotFound("education", id)
}

func (f *fakeResumeRepo) ListEducation(_ context.Context, userID string) ([]model.Education, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Education{}
	for _, e := range f.education {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeResumeRepo) UpdateEducation(_ context.Context, e *model.Education) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.education {
		if f.education[i].ID == e.ID && f.education[i].UserID == e.UserID {
			f.education[i] = *e
			return nil
		}
	}
	return apperror.NotFound("education", e.ID)
}

func (f *fakeResumeRepo) DeleteEducation(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.education {
		if e.ID == id && e.UserID == userID {
			f.education = append(f.education[:i], f.education[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("education", id)
}

func (f *fakeResumeRepo) CreateSkill(_ context.Context, s *model.Skill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id()
	f.skills = append(f.skills, *s)
	return nil
}

func (f *fakeResumeRepo) GetSkill(_ context.Context, userID, id string) (*model.Skill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.skills {
		if s.ID == id && s.UserID == userID {
			return &s, nil
		}
	}
	return nil, apperror.NotFound("skill", id)
}

func (f *fakeResumeRepo) ListSkills(_ context.Context, userID string) ([]model.Skill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Skill{}
	for _, s := range f.skills {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeResumeRepo) UpdateSkill(_ context.Context, s *model.Skill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.skills {
		if f.skills[i].ID == s.ID && f.skills[i].UserID == s.UserID {
			f.skills[i] = *s
			return nil
		}
	}
	return apperror.NotFound("skill", s.ID)
}

func (f *fakeResumeRepo) DeleteSkill(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.skills {
		if s.ID == id && s.UserID == userID {
			f.skills = append(f.skills[:i], f.skills[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("skill", id)
}

// =========================================================================
// GitHub
// =========================================================================

// fakeClient serves canned repositories keyed by username and canned
// enrichment keyed by repository name.
type fakeClient struct {
	mu        sync.Mutex
	repos     map[string][]githubapi.Repository
	listErr   error
	langs     map[string]map[string]int
	langErr   map[string]error
	readmes   map[string]string
	readmeErr map[string]error
	onList    func(ctx context.Context, username string)
	listCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		repos:     map[string][]githubapi.Repository{},
		langs:     map[string]map[string]int{},
		langErr:   map[string]error{},
		readmes:   map[string]string{},
		readmeErr: map[string]error{},
	}
}

func (f *fakeClient) setRepos(username string, repos ...githubapi.Repository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[username] = repos
}

func (f *fakeClient) ListRepositories(ctx context.Context, _, username string) ([]githubapi.Repository, error) {
	f.mu.Lock()
	f.listCalls++
	onList, err := f.onList, f.listErr
	repos := append([]githubapi.Repository{}, f.repos[username]...)
	f.mu.Unlock()

	if onList != nil {
		onList(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	return repos, nil
}

func (f *fakeClient) GetLanguages(ctx context.Context, _, _, repo string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.langErr[repo]; err != nil {
		return nil, err
	}
	out := map[string]int{}
	for k, v := range f.langs[repo] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeClient) GetReadme(ctx context.Context, _, _, repo string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readmeErr[repo]; err != nil {
		return "", err
	}
	return f.readmes[repo], nil
}

// fakeCreds maps user id to a plaintext token.
type fakeCreds map[string]string

func (c fakeCreds) GetAccessCredential(_ context.Context, userID string) (string, error) {
	if tok, ok := c[userID]; ok && tok != "" {
		return tok, nil
	}
	return "", apperror.NoCredential(userID)
}
