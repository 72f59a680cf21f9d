package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
)

func newTestProfileService() (*ProfileService, *fakeUserRepo, *fakeResumeRepo) {
	users := newFakeUserRepo()
	resume := &fakeResumeRepo{}
	return NewProfileService(users, resume, discardLogger()), users, resume
}

func ptr[T any](v T) *T { return &v }

func TestUpdateMe(t *testing.T) {
	svc, users, _ := newTestProfileService()
	u := users.add(model.User{GitHubUsername: "octo", PortfolioUsername: "octo", Bio: "old", IsPublic: true})
	ctx := context.Background()

	got, err := svc.UpdateMe(ctx, u.ID, model.UserPatch{Bio: ptr("  new bio "), IsPublic: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "new bio", got.Bio)
	assert.False(t, got.IsPublic)

	stored := users.get(u.ID)
	assert.Equal(t, "new bio", stored.Bio)
	assert.False(t, stored.IsPublic)
	assert.Equal(t, "", stored.Location, "untouched field")

	_, err = svc.UpdateMe(ctx, u.ID, model.UserPatch{Bio: ptr(strings.Repeat("x", MaxBioLength+1))})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.UpdateMe(ctx, "missing", model.UserPatch{Bio: ptr("x")})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestGetPublicUser_PrivateIsNotFound(t *testing.T) {
	svc, users, _ := newTestProfileService()
	users.add(model.User{GitHubID: 1, PortfolioUsername: "open", IsPublic: true})
	users.add(model.User{GitHubID: 2, PortfolioUsername: "closed", IsPublic: false})
	ctx := context.Background()

	u, err := svc.GetPublicUser(ctx, "Open")
	require.NoError(t, err)
	assert.Equal(t, "open", u.PortfolioUsername)

	_, err = svc.GetPublicUser(ctx, "closed")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestExperienceLifecycle(t *testing.T) {
	svc, _, _ := newTestProfileService()
	ctx := context.Background()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.AddExperience(ctx, "u1", model.Experience{Company: "Acme", StartDate: start})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "title required")

	before := start.AddDate(-1, 0, 0)
	_, err = svc.AddExperience(ctx, "u1", model.Experience{Title: "Dev", Company: "Acme", StartDate: start, EndDate: &before})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "end before start")

	end := start.AddDate(1, 0, 0)
	e, err := svc.AddExperience(ctx, "u1", model.Experience{Title: " Dev ", Company: "Acme", StartDate: start, EndDate: &end, IsCurrent: true})
	require.NoError(t, err)
	assert.Equal(t, "Dev", e.Title)
	assert.Nil(t, e.EndDate, "current position has no end date")

	updated, err := svc.UpdateExperience(ctx, "u1", e.ID, model.ExperiencePatch{Title: ptr("Lead"), IsCurrent: ptr(false), EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "Lead", updated.Title)
	require.NotNil(t, updated.EndDate)

	_, err = svc.UpdateExperience(ctx, "u2", e.ID, model.ExperiencePatch{Title: ptr("x")})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	list, err := svc.ListExperiences(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteExperience(ctx, "u1", e.ID))
}

func TestEducationAndSkills(t *testing.T) {
	svc, _, _ := newTestProfileService()
	ctx := context.Background()

	_, err := svc.AddEducation(ctx, "u1", model.Education{School: "BUET", Degree: "BSc"})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "start date required")

	ed, err := svc.AddEducation(ctx, "u1", model.Education{School: "BUET", Degree: "BSc", StartDate: time.Now()})
	require.NoError(t, err)
	ed, err = svc.UpdateEducation(ctx, "u1", ed.ID, model.EducationPatch{FieldOfStudy: ptr("CSE")})
	require.NoError(t, err)
	assert.Equal(t, "CSE", ed.FieldOfStudy)

	_, err = svc.AddSkill(ctx, "u1", model.Skill{Name: "   "})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	sk, err := svc.AddSkill(ctx, "u1", model.Skill{Name: "Go", Category: " backend "})
	require.NoError(t, err)
	assert.Equal(t, "backend", sk.Category)

	_, err = svc.UpdateSkill(ctx, "u1", sk.ID, model.SkillPatch{Name: ptr("")})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	require.NoError(t, svc.DeleteSkill(ctx, "u1", sk.ID))
	assert.True(t, errors.Is(svc.DeleteSkill(ctx, "u1", sk.ID), apperror.ErrNotFound))
}

func TestPortfolioService_OnlyVisibleProjects(t *testing.T) {
	profiles, users, resume := newTestProfileService()
	projects := newFakeProjectRepo()
	svc := NewPortfolioService(profiles, projects, resume, discardLogger())
	ctx := context.Background()

	u := users.add(model.User{GitHubID: 1, GitHubUsername: "octo", PortfolioUsername: "octo", Email: "private@example.com", IsPublic: true})
	seedProjects(t, projects, u.ID, 3)
	projects.setVisible(u.ID, 2, false)
	_, err := profiles.AddSkill(ctx, u.ID, model.Skill{Name: "Go"})
	require.NoError(t, err)

	pf, err := svc.Get(ctx, "octo")
	require.NoError(t, err)
	assert.Equal(t, "octo", pf.User.PortfolioUsername)
	require.Len(t, pf.Projects, 2)
	assert.Equal(t, []string{"p01", "p03"}, []string{pf.Projects[0].Name, pf.Projects[1].Name})
	assert.Len(t, pf.Skills, 1)
	assert.NotNil(t, pf.Experiences)
	assert.NotNil(t, pf.Education)

	_, err = svc.Get(ctx, "nobody")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
