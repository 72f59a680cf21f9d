package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/onelink-portfolio/internal/model"
)

// newTestDB opens a fresh file database in a temp dir, so pooled connections
// all see the same data.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user with a stored credential.
func createTestUser(t *testing.T, db *DB, githubID int64, login string) *model.User {
	t.Helper()
	user := &model.User{
		GitHubID:          githubID,
		GitHubUsername:    login,
		PortfolioUsername: login,
		Email:             login + "@example.com",
		AvatarURL:         "https://avatars.githubusercontent.com/u/123",
		IsPublic:          true,
		AccessToken:       "v1:sealed",
	}
	require.NoError(t, db.Users().Create(context.Background(), user))
	return user
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	db1, err := New(path)
	require.NoError(t, err)
	createTestUser(t, db1, 1, "octo")
	require.NoError(t, db1.Close())

	db2, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	u, err := db2.Users().GetByGitHubID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "octo", u.GitHubUsername)
}

func TestNew_InMemory(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	createTestUser(t, db, 7, "mem")
	assert.NoError(t, db.Ping(context.Background()))
}

func TestForeignKeysEnforced(t *testing.T) {
	db := newTestDB(t)

	err := db.Projects().Upsert(context.Background(), &model.Project{
		GitHubID: 1,
		UserID:   "no-such-user",
		Name:     "orphan",
	})
	assert.Error(t, err)
}
