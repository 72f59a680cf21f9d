package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/auth"
	"github.com/sakif/onelink-portfolio/internal/model"
)

func newUserID() string { return xid.New().String() }

// userGetter is the slice of repository.UserRepository the credential store
// needs.
type userGetter interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// VaultCredentials reads a user's sealed GitHub token and opens it.
type VaultCredentials struct {
	users userGetter
	vault *auth.Vault
}

var _ CredentialStore = (*VaultCredentials)(nil)

func NewVaultCredentials(users userGetter, vault *auth.Vault) *VaultCredentials {
	return &VaultCredentials{users: users, vault: vault}
}

// GetAccessCredential returns apperror.ErrNoCredential when the user never
// stored a token, or when the stored one can no longer be opened (the
// credential key was rotated). Both are fixed by logging in again.
func (c *VaultCredentials) GetAccessCredential(ctx context.Context, userID string) (string, error) {
	user, err := c.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service/credential: %w", err)
	}
	if user.AccessToken == "" {
		return "", apperror.NoCredential(userID)
	}

	token, err := c.vault.Open(userID, user.AccessToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnsealable) {
			return "", apperror.NoCredential(userID)
		}
		return "", fmt.Errorf("service/credential: opening token of user %s: %w", userID, err)
	}
	return token, nil
}
