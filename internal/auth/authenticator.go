package auth

import (
	"context"

	"github.com/aquaguard/aquaguard/internal/models"
)

// Authenticator registers and signs in users. PasswordAuthenticator is the
// implementation the API uses.
type Authenticator interface {
	// Register validates the profile and password, then creates the account.
	// Returns a *models.ValidationError, ErrWeakPassword, ErrPasswordTooLong
	// or ErrEmailExists when the input is rejected.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the user with email if credential matches.
	// Returns ErrInvalidCredentials otherwise.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks the password length bounds.
	ValidateCredential(credential string) error
}
