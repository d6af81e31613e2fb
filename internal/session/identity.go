package session

import (
	"context"
	"fmt"

	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Identity is the account boundary the manager authenticates against. It is
// an explicit constructor parameter (never an ambient global), so tests swap
// in a fake without touching a database.
type Identity interface {
	// Authenticate verifies credentials and returns the account.
	// Returns ErrInvalidCredentials on either unknown email or bad password.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)

	// CreateAccount registers a new account. Returns ErrEmailTaken when the
	// email is already registered.
	CreateAccount(ctx context.Context, email, password string) (*models.User, error)
}

// RepoIdentity implements Identity on top of the user repository with bcrypt
// password hashing.
type RepoIdentity struct {
	users repository.UserRepository
}

func NewRepoIdentity(users repository.UserRepository) *RepoIdentity {
	return &RepoIdentity{users: users}
}

func (id *RepoIdentity) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := id.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// Constant-time comparison, resistant to timing attacks.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (id *RepoIdentity) CreateAccount(ctx context.Context, email, password string) (*models.User, error) {
	existing, err := id.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	// bcrypt.DefaultCost keeps each hash around ~100ms — fast enough for
	// registration, expensive enough to stop bulk brute-forcing. The salt
	// is generated per password automatically.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := id.users.Create(ctx, email, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
