package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown
// username or a wrong password. Callers must not reveal which.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository defines the persistence operations account management needs.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService covers account lifecycle: registration, credential
// checks, and profile lookup. Role changes are not handled here; they
// go through the admin role workflow.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates a plain user account with a bcrypt password hash.
// Usernames and emails are unique across accounts.
func (s *UserService) Register(ctx context.Context, username, email, name, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if username == "" || email == "" || name == "" || password == "" {
		return types.User{}, fmt.Errorf("%w: username, email, name and password are required", ErrValidation)
	}

	if err := s.checkAvailable(ctx, username, email); err != nil {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
}

// Authenticate verifies a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) checkAvailable(ctx context.Context, username, email string) error {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return fmt.Errorf("%w: username already exists", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: email already exists", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
