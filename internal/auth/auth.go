// Package auth turns request credentials into an opaque requester identity.
//
// The wire scheme is a colon-delimited Authorization header
// ("username:password") checked against bcrypt hashes. Handlers only see
// the Authenticator interface, so the scheme can be swapped without
// touching the link core.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mvolkov/linkcut/internal/store"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrMalformedHeader    = errors.New("malformed authorization header")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Identity is an authenticated requester. Only the ID participates in
// ownership checks.
type Identity struct {
	ID       int64
	Username string
}

type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (Identity, error)
}

// UserStore is the credential backend. *store.Store satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	FindUserByName(ctx context.Context, username string) (*store.User, error)
}

type Service struct {
	users UserStore
}

func New(users UserStore) *Service {
	return &Service{users: users}
}

// Register stores a new user. Passwords are bcrypt-hashed before they touch
// the store; the plaintext is never persisted.
func (s *Service) Register(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, username, string(hash))
}

// Authenticate resolves an Authorization header to an identity. An unknown
// user and a wrong password are deliberately indistinguishable.
func (s *Service) Authenticate(ctx context.Context, authorization string) (Identity, error) {
	if authorization == "" {
		return Identity{}, ErrMissingCredentials
	}
	username, password, ok := strings.Cut(authorization, ":")
	if !ok || username == "" {
		return Identity{}, ErrMalformedHeader
	}

	user, err := s.users.FindUserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{ID: user.ID, Username: user.Username}, nil
}
