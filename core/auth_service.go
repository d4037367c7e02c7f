package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when username/password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService verifies credentials and issues signed tokens.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) (RegisteredUser, error)
}

// RepositoryAuthService wraps a user repository with bcrypt verification and
// the token codec.
type RepositoryAuthService struct {
	users UserRepository
	codec *TokenCodec
}

func NewRepositoryAuthService(users UserRepository, codec *TokenCodec) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, codec: codec}
}

// Authenticate checks the password hash and returns a signed access token
// whose subject is the username. Lookup and compare failures collapse to
// ErrInvalidCredentials so callers cannot probe for known usernames.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil || u == nil {
		return "", ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.codec.Issue(u.Username, strconv.FormatInt(u.ID, 10), 0)
}

// Register creates a new user with a bcrypt-hashed password.
func (s *RepositoryAuthService) Register(ctx context.Context, username, password string) (RegisteredUser, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return RegisteredUser{}, errors.New("username and password are required")
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return RegisteredUser{}, err
	}
	if existing != nil {
		return RegisteredUser{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return RegisteredUser{}, err
	}

	id, err := s.users.Create(ctx, username, string(hash))
	if err != nil {
		return RegisteredUser{}, err
	}
	return RegisteredUser{ID: id, Username: username}, nil
}
