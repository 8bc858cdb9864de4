package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminRequired      = errors.New("only an administrator can create administrators")
)

// maxUsernameLen matches users.username VARCHAR(150).
const maxUsernameLen = 150

type Service struct {
	users       UserRepository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, revocations auth.RevocationStore) *Service {
	return &Service{users: users, tokens: tokens, revocations: revocations}
}

// Register creates a user from a self-service request. Granting the admin
// flag requires the caller to be an admin.
func (s *Service) Register(ctx context.Context, req RegisterRequest, callerIsAdmin bool) (*User, error) {
	if req.IsAdmin && !callerIsAdmin {
		return nil, ErrAdminRequired
	}
	return s.CreateUser(ctx, req.Username, req.Password, req.IsAdmin)
}

// CreateUser validates and stores a new user without any caller check. The
// CLI uses it to bootstrap the first administrator.
func (s *Service) CreateUser(ctx context.Context, username, password string, admin bool) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Invalid("username and password are required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return nil, apperr.Invalid("username must be at most %d characters", maxUsernameLen)
	}
	// bcrypt's 72-byte cap is enforced on bytes by HashPassword.
	if utf8.RuneCountInString(password) < auth.MinPasswordLength {
		return nil, apperr.Invalid("password must be at least %d characters", auth.MinPasswordLength)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperr.Invalid("user already exists")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperr.Invalid("%s", err)
		}
		return nil, err
	}

	u := &User{Username: username, PasswordHash: hash, IsAdmin: admin}
	if err := s.users.Create(ctx, u); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.Invalid("user already exists")
		}
		return nil, err
	}
	return u, nil
}

// Login checks the credentials and issues an access token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*auth.IssuedToken, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

// Logout revokes the token identified by jti until it would have expired.
func (s *Service) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.revocations == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, jti, expiresAt)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

// LoadPrincipal resolves a token subject for auth.JWTMiddleware.
func (s *Service) LoadPrincipal(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, auth.ErrUnknownPrincipal
		}
		return nil, err
	}
	return &auth.Principal{UserID: u.ID, Username: u.Username, Admin: u.IsAdmin}, nil
}
