package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// RepositoryPort defines the persistence the service depends on.
type RepositoryPort interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u User) (*User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateProfile(ctx context.Context, id int64, firstName, lastName, email string) (*User, error)
}

// SessionRecorder mirrors session lifecycle events into the activity store.
// Recording failures never surface to the caller; a broken log must not
// break a login.
type SessionRecorder interface {
	RecordLogin(ctx context.Context, user *User, token, ip, ua string)
	RecordLoginFailure(ctx context.Context, username, reason, ip, ua string)
	RecordLogout(ctx context.Context, user *User, token, ip, ua string)
	TouchSession(ctx context.Context, token string)
}

// Service wraps authentication business rules.
type Service struct {
	repo     RepositoryPort
	tokens   *TokenStore
	sessions SessionRecorder
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort, tokens *TokenStore, sessions SessionRecorder) *Service {
	return &Service{repo: repo, tokens: tokens, sessions: sessions}
}

// Login validates credentials, issues a token and records the session.
func (s *Service) Login(ctx context.Context, username, password, ip, ua string) (*User, string, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if s.sessions != nil {
			s.sessions.RecordLoginFailure(ctx, username, "invalid_password", ip, ua)
		}
		return nil, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		if s.sessions != nil {
			s.sessions.RecordLoginFailure(ctx, username, "access_revoked", ip, ua)
		}
		return nil, "", shared.ErrAccessRevoked
	}

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err == nil {
		user.LastLogin = &now
	}
	if s.sessions != nil {
		s.sessions.RecordLogin(ctx, user, token, ip, ua)
	}
	return user, token, nil
}

// Logout revokes the token and closes the recorded session.
func (s *Service) Logout(ctx context.Context, user *User, token, ip, ua string) error {
	if token == "" {
		return nil
	}
	if s.sessions != nil {
		s.sessions.RecordLogout(ctx, user, token, ip, ua)
	}
	return s.tokens.Revoke(ctx, token)
}

// Identify resolves a token into the request identity used by the guard
// middleware. Inactive accounts authenticate as nobody even while their
// token is still live.
func (s *Service) Identify(ctx context.Context, token string) (policy.Identity, *User, error) {
	if token == "" {
		return policy.Identity{}, nil, shared.ErrInvalidCredentials
	}
	userID, ok, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return policy.Identity{}, nil, err
	}
	if !ok {
		return policy.Identity{}, nil, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return policy.Identity{}, nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return policy.Identity{}, nil, shared.ErrAccessRevoked
	}
	if s.sessions != nil {
		s.sessions.TouchSession(ctx, token)
	}
	return policy.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Token:    token,
	}, user, nil
}

// Register creates a self-service account. Unknown roles fall back to
// client-user, matching the public registration surface.
func (s *Service) Register(ctx context.Context, username, email, password, firstName, lastName, rawRole string) (*User, error) {
	role, ok := policy.ParseRole(rawRole)
	if !ok {
		role = policy.RoleClientUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		IsActive:     true,
	})
}

// UpdateProfile changes the caller's own profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, firstName, lastName, email string) (*User, error) {
	return s.repo.UpdateProfile(ctx, userID, firstName, lastName, email)
}

// ErrWrongPassword indicates the current password check failed.
var ErrWrongPassword = errors.New("auth: current password is incorrect")

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// RevokeSessions drops every live token for the user.
func (s *Service) RevokeSessions(ctx context.Context, userID int64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}
