package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

// AuthService checks credentials against stored users. Session tokens are
// minted by the HTTP layer.
type AuthService struct {
	users ports.UserRepository

	// decoy is compared against when the email is unknown so that both
	// failure paths cost one bcrypt comparison.
	decoyOnce sync.Once
	decoy     domain.User
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(users ports.UserRepository) *AuthService {
	return &AuthService{users: users}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case email == "":
		return nil, apperrors.ErrEmailRequired
	case password == "":
		return nil, apperrors.ErrPasswordRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		s.decoyUser().CheckPassword(password)
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) decoyUser() *domain.User {
	s.decoyOnce.Do(func() {
		// An empty hash still fails the comparison if hashing errors.
		s.decoy.HashedPassword, _ = domain.HashPassword("decoy-password")
	})
	return &s.decoy
}
