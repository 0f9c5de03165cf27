package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/auth"
	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/repository"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

// AuthService coordinates accounts, login and token flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, bcryptCost int, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, tokenMgr: tokens, bcryptCost: bcryptCost, logger: logger}
}

// TokenManager exposes the token codec for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a CUSTOMER account.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	return s.createUser(ctx, username, password, domain.RoleCustomer)
}

func (s *AuthService) createUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username already registered", map[string]any{"username": username})
		}
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Login checks credentials and issues an access token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Token{}, apperrors.NewInvalidCredentials("invalid credentials")
		}
		return domain.Token{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return domain.Token{}, apperrors.NewInvalidCredentials("invalid credentials")
		}
		return domain.Token{}, err
	}
	return s.tokenMgr.Issue(user.Username, user.Role)
}

// IssueToken mints a token for an existing user without a password check.
func (s *AuthService) IssueToken(ctx context.Context, username string) (domain.Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return domain.Token{}, notFoundOr(err, "user", map[string]any{"username": username})
	}
	return s.tokenMgr.Issue(user.Username, user.Role)
}

// VerifyToken decodes raw into the identity it carries. Failures wrap
// auth.ErrInvalidToken.
func (s *AuthService) VerifyToken(raw string) (domain.Identity, error) {
	claims, err := s.tokenMgr.Verify(raw)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{Username: claims.Subject, Role: claims.Role}, nil
}

// ListUsers returns a page of accounts.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	return s.users.List(ctx, limit, offset)
}

// GetUser returns an account. Customers may only read their own.
func (s *AuthService) GetUser(ctx context.Context, caller *domain.Identity, id string) (*domain.User, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !caller.HasRole(domain.RoleAdmin) && caller.UserID != id {
		return nil, apperrors.NewForbidden("cannot access another user")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"id": id})
	}
	return user, nil
}

// ChangePassword replaces the caller's own password.
func (s *AuthService) ChangePassword(ctx context.Context, caller *domain.Identity, id, current, next, confirm string) error {
	if caller == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if caller.UserID != id {
		return apperrors.NewForbidden("cannot change another user's password")
	}
	if next != confirm {
		return apperrors.NewInvalidCredentials("new password and confirmation do not match")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "user", map[string]any{"id": id})
	}
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		return apperrors.NewInvalidCredentials("current password does not match")
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return notFoundOr(err, "user", map[string]any{"id": id})
	}
	s.logger.Info("password changed", zap.String("user_id", id))
	return nil
}

// EnsureAdmin creates the bootstrap ADMIN account unless the username exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err = s.createUser(ctx, username, password, domain.RoleAdmin)
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		return nil
	}
	return err
}
