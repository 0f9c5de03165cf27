package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/repository"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

const identityKey = "auth_identity"

type identityCtxKey struct{}

// UserLookup resolves token subjects into users.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads identities.
//
// By default the gate fails open: a missing, malformed or invalid token
// leaves the request anonymous and the route policy decides whether that is
// acceptable. With rejectInvalid set, a bearer token that does not verify is
// answered with 401 immediately.
type AuthMiddleware struct {
	tokens        *TokenManager
	users         UserLookup
	logger        *zap.Logger
	rejectInvalid bool
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users UserLookup, logger *zap.Logger, rejectInvalid bool) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger, rejectInvalid: rejectInvalid}
}

// Handle resolves the caller identity, if any, and continues the chain.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, bearerPrefix) {
		return c.Next()
	}

	claims, err := m.tokens.Verify(header)
	if err != nil {
		if m.rejectInvalid {
			return apperrors.NewUnauthorized("invalid token")
		}
		m.logger.Warn("continuing anonymously after token verification failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Next()
	}

	user, err := m.users.GetByUsername(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if m.rejectInvalid {
				return apperrors.NewUnauthorized("unknown token subject")
			}
			m.logger.Warn("token subject no longer exists", zap.String("subject", claims.Subject))
			return c.Next()
		}
		return apperrors.NewInternalError(err)
	}

	identity := &domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	c.Locals(identityKey, identity)
	c.SetUserContext(ContextWithIdentity(c.UserContext(), identity))
	return c.Next()
}

// IdentityFromCtx retrieves the authenticated caller of a request.
func IdentityFromCtx(c *fiber.Ctx) (*domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// ContextWithIdentity attaches identity to ctx.
func ContextWithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFromContext retrieves the identity stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(*domain.Identity)
	return identity, ok && identity != nil
}
