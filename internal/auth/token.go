package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/parkwise/parking-service/internal/domain"
)

// ErrInvalidToken is returned for every token that fails verification:
// malformed, wrongly signed, signed with an unknown key or expired.
var ErrInvalidToken = errors.New("invalid token")

const bearerPrefix = "Bearer "

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	keys      map[string][]byte
	activeKID string
	ttl       time.Duration
	leeway    time.Duration
	now       func() time.Time
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// WithLeeway tolerates clock skew when checking exp and iat.
func WithLeeway(leeway time.Duration) TokenOption {
	return func(tm *TokenManager) {
		tm.leeway = leeway
	}
}

// NewTokenManager builds a new manager. keys maps key ids to HMAC secrets;
// tokens are signed with activeKID and verified against any key in keys.
func NewTokenManager(keys map[string][]byte, activeKID string, ttl time.Duration, opts ...TokenOption) (*TokenManager, error) {
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	copied := make(map[string][]byte, len(keys))
	for kid, secret := range keys {
		if strings.TrimSpace(kid) == "" || len(secret) == 0 {
			return nil, fmt.Errorf("signing key %q is empty", kid)
		}
		copied[kid] = append([]byte(nil), secret...)
	}
	if _, ok := copied[activeKID]; !ok {
		return nil, fmt.Errorf("active key %q is not configured", activeKID)
	}

	tm := &TokenManager{keys: copied, activeKID: activeKID, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	if tm.leeway < 0 {
		return nil, errors.New("token leeway must not be negative")
	}
	return tm, nil
}

// Claims describes JWT payload.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TTL returns the lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue builds and signs a token for subject with the active key.
func (tm *TokenManager) Issue(subject string, role domain.Role) (domain.Token, error) {
	if subject == "" {
		return domain.Token{}, errors.New("token subject is required")
	}
	if !role.Valid() {
		return domain.Token{}, fmt.Errorf("unknown role %q", role)
	}

	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = tm.activeKID
	raw, err := token.SignedString(tm.keys[tm.activeKID])
	if err != nil {
		return domain.Token{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.Token{
		Raw:       raw,
		KeyID:     tm.activeKID,
		Subject:   subject,
		Role:      role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify validates raw, optionally prefixed with "Bearer ", and returns its
// claims. Every failure wraps ErrInvalidToken.
func (tm *TokenManager) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), bearerPrefix))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if tm.leeway > 0 {
		options = append(options, jwt.WithLeeway(tm.leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(raw, &Claims{}, tm.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		// Tokens without a kid are checked against the active key.
		kid = tm.activeKID
	}
	key, ok := tm.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return key, nil
}
