package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

// RoleAdmin marks accounts allowed to manage users.
const RoleAdmin = "admin"

// RoleUser is the default role for approved accounts.
const RoleUser = "user"

// Principal is the authenticated identity a verified token yields.
type Principal struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the principal can use admin endpoints.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Claims is the token payload: user id, role, and expiry.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a manager signing with the given secret.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "TokenManager", "New", "empty signing secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// Generate issues a signed token for the user.
func (m *TokenManager) Generate(userID, role string) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.WrapFatal(err, "TokenManager", "Generate", "sign token")
	}
	return signed, nil
}

// Verify parses a token and returns its principal. Expired, forged, or
// malformed tokens all classify as unauthorized.
func (m *TokenManager) Verify(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrUnauthorized
		}
		return m.secret, nil
	})
	if err != nil {
		sentinel := errors.ErrUnauthorized
		if jwtErr, ok := err.(*jwt.ValidationError); ok && jwtErr.Errors&jwt.ValidationErrorExpired != 0 {
			sentinel = errors.ErrTokenExpired
		}
		return Principal{}, errors.WrapInvalid(sentinel, "TokenManager", "Verify", "parse token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Principal{}, errors.WrapInvalid(errors.ErrUnauthorized, "TokenManager", "Verify", "invalid claims")
	}

	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
