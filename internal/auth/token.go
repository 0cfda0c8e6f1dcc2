package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the fixed session lifetime. Tokens are stateless:
// there is no server-side record, so a single token cannot be revoked
// before it expires.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the signed, stateless token payload. Roles and permissions
// are frozen at issuance time; changes made afterwards take effect only
// when the token is re-issued at the next login.
type Claims struct {
	ActorID     int64       `json:"uid"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	PrimariaID  int64       `json:"primaria_id"`
	Roles       []RoleClaim `json:"roles"`
	Permissions []string    `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session tokens with HMAC-SHA256.
// Verification performs no I/O and is cheap enough to run on every
// request.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec constructs a codec. The secret must be at least 32
// bytes.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: token secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL exposes the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the given identity, stamping issued-at and
// the fixed expiry.
func (c *TokenCodec) Issue(id *Identity) (string, time.Time, error) {
	if id == nil {
		return "", time.Time{}, errors.New("auth: identity required")
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)
	claims := &Claims{
		ActorID:     id.ActorID,
		Email:       id.Email,
		Name:        id.Name,
		PrimariaID:  id.PrimariaID,
		Roles:       id.Roles,
		Permissions: id.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, distinguishing missing,
// expired and malformed/tampered tokens so callers can react
// differently to each.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrMalformedToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
