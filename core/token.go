package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid covers every verification failure: bad signature, wrong
// algorithm, malformed token, or expiry in the past. Callers only need
// "reject"; logs may still carry the underlying cause.
var ErrTokenInvalid = errors.New("invalid token")

// TaskClaims are the claims carried by every access token on the queue.
type TaskClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access tokens with a shared HS256 secret.
// Secret, algorithm and default lifetime are fixed at process configuration.
type TokenCodec struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewTokenCodec builds a codec from config. Only HS256 is supported; any
// other configured algorithm is rejected at startup rather than at verify
// time.
func NewTokenCodec(cfg Config) (*TokenCodec, error) {
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("empty jwt secret")
	}
	if alg := cfg.JWTAlgorithm; alg != "" && alg != jwt.SigningMethodHS256.Alg() {
		return nil, errors.New("unsupported jwt algorithm: " + alg)
	}
	ttl := time.Duration(cfg.JWTExpireMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenCodec{secret: []byte(cfg.JWTSecretKey), defaultTTL: ttl}, nil
}

// Issue creates a signed token for subject/userID expiring after ttl, or
// after the configured default when ttl <= 0.
func (c *TokenCodec) Issue(subject, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	claims := TaskClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify validates signature and expiry. Either failure rejects with
// ErrTokenInvalid; they are intentionally not distinguished to the caller.
func (c *TokenCodec) Verify(token string) (*TaskClaims, error) {
	var claims TaskClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

// DefaultTTL reports the configured default lifetime.
func (c *TokenCodec) DefaultTTL() time.Duration {
	return c.defaultTTL
}
