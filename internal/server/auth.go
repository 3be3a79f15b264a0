package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for authentication.
var (
	ErrBadCredentials = errors.New("server: bad credentials")
	ErrInvalidToken   = errors.New("server: invalid or expired token")
)

// dummyHash is compared against for unknown users so that a missing
// account costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("upload-go"), bcrypt.MinCost) //nolint:errcheck // constant input

// claims is the token payload. Subject is the identity.
type claims struct {
	jwt.RegisteredClaims
}

// Authenticator checks passwords and issues and verifies bearer tokens.
// It is built once at startup from configuration and shared by handlers.
type Authenticator struct {
	signingKey []byte
	ttl        time.Duration
	users      map[string][]byte
	now        func() time.Time
}

// NewAuthenticator creates an authenticator. users maps identity to a
// bcrypt hash.
func NewAuthenticator(signingKey []byte, ttl time.Duration, users map[string]string) (*Authenticator, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("server: signing key must not be empty")
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("server: token TTL must be positive, got %s", ttl)
	}

	hashed := make(map[string][]byte, len(users))
	for name, hash := range users {
		hashed[name] = []byte(hash)
	}

	return &Authenticator{
		signingKey: signingKey,
		ttl:        ttl,
		users:      hashed,
		now:        time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// CheckPassword reports whether secret is the password of identity.
func (a *Authenticator) CheckPassword(identity, secret string) error {
	hash, ok := a.users[identity]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret)) //nolint:errcheck // timing only
		return ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return ErrBadCredentials
	}

	return nil
}

// IssueToken returns a signed HS256 token for identity and its expiry.
func (a *Authenticator) IssueToken(identity string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := tok.SignedString(a.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("server: signing token: %w", err)
	}

	return signed, exp, nil
}

// Verify checks a token's signature and expiry and returns its identity.
// A valid token authenticates the request.
func (a *Authenticator) Verify(token string) (string, error) {
	var c claims

	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return a.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}

	if _, ok := a.users[c.Subject]; !ok {
		return "", fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}

	return c.Subject, nil
}

// HashPassword returns a bcrypt hash suitable for the server's users table.
func HashPassword(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("server: password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("server: hashing password: %w", err)
	}

	return string(hash), nil
}
