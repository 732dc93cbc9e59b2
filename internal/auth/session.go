package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "monthbook"

// ErrInvalidSession is returned for tokens that are malformed, forged or expired.
var ErrInvalidSession = errors.New("invalid session")

// claims are the registered claims plus the user's session version at issue
// time.
type claims struct {
	jwt.RegisteredClaims
	Version int64 `json:"ver"`
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for userID at the given session version and returns it
// with its expiry.
func (s *Sessions) Issue(userID string, version int64) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Version: version,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Parse verifies token and returns the user id and session version it was
// issued for.
func (s *Sessions) Parse(token string) (string, int64, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if c.Subject == "" {
		return "", 0, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return c.Subject, c.Version, nil
}
