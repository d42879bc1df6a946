package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSession = errors.New("session token invalid")
	// ErrUnauthorized covers every reason a bearer can't act as a user
	ErrUnauthorized = errors.New("not authorized")
)

// SessionClaims is what a bearer token carries: the user id and the usual
// registered claims.
type SessionClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and checks stateless HS256 bearer tokens. There is no
// revocation list, a token stays valid until it expires.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the issuer's time source.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	s.now = now
	return s
}

func (s *SessionIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("no user ID provided")
	}

	now := s.now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Verify returns the user id carried by a valid, unexpired token.
func (s *SessionIssuer) Verify(token string) (string, error) {
	claims := &SessionClaims{}

	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if !t.Valid || claims.ID == "" {
		return "", ErrInvalidSession
	}

	return claims.ID, nil
}
