package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ariefcatur/go-storefront/internal/clock"
)

var errBadToken = errors.New("session: invalid token")

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs the persisted session record (HS256).
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokens(secret string, ttl time.Duration, clk clock.Clock) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clock.OrSystem(clk)}
}

func (t *Tokens) Issue(u User) (string, error) {
	now := t.clock.Now()
	c := claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse returns the subject and role of a valid, unexpired token.
func (t *Tokens) Parse(raw string) (string, Role, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errBadToken, err)
	}
	if c.Subject == "" || !c.Role.Valid() {
		return "", "", errBadToken
	}
	return c.Subject, c.Role, nil
}
