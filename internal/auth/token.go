// Package auth carries the chat platform's caller identity over HTTP. The
// chat adapter signs a short-lived HS256 token whose subject is the user id;
// verifying the human behind that id is the platform's job.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

var (
	ErrNoToken      = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "hackbot-adapter"

type TokenService struct {
	secret []byte
}

func NewTokenService(secret []byte) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	return &TokenService{secret: secret}, nil
}

// Issue signs a token for userID valid for ttl.
func (s *TokenService) Issue(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   utilities.FormatUserID(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the caller id carried by a token.
func (s *TokenService) Verify(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := utilities.ParseUserID(claims.Subject)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}

// FromRequest verifies the Authorization: Bearer header.
func (s *TokenService) FromRequest(r *http.Request) (int64, error) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(tok) == "" {
		return 0, ErrNoToken
	}
	return s.Verify(strings.TrimSpace(tok))
}

type callerKey struct{}

// WithCaller stores the verified caller id in ctx.
func WithCaller(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// Caller returns the id stored by WithCaller.
func Caller(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(callerKey{}).(int64)
	return id, ok
}
