package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer     = "thumbexpert"
	DefaultTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrInvalidToken = errors.New("auth: invalid token")
)

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Claims is what a validated session token carries.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenService) Issue(userID string) (string, Claims, error) {
	now := s.now()
	c := Claims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        c.TokenID,
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, c, nil
}

func (s *TokenService) Validate(tokenStr string) (Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &rc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || rc.Subject == "" || rc.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		UserID:    rc.Subject,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
