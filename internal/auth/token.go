package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both token kinds.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role,omitempty"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	RefreshID        string    `json:"-"`
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer. Zero TTLs fall back to 15m and 30d.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue creates a new access/refresh pair for p.
func (i *TokenIssuer) Issue(p Principal) (TokenPair, error) {
	now := i.now()
	pair := TokenPair{
		AccessExpiresAt:  now.Add(i.accessTTL),
		RefreshExpiresAt: now.Add(i.refreshTTL),
		RefreshID:        uuid.NewString(),
	}

	access, err := i.sign(Claims{
		Email: p.Email,
		Name:  p.Name,
		Role:  p.Role,
		Type:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(pair.AccessExpiresAt),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := i.sign(Claims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ID:        pair.RefreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(pair.RefreshExpiresAt),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	pair.AccessToken = access
	pair.RefreshToken = refresh
	return pair, nil
}

// ParseAccess validates an access token and returns its principal.
func (i *TokenIssuer) ParseAccess(token string) (Principal, error) {
	claims, err := i.parse(token, tokenTypeAccess)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil
}

// ParseRefresh validates a refresh token and returns its claims.
func (i *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, tokenTypeRefresh)
}

func (i *TokenIssuer) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) parse(token, wantType string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
