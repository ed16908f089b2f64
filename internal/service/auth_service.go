package service

import (
	"context"
	"errors"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService issues and rotates tokens for local and OAuth logins.
type AuthService struct {
	db     *gorm.DB
	issuer *auth.TokenIssuer
	store  RefreshStore
}

// LoginResult is the account that signed in and its fresh token pair.
type LoginResult struct {
	User   *db.User
	Tokens auth.TokenPair
}

func NewAuthService(gdb *gorm.DB, issuer *auth.TokenIssuer, store RefreshStore) *AuthService {
	if store == nil {
		store = NewGormRefreshStore(gdb)
	}
	return &AuthService{db: gdb, issuer: issuer, store: store}
}

// Login checks an email and password. Unknown emails, OAuth-only accounts
// and wrong passwords all answer ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := findUser(s.db.WithContext(ctx), "email = ?", strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return s.issue(ctx, user)
}

// OAuthLogin signs in the account linked to the provider identity. An
// account with the same email is linked on first use; otherwise one is
// created.
func (s *AuthService) OAuthLogin(ctx context.Context, profile auth.OAuthProfile) (*LoginResult, error) {
	column, err := providerColumn(profile.Provider)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(profile.ProviderID) == "" {
		return nil, invalid("providerId", "provider account id is required")
	}

	conn := s.db.WithContext(ctx)
	user, err := s.findOrLinkOAuthUser(conn, column, profile)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return s.issue(ctx, user)
}

func (s *AuthService) findOrLinkOAuthUser(conn *gorm.DB, column string, profile auth.OAuthProfile) (*db.User, error) {
	user, err := findUser(conn, column+" = ?", profile.ProviderID)
	if err == nil || !errors.Is(err, ErrUserNotFound) {
		return user, err
	}

	if email := strings.ToLower(strings.TrimSpace(profile.Email)); email != "" {
		user, err := findUser(conn, "email = ?", email)
		if err == nil {
			updates := map[string]any{column: profile.ProviderID}
			if user.Avatar == "" && profile.Avatar != "" {
				updates["avatar"] = profile.Avatar
			}
			if err := conn.Model(user).Updates(updates).Error; err != nil {
				return nil, err
			}
			log.Info().Str("user", user.ID).Str("provider", profile.Provider).Msg("linked oauth identity to existing account")
			return findUser(conn, "id = ?", user.ID)
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	input := UserInput{Email: profile.Email, Name: profile.Name, Avatar: profile.Avatar}
	if column == "google_id" {
		input.GoogleID = profile.ProviderID
	} else {
		input.FacebookID = profile.ProviderID
	}
	created, err := createUser(conn, input)
	if errors.Is(err, ErrUserExists) {
		// A concurrent callback for the same identity won.
		return findUser(conn, column+" = ?", profile.ProviderID)
	}
	return created, err
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued. A token that was already used or revoked fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Consume(ctx, claims.ID, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("user", claims.Subject).Msg("refresh token reused or revoked")
		return nil, auth.ErrInvalidToken
	}

	user, err := findUser(s.db.WithContext(ctx), "id = ?", claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return s.issue(ctx, user)
}

// Logout revokes the refresh token. Revoking an unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return err
	}
	_, err = s.store.Consume(ctx, claims.ID, claims.Subject)
	return err
}

// Authenticate resolves an access token to its principal.
func (s *AuthService) Authenticate(accessToken string) (auth.Principal, error) {
	return s.issuer.ParseAccess(accessToken)
}

// Me loads the account behind a principal.
func (s *AuthService) Me(ctx context.Context, p auth.Principal) (*db.User, error) {
	if p.Anonymous() {
		return nil, auth.ErrInvalidToken
	}
	return findUser(s.db.WithContext(ctx), "id = ?", p.ID)
}

func (s *AuthService) issue(ctx context.Context, user *db.User) (*LoginResult, error) {
	pair, err := s.issuer.Issue(principalOf(user))
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, pair.RefreshID, user.ID, pair.RefreshExpiresAt); err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}
