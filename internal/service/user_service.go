package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// UserService manages accounts.
type UserService struct {
	db *gorm.DB
}

// UserInput is accepted by Create. Password may be empty for OAuth accounts.
type UserInput struct {
	Email      string
	Name       string
	Password   string
	Avatar     string
	Role       string
	GoogleID   string
	FacebookID string
}

func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Create validates and stores a new active account.
func (s *UserService) Create(ctx context.Context, input UserInput) (*db.User, error) {
	return createUser(s.db.WithContext(ctx), input)
}

func createUser(conn *gorm.DB, input UserInput) (*db.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	switch role {
	case "":
		role = db.RoleUser
	case db.RoleUser, db.RoleAdmin:
	default:
		return nil, invalid("role", "unknown role %q", input.Role)
	}

	user := db.User{
		Email:      email,
		Name:       name,
		Avatar:     strings.TrimSpace(input.Avatar),
		Role:       role,
		IsActive:   true,
		GoogleID:   optional(input.GoogleID),
		FacebookID: optional(input.FacebookID),
	}
	if input.Password != "" {
		if len(input.Password) < minPasswordLength {
			return nil, invalid("password", "password must be at least %d characters", minPasswordLength)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hashed)
	}

	if err := conn.Create(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*db.User, error) {
	return findUser(s.db.WithContext(ctx), "id = ?", id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*db.User, error) {
	return findUser(s.db.WithContext(ctx), "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// FindByProvider looks an account up by its Google or Facebook id.
func (s *UserService) FindByProvider(ctx context.Context, provider, providerID string) (*db.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	return findUser(s.db.WithContext(ctx), column+" = ?", providerID)
}

// SetActive enables or disables an account. Admin only.
func (s *UserService) SetActive(ctx context.Context, id string, active bool, actor auth.Principal) (*db.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	conn := s.db.WithContext(ctx)
	user, err := findUser(conn, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if err := conn.Model(user).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}

func findUser(conn *gorm.DB, query string, arg string) (*db.User, error) {
	var user db.User
	if err := conn.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func providerColumn(provider string) (string, error) {
	switch strings.ToLower(provider) {
	case auth.ProviderGoogle:
		return "google_id", nil
	case auth.ProviderFacebook:
		return "facebook_id", nil
	default:
		return "", auth.ErrUnknownProvider
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "email is not valid")
	}
	return email, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func principalOf(user *db.User) auth.Principal {
	return auth.Principal{ID: user.ID, Email: user.Email, Name: user.Name, Role: auth.Role(user.Role)}
}
