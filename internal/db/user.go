package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account. PasswordHash is empty for OAuth-only accounts.
type User struct {
	Base
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string  `gorm:"not null"`
	PasswordHash string  `json:"-"`
	Avatar       string
	Role         string  `gorm:"type:varchar(16);not null"`
	IsActive     bool    `gorm:"not null"`
	GoogleID     *string `gorm:"type:varchar(64);uniqueIndex"`
	FacebookID   *string `gorm:"type:varchar(64);uniqueIndex"`
}

// EnsureAdmin creates an admin with a bcrypt hash when email and password
// are set. An existing account with that email is promoted to admin.
func EnsureAdmin(email, password string) error {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{
			Email:        trimmedEmail,
			Name:         "Administrator",
			PasswordHash: string(hashed),
			Role:         RoleAdmin,
			IsActive:     true,
		}).Error
	}

	if existing.Role == RoleAdmin {
		return nil
	}
	return DB.Model(&existing).Update("role", RoleAdmin).Error
}
