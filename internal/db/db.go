package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the shared connection set by Init.
var DB *gorm.DB

// Base carries the UUID primary key and timestamps shared by every model.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a fresh UUID unless the caller supplied one.
func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Init opens the configured database, runs migrations and stores the
// connection in DB.
func Init(driver, dsn string) error {
	conn, err := Open(driver, dsn, logger.Warn)
	if err != nil {
		return err
	}
	if err := Migrate(conn); err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open connects to sqlite (dsn is a file path or sqlite URI) or postgres.
// Unique violations are translated to gorm.ErrDuplicatedKey on both drivers.
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		path := strings.TrimSpace(dsn)
		if path == "" {
			path = "middy-corner.db"
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(path)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(&log.Logger, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return conn, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&User{},
		&Category{},
		&Tag{},
		&Post{},
		&Comment{},
		&Reaction{},
		&Media{},
		&RefreshToken{},
	)
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
