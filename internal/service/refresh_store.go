package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RefreshStore remembers which refresh tokens are still valid. Consume is
// single use: a token consumed once can never be consumed again.
type RefreshStore interface {
	Save(ctx context.Context, jti, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, jti, userID string) (bool, error)
}

// GormRefreshStore keeps refresh tokens in the refresh_tokens table.
type GormRefreshStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormRefreshStore(gdb *gorm.DB) *GormRefreshStore {
	return &GormRefreshStore{db: gdb, now: time.Now}
}

func (s *GormRefreshStore) Save(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	conn := s.db.WithContext(ctx)
	if err := conn.Where("user_id = ? AND expires_at <= ?", userID, s.now()).Delete(&db.RefreshToken{}).Error; err != nil {
		return err
	}
	return conn.Create(&db.RefreshToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt.UTC()}).Error
}

func (s *GormRefreshStore) Consume(ctx context.Context, jti, userID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, s.now()).
		Delete(&db.RefreshToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

const refreshKeyPrefix = "refresh:"

// RedisRefreshStore keeps refresh tokens as keys that expire with the token.
type RedisRefreshStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRefreshStore(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client, now: time.Now}
}

// ConnectRedis creates a client and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisRefreshStore) Save(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, refreshKeyPrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshStore) Consume(ctx context.Context, jti, userID string) (bool, error) {
	owner, err := s.client.GetDel(ctx, refreshKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume refresh token: %w", err)
	}
	return owner == userID, nil
}
