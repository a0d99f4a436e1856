package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admin_session:{token} -> AdminIdentity JSON, expiry is the key TTL
const KeyAdminSession = "admin_session:%s"

type sessionStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisVerifier checks tokens against sessions cached in Redis.
type RedisVerifier struct {
	rdb sessionStore
}

func NewRedisVerifier(rdb sessionStore) *RedisVerifier {
	return &RedisVerifier{rdb: rdb}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func (v *RedisVerifier) VerifyAdminIdentity(ctx context.Context, token string) (*AdminIdentity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	raw, err := v.rdb.Get(ctx, fmt.Sprintf(KeyAdminSession, token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: failed to read session: %w", err)
	}

	var id AdminIdentity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("auth: corrupt session %s: %w", token, err)
	}
	return &id, nil
}

// StoreSession caches an identity under token for ttl.
func (v *RedisVerifier) StoreSession(ctx context.Context, token string, id AdminIdentity, ttl time.Duration) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	if err := v.rdb.Set(ctx, fmt.Sprintf(KeyAdminSession, token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to store session: %w", err)
	}
	return nil
}
