// Package issuelock serializes passcode issuance per (identifier, role, channel) with a Redis SET NX lock.
package issuelock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taskmanager:otp:issue:"

// Lock holds one key per triple for the lifetime of the issued code.
type Lock struct {
	rdb redis.Cmdable
}

// New returns a Lock backed by rdb.
func New(rdb redis.Cmdable) *Lock {
	return &Lock{rdb: rdb}
}

// Acquire takes the lock for ttl. It reports false when another issuance holds it.
func (l *Lock) Acquire(ctx context.Context, identifier, role, channel string, ttl time.Duration) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	ok, err := l.rdb.SetNX(ctx, key(identifier, role, channel), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("issue lock setnx: %w", err)
	}
	return ok, nil
}

// Release drops the lock. No-op if it is not held.
func (l *Lock) Release(ctx context.Context, identifier, role, channel string) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	if err := l.rdb.Del(ctx, key(identifier, role, channel)).Err(); err != nil {
		return fmt.Errorf("issue lock del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *Lock) Ping(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Ping(ctx).Err()
}

// key hashes the identifier so phone numbers and emails are not stored in Redis.
func key(identifier, role, channel string) string {
	sum := sha256.Sum256([]byte(identifier))
	return keyPrefix + role + ":" + channel + ":" + hex.EncodeToString(sum[:])
}
