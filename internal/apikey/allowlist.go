package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownKey is returned when revoking a key that is not in the set.
var ErrUnknownKey = errors.New("apikey: unknown key")

const keyPrefix = "tak_"

// Generate returns a new random integration key. Only its digest is ever stored.
func Generate() string {
	return keyPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// AllowList answers whether an integration API key is currently accepted.
type AllowList interface {
	Contains(ctx context.Context, key string) (bool, error)
}

// StaticList is a fixed set of keys loaded from configuration.
type StaticList struct {
	digests [][sha256.Size]byte
}

func NewStaticList(keys ...string) *StaticList {
	l := &StaticList{}
	for _, k := range keys {
		if k == "" {
			continue
		}
		l.digests = append(l.digests, sha256.Sum256([]byte(k)))
	}
	return l
}

// Contains compares digests in constant time so lookups do not leak key prefixes.
func (l *StaticList) Contains(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	d := sha256.Sum256([]byte(key))
	found := 0
	for _, k := range l.digests {
		found |= subtle.ConstantTimeCompare(d[:], k[:])
	}
	return found == 1, nil
}

// RedisList checks keys against a Redis set holding hex SHA-256 digests of issued keys.
// Raw keys are never stored.
type RedisList struct {
	rdb redis.Cmdable
	set string
}

func NewRedisList(rdb redis.Cmdable, set string) *RedisList {
	return &RedisList{rdb: rdb, set: set}
}

func Digest(key string) string {
	d := sha256.Sum256([]byte(key))
	return hex.EncodeToString(d[:])
}

func (l *RedisList) Contains(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	ok, err := l.rdb.SIsMember(ctx, l.set, Digest(key)).Result()
	if err != nil {
		return false, fmt.Errorf("api key lookup: %w", err)
	}
	return ok, nil
}

// Add registers key in the Redis set.
func (l *RedisList) Add(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("apikey: key is required")
	}
	if err := l.rdb.SAdd(ctx, l.set, Digest(key)).Err(); err != nil {
		return fmt.Errorf("api key add: %w", err)
	}
	return nil
}

// Revoke removes key from the Redis set. Revoking a key that was never added returns ErrUnknownKey.
func (l *RedisList) Revoke(ctx context.Context, key string) error {
	if key == "" {
		return ErrUnknownKey
	}
	n, err := l.rdb.SRem(ctx, l.set, Digest(key)).Result()
	if err != nil {
		return fmt.Errorf("api key revoke: %w", err)
	}
	if n == 0 {
		return ErrUnknownKey
	}
	return nil
}

// Any accepts a key if any of its lists contains it. Lists are consulted in order.
type Any []AllowList

func (a Any) Contains(ctx context.Context, key string) (bool, error) {
	for _, l := range a {
		ok, err := l.Contains(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
