package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces snapshot keys in redis.
const DefaultKeyPrefix = "formchat:session:"

// RedisSnapshots stores snapshots as JSON values with an expiry.
type RedisSnapshots struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ Snapshots = (*RedisSnapshots)(nil)

// DialRedis connects to addr and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("store: redis addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisSnapshots wraps a redis client. An empty prefix uses
// DefaultKeyPrefix; a zero ttl keeps snapshots until deleted.
func NewRedisSnapshots(rdb goredis.UniversalClient, prefix string, ttl time.Duration) *RedisSnapshots {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisSnapshots{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisSnapshots) key(sessionID string) string {
	return r.prefix + sessionID
}

// Load fetches and decodes a snapshot.
func (r *RedisSnapshots) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	raw, err := r.rdb.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: redis get: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return snap, nil
}

// Save encodes snap and refreshes its expiry.
func (r *RedisSnapshots) Save(ctx context.Context, snap Snapshot) error {
	if strings.TrimSpace(snap.SessionID) == "" {
		return errNoSessionID
	}
	snap.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(snap.SessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store: redis set: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (r *RedisSnapshots) Delete(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("store: redis del: %w", err)
	}
	return nil
}
