package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 200 * time.Hour

// SessionStore keeps issued sessions in redis. The login service writes a
// row per session; Verify checks it on every handshake; logout deletes it.
type SessionStore struct {
	rdb    *redis.Client
	prefix string
}

func NewSessionStore(cfg SessionConfig) (*SessionStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	return &SessionStore{rdb: rdb, prefix: prefix}, nil
}

func (s *SessionStore) Put(ctx context.Context, sessionID, user string) error {
	return s.rdb.Set(ctx, s.prefix+sessionID, user, sessionTTL).Err()
}

func (s *SessionStore) Alive(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SessionStore) Revoke(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.prefix+sessionID).Err()
}

func (s *SessionStore) Close() error {
	return s.rdb.Close()
}
