package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const draftKeyPrefix = "piecework:draft:"

// RedisDraftStore shares drafts between server instances.
type RedisDraftStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisDraftStore(rdb *goredis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{rdb: rdb, ttl: ttl}
}

func draftKey(userID string) string {
	return draftKeyPrefix + userID
}

func (r *RedisDraftStore) Get(ctx context.Context, userID string) (*Draft, error) {
	raw, err := r.rdb.Get(ctx, draftKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (r *RedisDraftStore) Put(ctx context.Context, userID string, draft *Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return r.rdb.Set(ctx, draftKey(userID), raw, r.ttl).Err()
}

func (r *RedisDraftStore) Delete(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, draftKey(userID)).Err()
}
