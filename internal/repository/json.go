package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cabinrent/internal/domain"
)

// GetJSON decodes a cached value into dest. It reports false on a miss.
func GetJSON(ctx context.Context, store domain.CacheStore, key string, dest any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, store domain.CacheStore, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}
