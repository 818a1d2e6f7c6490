package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON reads key and decodes it into a T. It returns ErrCacheMiss when
// the key is absent. An entry that fails to decode is deleted and reported
// as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var v T
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, ErrCacheMiss
	}
	if err := json.Unmarshal(data, &v); err != nil {
		_ = c.Delete(ctx, key)
		return v, ErrCacheMiss
	}
	return v, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
