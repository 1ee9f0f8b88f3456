package storage

import (
	"context"
	"errors"

	redislib "github.com/redis/go-redis/v9"
)

type slotClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	SlotKey(name string) string
}

// RedisKV maps slots onto namespaced redis keys.
type RedisKV struct {
	client slotClient
}

func NewRedisKV(client slotClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.client.SlotKey(key))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.SlotKey(key), value)
}

func (r *RedisKV) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.SlotKey(key))
}
