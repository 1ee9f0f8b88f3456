package storage

import (
	"context"
	"errors"
	"testing"

	redislib "github.com/redis/go-redis/v9"
)

type fakeSlotClient struct {
	data map[string]string
}

func newFakeSlotClient() *fakeSlotClient {
	return &fakeSlotClient{data: make(map[string]string)}
}

func (f *fakeSlotClient) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return value, nil
}

func (f *fakeSlotClient) Set(ctx context.Context, key, value string) error {
	f.data[key] = value
	return nil
}

func (f *fakeSlotClient) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeSlotClient) SlotKey(name string) string {
	return "gm:slot:" + name
}

func TestRedisKVMapsNilToNotFound(t *testing.T) {
	t.Parallel()

	kv := NewRedisKV(newFakeSlotClient())
	ctx := context.Background()

	if _, err := kv.Get(ctx, SlotUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := kv.Set(ctx, SlotUser, `{"id":7}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := kv.Get(ctx, SlotUser)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != `{"id":7}` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := kv.Remove(ctx, SlotUser); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := kv.Get(ctx, SlotUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestRedisKVNamespacesKeys(t *testing.T) {
	t.Parallel()

	client := newFakeSlotClient()
	kv := NewRedisKV(client)

	if err := kv.Set(context.Background(), SlotCart, "[]"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := client.data["gm:slot:"+SlotCart]; !ok {
		t.Fatalf("expected namespaced key, got %v", client.data)
	}
}
