package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/greenmart/storefront/pkg/config"
	"github.com/greenmart/storefront/pkg/logger"
	redisclient "github.com/greenmart/storefront/pkg/redis"
	"go.uber.org/multierr"
)

// ErrNotFound signals an absent slot. Callers treat it as "start empty",
// never as a failure.
var ErrNotFound = errors.New("storage: slot not found")

// Slot names shared by the stores. They match the localStorage keys of the
// web storefront so the layout is recognizable across clients.
const (
	SlotCart  = "greenmart-cart"
	SlotToken = "greenmart_token"
	SlotUser  = "greenmart_user"
)

// KV is the durable key-value capability injected into the stores. One slot
// per logical document; writes replace the whole value.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store bundles the selected KV backend with whatever needs closing.
type Store struct {
	KV
	closers []io.Closer
}

// Close releases backend resources, aggregating every close failure.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	for _, closer := range s.closers {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

// Open boots the state backend named by the configuration.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	kind := cfg.State.Kind()
	ctx = logg.WithBackend(ctx, kind)

	switch kind {
	case config.StateBackendFile:
		kv, err := NewFileKV(cfg.State.Dir)
		if err != nil {
			return nil, err
		}
		logg.Debug(ctx, "state backend ready")
		return &Store{KV: kv}, nil
	case config.StateBackendSQLite:
		kv, err := NewSQLiteKV(cfg.State.SQLiteDSN())
		if err != nil {
			return nil, err
		}
		logg.Debug(ctx, "state backend ready")
		return &Store{KV: kv, closers: []io.Closer{kv}}, nil
	case config.StateBackendRedis:
		client, err := redisclient.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		logg.Debug(ctx, "state backend ready")
		return &Store{KV: NewRedisKV(client), closers: []io.Closer{client}}, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}
