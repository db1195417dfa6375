package app

import (
	"github.com/redis/go-redis/v9"

	"waybill/cmd/internal/cache"
)

// newTTLStore picks the shared store for single-use tokens and MFA state.
// Redis when configured, so every instance sees the same tokens; otherwise an
// in-process map that is fine for a single node.
func newTTLStore(cfg Config, log Logger) (cache.Store, error) {
	if cfg.RedisURL == "" {
		log.Info("cache.inmemory")
		return cache.NewMemory(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	log.Info("cache.redis", "addr", opts.Addr)
	return cache.NewRedis(redis.NewClient(opts), ""), nil
}
