// Package redis caches finished generation results so that repeated requests
// for the same tema/especialidade skip the full phase chain.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/revalidafacil/stations-backend/internal/logger"
)

// ErrCacheMiss is returned when no entry exists for the key.
var ErrCacheMiss = errors.New("rediscache: miss")

type StationCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStationCache(log *logger.Logger) (*StationCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &StationCache{
		log: log.With("service", "StationCache"),
		rdb: rdb,
		ttl: 24 * time.Hour,
	}, nil
}

// Key hashes tema and especialidade into the cache key.
func Key(tema, especialidade string) string {
	normalized := strings.ToLower(strings.TrimSpace(tema)) + "|" + strings.ToLower(strings.TrimSpace(especialidade))
	sum := sha256.Sum256([]byte(normalized))
	return "station:gen:" + hex.EncodeToString(sum[:])
}

func (c *StationCache) Get(ctx context.Context, tema, especialidade string) (map[string]any, error) {
	raw, err := c.rdb.Get(ctx, Key(tema, especialidade)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("cached station is not valid JSON: %w", err)
	}
	return doc, nil
}

func (c *StationCache) Set(ctx context.Context, tema, especialidade string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(tema, especialidade), raw, c.ttl).Err()
}

func (c *StationCache) Close() error { return c.rdb.Close() }
