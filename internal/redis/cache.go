package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ledgerVersionKey = "scheduling:ledger:version"

// ResultCache stores optimizer results keyed by request fingerprint and the
// current ledger version. Any ledger write bumps the version, which orphans
// every cached entry computed against the previous state.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// LedgerChanged bumps the ledger version.
func (c *ResultCache) LedgerChanged(ctx context.Context) error {
	if err := c.client.Incr(ctx, ledgerVersionKey).Err(); err != nil {
		return fmt.Errorf("bump ledger version: %w", err)
	}
	return nil
}

func (c *ResultCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, ledgerVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger version: %w", err)
	}
	return v, nil
}

func resultKey(version int64, fingerprint string) string {
	return fmt.Sprintf("scheduling:optimize:%d:%s", version, fingerprint)
}

// Load returns the entry for fingerprint at the current ledger version,
// together with that version. Results computed after a miss must be stored
// under the returned version.
func (c *ResultCache) Load(ctx context.Context, fingerprint string) ([]byte, int64, bool, error) {
	v, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	data, err := c.client.Get(ctx, resultKey(v, fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, v, false, nil
	}
	if err != nil {
		return nil, v, false, fmt.Errorf("load cached result: %w", err)
	}
	return data, v, true, nil
}

// Store writes data under the given ledger version. An entry stored for a
// version that has since been bumped is never served.
func (c *ResultCache) Store(ctx context.Context, version int64, fingerprint string, data []byte) error {
	if err := c.client.Set(ctx, resultKey(version, fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store cached result: %w", err)
	}
	return nil
}
