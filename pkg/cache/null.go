package cache

import (
	"context"
	"time"
)

// NullCache disables caching: every lookup misses and writes are dropped.
// The ILP optimizer and the pipeline runner fall back to it when no backend
// is configured.
type NullCache struct{}

// NewNullCache returns a [NullCache].
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Close() error { return nil }
