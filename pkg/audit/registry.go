package audit

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

const registryCacheSize = 4096

type registryResult struct {
	info *deps.RegistryInfo
	err  error
}

// RegistryCache remembers registry answers per package name for one run,
// so the builder and the license inferrer share a single lookup. Failures
// are remembered too. Concurrent lookups of one name make one call.
type RegistryCache struct {
	registry deps.Registry
	results  *lru.Cache[string, registryResult]
	flight   singleflight.Group
}

// NewRegistryCache wraps registry. A nil registry answers every lookup
// with no data.
func NewRegistryCache(registry deps.Registry) *RegistryCache {
	results, _ := lru.New[string, registryResult](registryCacheSize)
	return &RegistryCache{registry: registry, results: results}
}

// Info implements [deps.Registry].
func (c *RegistryCache) Info(ctx context.Context, name string) (*deps.RegistryInfo, error) {
	if c == nil || c.registry == nil {
		return nil, nil
	}
	if r, ok := c.results.Get(name); ok {
		return r.info, r.err
	}
	v, _, _ := c.flight.Do(name, func() (any, error) {
		if r, ok := c.results.Get(name); ok {
			return r, nil
		}
		info, err := c.registry.Info(ctx, name)
		r := registryResult{info: info, err: err}
		if ctx.Err() == nil {
			c.results.Add(name, r)
		}
		return r, nil
	})
	r := v.(registryResult)
	return r.info, r.err
}
