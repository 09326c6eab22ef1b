package audit

import (
	"sort"
	"sync"
)

// PackageCache owns the canonical *Package of every (name, version) pair
// seen during a run. Lookup and creation are atomic, so concurrent
// sightings of a pair always share one object.
type PackageCache struct {
	mu       sync.Mutex
	packages map[Key]*Package
}

// NewPackageCache returns an empty cache.
func NewPackageCache() *PackageCache {
	return &PackageCache{packages: make(map[Key]*Package)}
}

// GetOrCreate returns the package for k, calling create to build it when k
// is new. create runs under the cache lock, at most once per key. The
// boolean reports whether the package was created by this call.
func (c *PackageCache) GetOrCreate(k Key, create func() *Package) (*Package, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.packages[k]; ok {
		return p, false
	}
	p := create()
	p.Name, p.Version = k.Name, k.Version
	c.packages[k] = p
	return p, true
}

// Get returns the package for k.
func (c *PackageCache) Get(k Key) (*Package, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.packages[k]
	return p, ok
}

// Put stores p unless its key is taken, and returns the canonical package.
func (c *PackageCache) Put(p *Package) *Package {
	got, _ := c.GetOrCreate(p.Key(), func() *Package { return p })
	return got
}

// Len returns the number of packages.
func (c *PackageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packages)
}

// All returns every package sorted by name and version.
func (c *PackageCache) All() []*Package {
	c.mu.Lock()
	out := make([]*Package, 0, len(c.packages))
	for _, p := range c.packages {
		out = append(out, p)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return compareKeys(out[i].Key(), out[j].Key()) < 0 })
	return out
}
