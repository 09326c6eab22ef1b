package audit

import (
	"sort"
	"sync"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

// UsageIndex records which repository branches use each package.
type UsageIndex struct {
	mu    sync.RWMutex
	users map[Key]map[string]struct{}
}

// NewUsageIndex returns an empty index.
func NewUsageIndex() *UsageIndex {
	return &UsageIndex{users: make(map[Key]map[string]struct{})}
}

// Record notes that repoID uses the package k.
func (u *UsageIndex) Record(k Key, repoID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	set, ok := u.users[k]
	if !ok {
		set = make(map[string]struct{})
		u.users[k] = set
	}
	set[repoID] = struct{}{}
}

// Users returns the sorted repository branch IDs using k.
func (u *UsageIndex) Users(k Key) []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	set := u.users[k]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any repository branch uses k.
func (u *UsageIndex) Has(k Key) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.users[k]) > 0
}

// All returns a copy of the index.
func (u *UsageIndex) All() map[Key][]string {
	u.mu.RLock()
	keys := make([]Key, 0, len(u.users))
	for k := range u.users {
		keys = append(keys, k)
	}
	u.mu.RUnlock()

	out := make(map[Key][]string, len(keys))
	for _, k := range keys {
		out[k] = u.Users(k)
	}
	return out
}

// Aggregator folds per-repository groups into the two report sets: the
// production group goes to the production set, every other group to the
// internal set. A package can land in both.
type Aggregator struct {
	// ProductionGroup names the group shipped in released products (default "default").
	ProductionGroup string

	mu         sync.Mutex
	production *PackageSet
	internal   *PackageSet
	usage      *UsageIndex
}

// NewAggregator returns an empty aggregator recording usage into usage.
func NewAggregator(productionGroup string, usage *UsageIndex) *Aggregator {
	if productionGroup == "" {
		productionGroup = deps.DefaultGroup
	}
	if usage == nil {
		usage = NewUsageIndex()
	}
	return &Aggregator{
		ProductionGroup: productionGroup,
		production:      NewPackageSet(),
		internal:        NewPackageSet(),
		usage:           usage,
	}
}

// Fold merges one repository branch's groups. The order in which
// repositories are folded does not change the result.
func (a *Aggregator) Fold(repo RepoRef, groups GroupedPackages) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := repo.ID()
	for _, name := range groups.Groups() {
		target := a.internal
		if name == a.ProductionGroup {
			target = a.production
		}
		for _, p := range groups[name].Packages() {
			target.Add(p)
			a.usage.Record(p.Key(), id)
		}
	}
}

// Production returns the packages used in released products.
func (a *Aggregator) Production() *PackageSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.production
}

// Internal returns the packages some repository branch uses outside the production group.
func (a *Aggregator) Internal() *PackageSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.internal
}

// Usage returns the usage index.
func (a *Aggregator) Usage() *UsageIndex { return a.usage }
