package audit

import (
	"slices"
	"sort"
	"sync"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

// RepoRef names one branch of one repository.
type RepoRef struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// ID is the identifier shown in the report's "Used By" column, e.g. "shop/master".
func (r RepoRef) ID() string { return r.Name + "/" + r.Branch }

func (r RepoRef) String() string { return r.Owner + "/" + r.ID() }

// Key is the identity of a package: its name and exact version.
type Key struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (k Key) String() string { return k.Name + "@" + k.Version }

// ResolvedDependency pairs a declared dependency with the lockfile spec of
// the same name in the same repository branch.
type ResolvedDependency struct {
	Declared deps.DeclaredDependency
	Spec     deps.ResolvedSpec
}

// LicenseInfo is the outcome of license inference.
type LicenseInfo struct {
	Licenses []string `json:"licenses,omitempty"` // Deduplicated, in discovery order
	URL      string   `json:"url,omitempty"`      // License file link when no name could be extracted
}

// String joins the licenses for display, dropping single-character captures.
func (l LicenseInfo) String() string {
	var out []string
	for _, s := range l.Licenses {
		if len([]rune(s)) > 1 {
			out = append(out, s)
		}
	}
	return joinList(out)
}

// Package is the canonical record for one (name, version) pair. Every
// repository that resolves the pair shares the same *Package.
//
// Identity and enrichment fields are set once, when the package is created,
// and never change. Sub-packages, requesters and the license memo are
// guarded by the package's own mutex.
type Package struct {
	Name      string
	Version   string
	Source    string // Source descriptor from the lockfile
	SourceURL string // Browsable source repository URL, empty if unknown
	SourceRef string // Ref to read license files at, empty if unknown
	Downloads *int   // Registry download count for this version, nil if unknown

	inferMu sync.Mutex // serializes license inference

	mu         sync.Mutex
	subs       []*Package
	requesters map[string]string
	license    *LicenseInfo
}

// Key returns the package identity.
func (p *Package) Key() Key { return Key{p.Name, p.Version} }

// Sub returns the direct sub-packages in link order.
func (p *Package) Sub() []*Package {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.subs)
}

// Link appends sub unless it is already linked. It reports whether it was added.
func (p *Package) Link(sub *Package) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.subs, sub) {
		return false
	}
	p.subs = append(p.subs, sub)
	return true
}

// SetRequester records who last requested the package in a repository.
func (p *Package) SetRequester(repoID, who string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requesters == nil {
		p.requesters = make(map[string]string)
	}
	p.requesters[repoID] = who
}

// Requesters returns a copy of the repository → requester map.
func (p *Package) Requesters() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.requesters))
	for k, v := range p.requesters {
		out[k] = v
	}
	return out
}

// CachedLicense returns the memoized license, if inference already ran.
func (p *Package) CachedLicense() (LicenseInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.license == nil {
		return LicenseInfo{}, false
	}
	return *p.license, true
}

// SetLicense stores a license result, e.g. one restored from a snapshot.
func (p *Package) SetLicense(info LicenseInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.license = &info
}

// PackageSet is an insertion-ordered set of packages keyed by identity.
type PackageSet struct {
	index map[Key]*Package
	order []*Package
}

// NewPackageSet returns an empty set.
func NewPackageSet() *PackageSet {
	return &PackageSet{index: make(map[Key]*Package)}
}

// Add inserts p and reports whether it was new.
func (s *PackageSet) Add(p *Package) bool {
	if _, ok := s.index[p.Key()]; ok {
		return false
	}
	s.index[p.Key()] = p
	s.order = append(s.order, p)
	return true
}

// Has reports whether a package with key k is in the set.
func (s *PackageSet) Has(k Key) bool {
	_, ok := s.index[k]
	return ok
}

// Get returns the package with key k.
func (s *PackageSet) Get(k Key) (*Package, bool) {
	p, ok := s.index[k]
	return p, ok
}

// Len returns the number of packages.
func (s *PackageSet) Len() int { return len(s.order) }

// Packages returns the packages in insertion order.
func (s *PackageSet) Packages() []*Package { return slices.Clone(s.order) }

// Keys returns the sorted package keys.
func (s *PackageSet) Keys() []Key {
	keys := make([]Key, 0, len(s.order))
	for _, p := range s.order {
		keys = append(keys, p.Key())
	}
	sort.Slice(keys, func(i, j int) bool { return compareKeys(keys[i], keys[j]) < 0 })
	return keys
}

// GroupedPackages maps dependency groups to the packages one repository
// branch uses in that group.
type GroupedPackages map[string]*PackageSet

// Add puts p into group.
func (g GroupedPackages) Add(group string, p *Package) {
	set, ok := g[group]
	if !ok {
		set = NewPackageSet()
		g[group] = set
	}
	set.Add(p)
}

// Groups returns the group names in sorted order.
func (g GroupedPackages) Groups() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
