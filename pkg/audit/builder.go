package audit

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

// Builder turns resolved dependencies into canonical packages and groups
// them per repository branch.
type Builder struct {
	Cache        *PackageCache
	Registry     deps.Registry            // Source URL and download counts; nil skips enrichment
	Hosting      Hosting                  // Reads git source descriptors; may be nil
	FromRegistry func(source string) bool // See LicenseInferrer.FromRegistry
	Logger       *log.Logger
}

// Build returns the canonical package for dep, links the direct
// sub-packages its spec lists and that the same lockfile resolves, and
// adds the package plus those sub-packages to every group dep is
// declared in. Sub-dependencies missing from the lockfile are logged and
// skipped. Expansion is one level: the lockfile already lists the full
// transitive closure as top-level specs.
func (b *Builder) Build(ctx context.Context, repo RepoRef, dep ResolvedDependency, specs deps.SpecIndex, groups GroupedPackages) *Package {
	logger := orDiscard(b.Logger)

	p := b.obtain(ctx, dep.Spec)
	subs := make([]*Package, 0, len(dep.Spec.Dependencies))
	for _, name := range dep.Spec.Dependencies {
		spec, ok := specs[name]
		if !ok {
			logger.Warn("sub-dependency missing from lockfile", "dependency", name, "package", p.Key().String(), "repo", repo.ID())
			continue
		}
		sub := b.obtain(ctx, spec)
		p.Link(sub)
		subs = append(subs, sub)
	}

	declared := dep.Declared.Groups
	if len(declared) == 0 {
		declared = []string{deps.DefaultGroup}
	}
	for _, g := range declared {
		groups.Add(g, p)
		for _, sub := range subs {
			groups.Add(g, sub)
		}
	}
	return p
}

// obtain returns the canonical package for spec. Enrichment happens
// outside the cache lock; if another worker created the package first,
// its object wins and this enrichment is dropped.
func (b *Builder) obtain(ctx context.Context, spec deps.ResolvedSpec) *Package {
	k := Key{spec.Name, spec.Version}
	if p, ok := b.Cache.Get(k); ok {
		return p
	}
	fresh := b.enrich(ctx, spec)
	p, _ := b.Cache.GetOrCreate(k, func() *Package { return fresh })
	return p
}

func (b *Builder) enrich(ctx context.Context, spec deps.ResolvedSpec) *Package {
	p := &Package{Name: spec.Name, Version: spec.Version, Source: spec.Source}

	if b.Hosting != nil {
		if url, ref, ok := b.Hosting.ParseSource(spec.Source); ok {
			p.SourceURL, p.SourceRef = url, ref
			if spec.Revision != "" {
				p.SourceRef = spec.Revision
			}
		}
	}

	if b.Registry == nil || !fromRegistry(b.FromRegistry, spec.Source) {
		return p
	}
	info, err := b.Registry.Info(ctx, spec.Name)
	if err != nil {
		orDiscard(b.Logger).Debug("registry lookup failed", "package", spec.Name, "err", err)
		return p
	}
	if p.SourceURL == "" && info != nil {
		p.SourceURL = info.SourceCodeURL
	}
	if n, ok := info.DownloadsFor(spec.Version); ok {
		p.Downloads = &n
	}
	return p
}
