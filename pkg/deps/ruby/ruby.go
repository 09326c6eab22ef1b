package ruby

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/fossaudit/pkg/cache"
	"github.com/matzehuels/fossaudit/pkg/deps"
	"github.com/matzehuels/fossaudit/pkg/integrations/rubygems"
)

// defaultGitRef is the ref Bundler shows for git sources without branch, tag or ref.
const defaultGitRef = "master"

// Ecosystem is Bundler: Gemfile, Gemfile.lock and RubyGems.org.
var Ecosystem = &deps.Ecosystem{
	Name:         "ruby",
	Manifest:     Gemfile{},
	Lockfile:     Lockfile{},
	DefaultGroup: deps.DefaultGroup,
	NewRegistry:  newRegistry,
	FromRegistry: FromRegistry,
}

// FromRegistry reports whether source is a gem server. Sources read from a
// Gemfile without an explicit source count as RubyGems.org.
func FromRegistry(source string) bool {
	return source == "" || strings.HasPrefix(source, "rubygems repository ")
}

func newRegistry(backend cache.Cache, ttl time.Duration) deps.Registry {
	return Registry{rubygems.NewClient(backend, ttl)}
}

// Registry adapts the RubyGems client to [deps.Registry].
type Registry struct{ *rubygems.Client }

// Info combines the gem endpoint with the per-version listing. A failing
// version listing still yields the gem-level data.
func (r Registry) Info(ctx context.Context, name string) (*deps.RegistryInfo, error) {
	g, err := r.FetchGem(ctx, name, false)
	if err != nil {
		return nil, err
	}
	info := &deps.RegistryInfo{
		SourceCodeURL: g.SourceCodeURI,
		HomepageURL:   g.HomepageURI,
		Licenses:      g.Licenses,
	}

	versions, err := r.FetchVersions(ctx, name, false)
	if err != nil {
		return info, nil
	}
	info.LicensesByVersion = make(map[string][]string, len(versions))
	info.DownloadsByVersion = make(map[string]int, len(versions))
	for _, v := range versions {
		number := stripPlatform(v.Number)
		if _, ok := info.DownloadsByVersion[number]; ok && v.Platform != "ruby" {
			continue
		}
		info.LicensesByVersion[number] = v.Licenses
		info.DownloadsByVersion[number] = v.Downloads
	}
	return info, nil
}
