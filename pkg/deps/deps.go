package deps

import (
	"context"
	"strings"
)

// DefaultGroup is the group a dependency belongs to when the manifest
// declares none. It marks production dependencies.
const DefaultGroup = "default"

// DeclaredDependency is one dependency as written in a manifest.
type DeclaredDependency struct {
	Name       string   // Package name, unique within a manifest
	Constraint string   // Version requirement (e.g. "~> 7.0"), empty if unconstrained
	Groups     []string // Groups such as "default", "development", "test"
	Source     string   // Where the package comes from, empty for the default registry
}

// ResolvedSpec is one exact package version from a lockfile.
type ResolvedSpec struct {
	Name         string   // Package name, unique within a lockfile
	Version      string   // Exact resolved version
	Source       string   // Source descriptor (registry, git remote + ref, path)
	Revision     string   // Locked commit of a git source, empty otherwise
	Dependencies []string // Names of the package's own dependencies
}

// SpecIndex looks resolved specs up by name.
type SpecIndex map[string]ResolvedSpec

// NewSpecIndex indexes specs by name. A later duplicate replaces an earlier one.
func NewSpecIndex(specs []ResolvedSpec) SpecIndex {
	idx := make(SpecIndex, len(specs))
	for _, s := range specs {
		idx[s.Name] = s
	}
	return idx
}

// RegistryInfo is what a package registry knows about a package name.
// Every field may be empty.
type RegistryInfo struct {
	SourceCodeURL      string              `json:"source_code_url,omitempty"`
	HomepageURL        string              `json:"homepage_url,omitempty"`
	Licenses           []string            `json:"licenses,omitempty"`            // Licenses of the latest release
	LicensesByVersion  map[string][]string `json:"licenses_by_version,omitempty"` // Per-release licenses
	DownloadsByVersion map[string]int      `json:"downloads_by_version,omitempty"`
}

// LicensesFor returns the non-empty licenses declared for version, falling
// back to the package-level list when the version declares none.
func (i *RegistryInfo) LicensesFor(version string) []string {
	if i == nil {
		return nil
	}
	if l := nonEmpty(i.LicensesByVersion[version]); len(l) > 0 {
		return l
	}
	return nonEmpty(i.Licenses)
}

// DownloadsFor returns the download count of version, if the registry reported one.
func (i *RegistryInfo) DownloadsFor(version string) (int, bool) {
	if i == nil {
		return 0, false
	}
	n, ok := i.DownloadsByVersion[version]
	return n, ok
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Registry returns metadata for a package name.
type Registry interface {
	Info(ctx context.Context, name string) (*RegistryInfo, error)
}
