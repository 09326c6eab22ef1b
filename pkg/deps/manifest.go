package deps

import (
	"time"

	"github.com/matzehuels/fossaudit/pkg/cache"
)

// ManifestParser turns manifest text into declared dependencies.
type ManifestParser interface {
	// Filename is the manifest's path relative to the repository root.
	Filename() string
	// ParseManifest returns dependencies in declaration order.
	ParseManifest(data []byte) ([]DeclaredDependency, error)
}

// LockfileParser turns lockfile text into resolved specs.
type LockfileParser interface {
	// Filename is the lockfile's path relative to the repository root.
	Filename() string
	// ParseLockfile returns the resolved specs in file order.
	ParseLockfile(data []byte) ([]ResolvedSpec, error)
}

// Ecosystem describes one package manager.
type Ecosystem struct {
	Name         string
	Manifest     ManifestParser
	Lockfile     LockfileParser
	DefaultGroup string
	NewRegistry  func(backend cache.Cache, ttl time.Duration) Registry

	// FromRegistry reports whether a lockfile source descriptor points at
	// the registry, as opposed to a git checkout or a local path.
	FromRegistry func(source string) bool
}
