// Package deps defines what the audit reads from a repository: the
// declared dependencies of a manifest, the resolved specs of its lockfile,
// and the registry metadata of a package.
//
// # Overview
//
// An [Ecosystem] bundles the pieces one package manager needs:
//
//   - a [ManifestParser] for the developer-authored file (Gemfile)
//   - a [LockfileParser] for the resolver output (Gemfile.lock)
//   - a [Registry] constructor for metadata lookups (RubyGems)
//
// Ruby is the only ecosystem shipped today; see [ruby.Ecosystem].
//
// # Lockfile Flattening
//
// Lockfiles are expected to list the full transitive closure as top-level
// specs. [ResolvedSpec.Dependencies] is provenance only: the audit links
// each name one level deep against the same lockfile and never resolves
// further.
//
// [ruby.Ecosystem]: github.com/matzehuels/fossaudit/pkg/deps/ruby.Ecosystem
package deps
