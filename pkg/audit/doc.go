// Package audit finds the open-source packages an organization's
// repositories depend on and works out their licenses.
//
// # Pipeline
//
// For every repository branch the [Auditor] fetches the manifest and the
// lockfile, and skips the branch when either is missing. Then:
//
//  1. [Reconcile] pairs declared dependencies with locked specs by name.
//  2. [Builder] turns each pair into a canonical [Package], shared through
//     a [PackageCache] keyed by name and version, links its direct
//     sub-packages and files everything under the dependency's groups.
//  3. [Aggregator] folds the groups into the production and internal sets
//     and records every use in the [UsageIndex].
//
// After all branches, [Emitter] writes one sorted row per package to a
// [RowWriter], asking the [LicenseInferrer] for licenses on the way.
//
// # Licenses
//
// Registry licenses win. Without them the inferrer lists the package's
// source repository and runs an ordered set of patterns over its LICENSE
// and README files:
//
//	"Released under the MIT license" → MIT
//
// Results are memoized on the package.
//
// # Failure model
//
// Nothing that concerns the data is fatal: missing files, unmatched
// dependencies and failed lookups are logged and leave fields empty.
package audit
