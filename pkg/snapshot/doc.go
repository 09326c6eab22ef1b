// Package snapshot persists the aggregated state of an audit run.
//
// A [Snapshot] holds every package with its identity, enrichment, license
// memo and sub-package links, plus the two report sets and the usage index.
// [Restore] rebuilds an [audit.Result] in which every (name, version) pair is
// again a single shared *audit.Package, so a report can be emitted again
// without scanning a single repository.
//
// Two stores are provided: [FileStore] keeps JSON files on disk and
// [MongoStore] keeps one document per run in MongoDB.
package snapshot
