// Package gitrepo reads repositories from local bare clones instead of the
// GitHub contents API.
//
// Each repository is cloned once into the cache directory and fetched at
// most once per [Client]. Files, root trees and the last committer of a
// path are then read straight from git objects, which keeps large audits
// clear of API rate limits. URL helpers delegate to package github, since
// the cloned repositories still live there.
package gitrepo
