// Package rubygems provides an HTTP client for the RubyGems.org API.
//
// # Usage
//
//	client := rubygems.NewClient(cache.NewNullCache(), 24*time.Hour)
//
//	gem, err := client.FetchGem(ctx, "rails", false)
//	versions, err := client.FetchVersions(ctx, "rails", false)
//
// [FetchGem] returns gem-level metadata for the latest release: licenses,
// source code and homepage URLs, and total downloads. [FetchVersions] lists
// every release with its own licenses and download count, which is what a
// license audit of a pinned version needs.
//
// # Caching
//
// Responses are cached in the backend passed to [NewClient] under the
// "rubygems:" namespace. Pass refresh=true to bypass the cache.
package rubygems
