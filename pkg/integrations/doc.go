// Package integrations provides the HTTP clients the audit talks to.
//
// Two subpackages sit on top of the shared [Client]:
//
//   - [rubygems]: gem metadata (licenses, source URL, per-version downloads)
//   - [github]: repository listings, file contents, trees and commits
//
// # Client Pattern
//
// Every client embeds [*Client], which provides JSON GETs with retry on
// transient failures and response caching through a [cache.Cache]:
//
//	gems := rubygems.NewClient(cache.NewNullCache(), 24*time.Hour)
//	info, err := gems.FetchGem(ctx, "rails", false) // false = use cache
//
// Missing resources surface as [ErrNotFound]; transport failures and 5xx
// responses as [ErrNetwork]. Callers match them with errors.Is.
//
// [rubygems]: github.com/matzehuels/fossaudit/pkg/integrations/rubygems
// [github]: github.com/matzehuels/fossaudit/pkg/integrations/github
// [cache.Cache]: github.com/matzehuels/fossaudit/pkg/cache.Cache
package integrations
