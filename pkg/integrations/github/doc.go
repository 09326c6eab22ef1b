// Package github provides an HTTP client for the GitHub API.
//
// # Usage
//
//	client := github.NewClient(backend, os.Getenv("GITHUB_TOKEN"), time.Hour)
//
//	repos, err := client.ListOrgRepos(ctx, "acme")
//	data, err := client.FetchFile(ctx, "acme", "shop", "Gemfile.lock", "master")
//	entries, err := client.ListTree(ctx, "acme", "shop", "master")
//
// Missing repositories, refs and files return [integrations.ErrNotFound].
//
// # Authentication
//
// A GitHub personal access token is optional, but private organization
// repositories and the higher rate limit (5000 requests/hour instead of 60)
// need one. The token is sent as a bearer token; there is no login flow.
//
// # Caching
//
// File contents, trees and commit lookups are cached in the backend passed
// to [NewClient]. Organization listings always hit the API.
//
// # URLs and sources
//
// [ParseRepoURL] extracts owner/repo from any GitHub URL form and
// [ParseSource] reads Bundler git source descriptors of the form
// "git@github.com:owner/repo.git (at ref)".
//
// [integrations.ErrNotFound]: github.com/matzehuels/fossaudit/pkg/integrations.ErrNotFound
package github
