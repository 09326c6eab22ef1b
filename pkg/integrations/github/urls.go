package github

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	repoURLPattern = regexp.MustCompile(`github\.com[/:]([^/\s]+)/([^/\s#?]+?)(?:\.git)?(?:[/?#]|$)`)
	gitSource      = regexp.MustCompile(`^git@github\.com:(.+)\.git \(at (.+)\)$`)
	httpsGitSource = regexp.MustCompile(`^https://github\.com/(.+?)(?:\.git)? \(at (.+)\)$`)
)

// ParseRepoURL extracts owner and repository from any GitHub URL: HTTPS,
// SSH, with or without .git, and tree/blob links.
func ParseRepoURL(url string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseSource turns a Bundler git source descriptor such as
// "git@github.com:acme/widgets.git (at master)" into the browsable tree
// URL and the ref. Non-GitHub sources are rejected.
func ParseSource(source string) (url, ref string, ok bool) {
	m := gitSource.FindStringSubmatch(source)
	if m == nil {
		m = httpsGitSource.FindStringSubmatch(source)
	}
	if m == nil {
		return "", "", false
	}
	return fmt.Sprintf("https://github.com/%s/tree/%s", m[1], m[2]), m[2], true
}

// FileURL links to path at ref in the GitHub web UI.
func FileURL(owner, repo, ref, path string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, ref, strings.TrimPrefix(path, "/"))
}

// ParseRepoURL is [ParseRepoURL] as a method, so the client satisfies
// hosting interfaces on its own.
func (c *Client) ParseRepoURL(url string) (owner, repo string, ok bool) { return ParseRepoURL(url) }

// ParseSource is [ParseSource] as a method.
func (c *Client) ParseSource(source string) (url, ref string, ok bool) { return ParseSource(source) }

// FileURL is [FileURL] as a method.
func (c *Client) FileURL(owner, repo, ref, path string) string { return FileURL(owner, repo, ref, path) }
