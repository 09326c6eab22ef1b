package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/fossaudit/pkg/cache"
	"github.com/matzehuels/fossaudit/pkg/integrations"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100
	maxPages       = 50
)

// Client provides access to the GitHub API: organization repositories,
// file contents, tree listings and commit history.
// It handles HTTP requests with caching, automatic retries, and optional authentication.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub API client caching responses in backend.
// Pass an empty string for token to use unauthenticated requests (lower rate limits).
func NewClient(backend cache.Cache, token string, cacheTTL time.Duration) *Client {
	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &Client{
		Client:  integrations.NewClient(backend, "github:", cacheTTL, headers),
		baseURL: defaultBaseURL,
	}
}

// SetBaseURL points the client at another API root, e.g. GitHub Enterprise.
func (c *Client) SetBaseURL(url string) { c.baseURL = strings.TrimSuffix(url, "/") }

// ListOrgRepos returns every repository of org, following pagination.
// Listings are never cached so new repositories show up immediately.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]Repo, error) {
	var all []Repo
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("%s/orgs/%s/repos?per_page=%d&page=%d", c.baseURL, integrations.PathEscape(org), perPage, page)

		var repos []Repo
		err := cache.RetryWithBackoff(ctx, func() error {
			return c.Get(ctx, url, &repos)
		})
		if err != nil {
			if errors.Is(err, integrations.ErrNotFound) {
				return nil, fmt.Errorf("%w: github org %s", err, org)
			}
			return nil, err
		}
		all = append(all, repos...)
		if len(repos) < perPage {
			break
		}
	}
	return all, nil
}

// FetchFile returns the raw content of path at ref.
// A missing repository, ref or file yields [integrations.ErrNotFound].
func (c *Client) FetchFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	key := fmt.Sprintf("file:%s/%s@%s:%s", owner, repo, ref, path)

	var content []byte
	err := c.Cached(ctx, key, false, &content, func() error {
		url := fmt.Sprintf("%s/repos/%s/%s/contents/%s%s", c.baseURL, owner, repo, escapePath(path), refQuery(ref))
		var data contentResponse
		if err := c.Get(ctx, url, &data); err != nil {
			return notFound(err, owner, repo, path)
		}
		if data.Type != "" && data.Type != "file" {
			return fmt.Errorf("%w: %s/%s/%s is a %s", integrations.ErrNotFound, owner, repo, path, data.Type)
		}
		decoded, err := decodeContent(data)
		if err != nil {
			return fmt.Errorf("decode %s/%s/%s: %w", owner, repo, path, err)
		}
		content = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// ListTree returns the root-level entries of the repository tree at ref.
func (c *Client) ListTree(ctx context.Context, owner, repo, ref string) ([]integrations.TreeEntry, error) {
	if ref == "" {
		ref = "HEAD"
	}
	key := fmt.Sprintf("tree:%s/%s@%s", owner, repo, ref)

	var entries []integrations.TreeEntry
	err := c.Cached(ctx, key, false, &entries, func() error {
		url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s", c.baseURL, owner, repo, integrations.PathEscape(ref))
		var data treeResponse
		if err := c.Get(ctx, url, &data); err != nil {
			return notFound(err, owner, repo, ref)
		}
		entries = data.Tree
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LastCommitter returns who last changed path at ref: the GitHub login when
// the commit is linked to an account, the git author name otherwise.
func (c *Client) LastCommitter(ctx context.Context, owner, repo, path, ref string) (string, error) {
	key := fmt.Sprintf("committer:%s/%s@%s:%s", owner, repo, ref, path)

	var who string
	err := c.Cached(ctx, key, false, &who, func() error {
		url := fmt.Sprintf("%s/repos/%s/%s/commits?path=%s&per_page=1", c.baseURL, owner, repo, integrations.URLEncode(path))
		if ref != "" {
			url += "&sha=" + integrations.URLEncode(ref)
		}
		var data []commitResponse
		if err := c.Get(ctx, url, &data); err != nil {
			return notFound(err, owner, repo, path)
		}
		if len(data) == 0 {
			return fmt.Errorf("%w: no commits for %s/%s/%s", integrations.ErrNotFound, owner, repo, path)
		}
		who = data[0].Author.Login
		if who == "" {
			who = data[0].Commit.Author.Name
		}
		return nil
	})
	return who, err
}

func decodeContent(data contentResponse) ([]byte, error) {
	if data.Encoding != "" && data.Encoding != "base64" {
		return []byte(data.Content), nil
	}
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(data.Content, "\n", ""))
}

func escapePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		parts[i] = integrations.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func refQuery(ref string) string {
	if ref == "" {
		return ""
	}
	return "?ref=" + integrations.URLEncode(ref)
}

func notFound(err error, owner, repo, what string) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return fmt.Errorf("%w: github %s/%s %s", err, owner, repo, what)
	}
	return err
}
