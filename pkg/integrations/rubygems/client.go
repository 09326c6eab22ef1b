package rubygems

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/fossaudit/pkg/cache"
	"github.com/matzehuels/fossaudit/pkg/integrations"
)

// GemInfo holds gem-level metadata for the latest release of a gem.
//
// Zero values: all string fields are empty, Licenses is nil, Downloads is 0.
type GemInfo struct {
	Name          string   // Gem name, normalized lowercase
	Version       string   // Latest version
	Licenses      []string // Licenses declared by the latest release (may be empty)
	SourceCodeURI string   // Source code repository URL (may be empty)
	HomepageURI   string   // Homepage URL (may be empty)
	Downloads     int      // Total download count across all versions
}

// VersionInfo is one published release of a gem.
type VersionInfo struct {
	Number    string   // Version number, with a "-platform" suffix for native builds
	Platform  string   // "ruby" for pure gems
	Licenses  []string // Licenses declared by this release (may be empty)
	Downloads int      // Downloads of this release
}

// Client provides access to the RubyGems package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a RubyGems client with the given cache backend.
// Responses are cached for cacheTTL.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "rubygems:", cacheTTL, nil),
		baseURL: "https://rubygems.org/api/v1",
	}
}

// SetBaseURL points the client at a different API root, such as a mirror.
func (c *Client) SetBaseURL(url string) { c.baseURL = strings.TrimSuffix(url, "/") }

// FetchGem retrieves gem-level metadata from /gems/{name}.json.
//
// If refresh is true, the cache is bypassed.
//
// Returns [integrations.ErrNotFound] if the gem doesn't exist and
// [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchGem(ctx context.Context, gem string, refresh bool) (*GemInfo, error) {
	gem = normalize(gem)

	var info GemInfo
	err := c.Cached(ctx, "gem:"+gem, refresh, &info, func() error {
		var data gemResponse
		if err := c.Get(ctx, fmt.Sprintf("%s/gems/%s.json", c.baseURL, integrations.PathEscape(gem)), &data); err != nil {
			return notFound(err, gem)
		}
		info = GemInfo{
			Name:          data.Name,
			Version:       data.Version,
			Licenses:      data.Licenses,
			SourceCodeURI: data.SourceCodeURI,
			HomepageURI:   data.HomepageURI,
			Downloads:     data.Downloads,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// FetchVersions retrieves every published release from /versions/{name}.json,
// newest first as the API returns them.
func (c *Client) FetchVersions(ctx context.Context, gem string, refresh bool) ([]VersionInfo, error) {
	gem = normalize(gem)

	var versions []VersionInfo
	err := c.Cached(ctx, "versions:"+gem, refresh, &versions, func() error {
		var data []versionResponse
		if err := c.Get(ctx, fmt.Sprintf("%s/versions/%s.json", c.baseURL, integrations.PathEscape(gem)), &data); err != nil {
			return notFound(err, gem)
		}
		versions = make([]VersionInfo, 0, len(data))
		for _, v := range data {
			versions = append(versions, VersionInfo{
				Number:    v.Number,
				Platform:  v.Platform,
				Licenses:  v.Licenses,
				Downloads: v.DownloadsCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func normalize(gem string) string {
	return strings.ToLower(strings.TrimSpace(gem))
}

func notFound(err error, gem string) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return fmt.Errorf("%w: gem %s", err, gem)
	}
	return err
}

type gemResponse struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Licenses      []string `json:"licenses"`
	SourceCodeURI string   `json:"source_code_uri"`
	HomepageURI   string   `json:"homepage_uri"`
	Downloads     int      `json:"downloads"`
}

type versionResponse struct {
	Number         string   `json:"number"`
	Platform       string   `json:"platform"`
	Licenses       []string `json:"licenses"`
	DownloadsCount int      `json:"downloads_count"`
}
