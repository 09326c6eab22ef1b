package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/matzehuels/fossaudit/pkg/cache"
	"github.com/matzehuels/fossaudit/pkg/integrations"
)

func TestClient_ListOrgRepos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orgs/acme/repos" {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var repos []Repo
		switch page {
		case 1:
			for i := range perPage {
				repos = append(repos, Repo{Name: fmt.Sprintf("repo-%03d", i)})
			}
		case 2:
			repos = []Repo{{Name: "last"}}
		}
		json.NewEncoder(w).Encode(repos)
	}))
	defer server.Close()

	c := testClient(t, server.URL, "")

	repos, err := c.ListOrgRepos(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListOrgRepos failed: %v", err)
	}
	if len(repos) != perPage+1 {
		t.Fatalf("expected %d repos, got %d", perPage+1, len(repos))
	}
	if repos[perPage].Name != "last" {
		t.Errorf("expected last repo from page 2, got %s", repos[perPage].Name)
	}
}

func TestClient_ListOrgRepos_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := testClient(t, server.URL, "")

	if _, err := c.ListOrgRepos(context.Background(), "nobody"); !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_FetchFile(t *testing.T) {
	var gotRef, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/repos/acme/shop/contents/Gemfile.lock" {
			http.NotFound(w, r)
			return
		}
		gotRef = r.URL.Query().Get("ref")
		json.NewEncoder(w).Encode(contentResponse{
			Type:     "file",
			Encoding: "base64",
			Content:  base64.StdEncoding.EncodeToString([]byte("GEM\n")) + "\n",
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL, "secret")

	data, err := c.FetchFile(context.Background(), "acme", "shop", "Gemfile.lock", "develop")
	if err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}
	if string(data) != "GEM\n" {
		t.Errorf("unexpected content %q", data)
	}
	if gotRef != "develop" {
		t.Errorf("expected ref develop, got %q", gotRef)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}

	if _, err := c.FetchFile(context.Background(), "acme", "shop", "Gemfile", "develop"); !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing file, got %v", err)
	}
}

func TestClient_ListTree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/qux/git/trees/v1.0" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(treeResponse{Tree: []integrations.TreeEntry{
			{Path: "LICENSE.md", Type: "blob", Size: 1070},
			{Path: "lib", Type: "tree"},
		}})
	}))
	defer server.Close()

	c := testClient(t, server.URL, "")

	entries, err := c.ListTree(context.Background(), "acme", "qux", "v1.0")
	if err != nil {
		t.Fatalf("ListTree failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Path != "LICENSE.md" || entries[1].Type != "tree" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestClient_LastCommitter(t *testing.T) {
	tests := []struct {
		name  string
		login string
		want  string
	}{
		{"linked account", "octocat", "octocat"},
		{"plain git author", "", "Jane Doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("path") != "Gemfile" || r.URL.Query().Get("sha") != "master" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				var c commitResponse
				c.Author.Login = tt.login
				c.Commit.Author.Name = "Jane Doe"
				json.NewEncoder(w).Encode([]commitResponse{c})
			}))
			defer server.Close()

			c := testClient(t, server.URL, "")

			got, err := c.LastCommitter(context.Background(), "acme", "shop", "Gemfile", "master")
			if err != nil {
				t.Fatalf("LastCommitter failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient(nil, "test-token", time.Hour)
	if c.Client == nil {
		t.Error("expected client to be initialized")
	}
	if c.baseURL != defaultBaseURL {
		t.Errorf("unexpected base URL %s", c.baseURL)
	}
}

func testClient(t *testing.T, serverURL, token string) *Client {
	t.Helper()
	c := NewClient(cache.NewNullCache(), token, time.Hour)
	c.baseURL = serverURL
	return c
}
