package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matzehuels/fossaudit/pkg/audit"
	ferrors "github.com/matzehuels/fossaudit/pkg/errors"
	"github.com/matzehuels/fossaudit/pkg/integrations/github"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fossaudit.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("FOSSAUDIT_ORG", "")
	path := writeConfig(t, `
organization = "acme"
branches = ["main"]
exclude = ["*-archive"]
workers = 3

[hosting]
token = "file-token"

[cache]
backend = "none"
ttl = "2h"

[snapshot]
backend = "mongo"
mongo_uri = "mongodb://localhost:27017"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Organization != "acme" || cfg.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Hosting.Token != "env-token" {
		t.Errorf("token = %q, want the environment to win", cfg.Hosting.Token)
	}
	if cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	d := cfg.WithDefaults()
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); !ferrors.Is(err, ferrors.ErrCodeInvalidConfig) {
		t.Errorf("explicit missing file: got %v", err)
	}

	t.Chdir(t.TempDir())
	t.Setenv("FOSSAUDIT_ORG", "acme")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("default missing file: %v", err)
	}
	if cfg.Organization != "acme" {
		t.Errorf("organization = %q", cfg.Organization)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, "organization = [")
	if _, err := loadConfig(path); !ferrors.Is(err, ferrors.ErrCodeInvalidConfig) {
		t.Errorf("got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{Organization: "acme"}.WithDefaults()

	if !reflect.DeepEqual(cfg.Branches, audit.DefaultBranches) {
		t.Errorf("branches = %v", cfg.Branches)
	}
	if cfg.Namespace != "github.com:acme/" {
		t.Errorf("namespace = %q", cfg.Namespace)
	}
	if cfg.ProductionGroup != "default" || cfg.Format != formatXLSX || cfg.Output != "foss.xlsx" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Workers < 1 || cfg.Workers > 8 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if cfg.Hosting.Backend != backendAPI || cfg.Cache.Backend != backendFile || cfg.Snapshot.Backend != backendFile {
		t.Errorf("backends = %s %s %s", cfg.Hosting.Backend, cfg.Cache.Backend, cfg.Snapshot.Backend)
	}

	table := Config{Organization: "acme", Format: formatTable}.WithDefaults()
	if table.Output != "" {
		t.Errorf("table output = %q, want stdout", table.Output)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing org", func(c *Config) { c.Organization = "" }, false},
		{"bad branch", func(c *Config) { c.Branches = []string{"a..b"} }, false},
		{"bad pattern", func(c *Config) { c.Include = []string{"[abc"} }, false},
		{"absolute manifest", func(c *Config) { c.Manifest = "/etc/Gemfile" }, false},
		{"nested manifest", func(c *Config) { c.Manifest = "app/Gemfile" }, true},
		{"bad format", func(c *Config) { c.Format = "csv" }, false},
		{"bad cache", func(c *Config) { c.Cache.Backend = "memcached" }, false},
		{"git hosting", func(c *Config) { c.Hosting.Backend = backendGit }, true},
		{"bad api url", func(c *Config) { c.Hosting.APIURL = "ftp://example.com" }, false},
		{"mongo without uri", func(c *Config) { c.Snapshot.Backend = backendMongo }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Organization: "acme"}.WithDefaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSelectRepos(t *testing.T) {
	listed := []github.Repo{
		{Name: "shop"},
		{Name: "admin"},
		{Name: "old-shop", Archived: true},
		{Name: "docs-site"},
		{Name: "shop"},
	}
	names := func(repos []audit.Repository) []string {
		var out []string
		for _, r := range repos {
			if r.Owner != "acme" {
				t.Errorf("owner = %q", r.Owner)
			}
			out = append(out, r.Name)
		}
		return out
	}

	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"listing", Config{}, []string{"admin", "docs-site", "shop"}},
		{"archived", Config{IncludeArchived: true}, []string{"admin", "docs-site", "old-shop", "shop"}},
		{"include", Config{Include: []string{"*shop"}, IncludeArchived: true}, []string{"old-shop", "shop"}},
		{"exclude", Config{Exclude: []string{"docs-*"}}, []string{"admin", "shop"}},
		{"explicit", Config{Repositories: []string{"zeta", "admin", "zeta"}}, []string{"admin", "zeta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Organization = "acme"
			if got := names(tt.cfg.selectRepos(listed)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("selectRepos = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEcosystemPaths(t *testing.T) {
	cfg := Config{}
	eco := cfg.ecosystem()
	if eco.Manifest.Filename() != "Gemfile" || eco.Lockfile.Filename() != "Gemfile.lock" {
		t.Errorf("default paths = %s, %s", eco.Manifest.Filename(), eco.Lockfile.Filename())
	}

	cfg = Config{Manifest: "app/Gemfile"}
	eco = cfg.ecosystem()
	if eco.Manifest.Filename() != "app/Gemfile" || eco.Lockfile.Filename() != "app/Gemfile.lock" {
		t.Errorf("nested paths = %s, %s", eco.Manifest.Filename(), eco.Lockfile.Filename())
	}

	deps, err := eco.Manifest.ParseManifest([]byte(`gem "rails"`))
	if err != nil || len(deps) != 1 || deps[0].Name != "rails" {
		t.Errorf("wrapped parser = %v, %v", deps, err)
	}

	cfg = Config{Manifest: "Gemfile.next", Lockfile: "Gemfile.next.lock"}
	if got := cfg.ecosystem().Lockfile.Filename(); got != "Gemfile.next.lock" {
		t.Errorf("lockfile = %s", got)
	}
}
