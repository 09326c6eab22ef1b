package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"

	"github.com/matzehuels/fossaudit/pkg/audit"
	"github.com/matzehuels/fossaudit/pkg/deps"
	"github.com/matzehuels/fossaudit/pkg/deps/ruby"
	ferrors "github.com/matzehuels/fossaudit/pkg/errors"
	"github.com/matzehuels/fossaudit/pkg/integrations/github"
)

// defaultConfigFile is read from the working directory when --config is not given.
const defaultConfigFile = "fossaudit.toml"

// Config is the fossaudit.toml file.
type Config struct {
	Organization    string   `toml:"organization"`
	Repositories    []string `toml:"repositories"` // Explicit list; empty lists the organization
	Include         []string `toml:"include"`      // Glob patterns on repository names
	Exclude         []string `toml:"exclude"`
	IncludeArchived bool     `toml:"include_archived"`
	Branches        []string `toml:"branches"`
	Manifest        string   `toml:"manifest"` // Path of the Gemfile inside each repository
	Lockfile        string   `toml:"lockfile"`
	ProductionGroup string   `toml:"production_group"`
	Namespace       string   `toml:"namespace"` // Internal source marker, default "github.com:<org>/"
	DefaultRef      string   `toml:"default_ref"`
	Workers         int      `toml:"workers"`
	Output          string   `toml:"output"`
	Format          string   `toml:"format"` // xlsx, table or json
	Title           string   `toml:"title"`

	Hosting  HostingConfig  `toml:"hosting"`
	Cache    CacheConfig    `toml:"cache"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Serve    ServeConfig    `toml:"serve"`
}

// HostingConfig selects how repositories are read.
type HostingConfig struct {
	Backend     string `toml:"backend"` // "api" (contents API) or "git" (bare clones)
	Token       string `toml:"token"`
	CloneDir    string `toml:"clone_dir"`
	APIURL      string `toml:"api_url"`      // GitHub API root, e.g. for GitHub Enterprise
	RegistryURL string `toml:"registry_url"` // RubyGems API root
}

// CacheConfig selects the HTTP response cache.
type CacheConfig struct {
	Backend       string        `toml:"backend"` // file, redis or none
	TTL           time.Duration `toml:"ttl"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
}

// SnapshotConfig selects where audit runs are stored.
type SnapshotConfig struct {
	Backend  string `toml:"backend"` // file, mongo or none
	Dir      string `toml:"dir"`
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}

// ServeConfig configures the report server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

const (
	formatXLSX  = "xlsx"
	formatTable = "table"
	formatJSON  = "json"

	backendNone  = "none"
	backendFile  = "file"
	backendRedis = "redis"
	backendMongo = "mongo"
	backendAPI   = "api"
	backendGit   = "git"
)

// loadConfig reads path, then applies .env and environment overrides. A
// missing default config file is not an error.
func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Hosting.Token = v
	}
	if v := os.Getenv("FOSSAUDIT_ORG"); v != "" {
		c.Organization = v
	}
	if v := os.Getenv("FOSSAUDIT_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("FOSSAUDIT_MONGO_URI"); v != "" {
		c.Snapshot.MongoURI = v
	}
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if len(c.Branches) == 0 {
		c.Branches = audit.DefaultBranches
	}
	if c.ProductionGroup == "" {
		c.ProductionGroup = deps.DefaultGroup
	}
	if c.Namespace == "" && c.Organization != "" {
		c.Namespace = "github.com:" + c.Organization + "/"
	}
	if c.DefaultRef == "" {
		c.DefaultRef = audit.DefaultRef
	}
	if c.Workers < 1 {
		c.Workers = min(runtime.NumCPU(), 8)
	}
	if c.Format == "" {
		c.Format = formatXLSX
	}
	if c.Output == "" && c.Format == formatXLSX {
		c.Output = "foss.xlsx"
	}
	if c.Hosting.Backend == "" {
		c.Hosting.Backend = backendAPI
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = backendFile
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = backendFile
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
	return c
}

// Validate checks a defaulted config.
func (c *Config) Validate() error {
	if err := ferrors.ValidateOrgName(c.Organization); err != nil {
		return err
	}
	for _, b := range c.Branches {
		if err := ferrors.ValidateBranchName(b); err != nil {
			return err
		}
	}
	for _, u := range []string{c.Hosting.APIURL, c.Hosting.RegistryURL} {
		if u == "" {
			continue
		}
		if err := ferrors.ValidateURL(u); err != nil {
			return err
		}
	}
	for _, p := range []string{c.Manifest, c.Lockfile} {
		if p == "" {
			continue
		}
		if err := ferrors.ValidatePath(p); err != nil {
			return err
		}
	}
	for _, pat := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return ferrors.New(ferrors.ErrCodeInvalidConfig, "invalid repository pattern: %q", pat)
		}
	}
	checks := []struct {
		name, value string
		allowed     []string
	}{
		{"format", c.Format, []string{formatXLSX, formatTable, formatJSON}},
		{"hosting.backend", c.Hosting.Backend, []string{backendAPI, backendGit}},
		{"cache.backend", c.Cache.Backend, []string{backendFile, backendRedis, backendNone}},
		{"snapshot.backend", c.Snapshot.Backend, []string{backendFile, backendMongo, backendNone}},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return ferrors.New(ferrors.ErrCodeInvalidConfig, "%s must be one of %s, got %q",
				chk.name, strings.Join(chk.allowed, ", "), chk.value)
		}
	}
	if c.Snapshot.Backend == backendMongo && c.Snapshot.MongoURI == "" {
		return ferrors.New(ferrors.ErrCodeInvalidConfig, "snapshot.mongo_uri is required for the mongo backend")
	}
	return nil
}

// ecosystem returns the Bundler ecosystem with the configured file paths.
func (c *Config) ecosystem() *deps.Ecosystem {
	eco := *ruby.Ecosystem
	if c.Manifest != "" {
		eco.Manifest = manifestAt{eco.Manifest, c.Manifest}
	}
	if c.Lockfile != "" {
		eco.Lockfile = lockfileAt{eco.Lockfile, c.Lockfile}
	} else if c.Manifest != "" {
		eco.Lockfile = lockfileAt{eco.Lockfile, filepath.ToSlash(filepath.Join(filepath.Dir(c.Manifest), eco.Lockfile.Filename()))}
	}
	return &eco
}

type manifestAt struct {
	deps.ManifestParser
	path string
}

func (m manifestAt) Filename() string { return m.path }

type lockfileAt struct {
	deps.LockfileParser
	path string
}

func (l lockfileAt) Filename() string { return l.path }

// auditOptions maps the config onto engine options.
func (c *Config) auditOptions() audit.Options {
	return audit.Options{
		Ecosystem:       c.ecosystem(),
		Branches:        c.Branches,
		ProductionGroup: c.ProductionGroup,
		Namespace:       c.Namespace,
		DefaultRef:      c.DefaultRef,
		Workers:         c.Workers,
	}
}

// selectRepos filters an organization listing. Explicit repositories win
// over the listing; include and exclude globs apply to both.
func (c *Config) selectRepos(listed []github.Repo) []audit.Repository {
	var names []string
	if len(c.Repositories) > 0 {
		names = c.Repositories
	} else {
		for _, r := range listed {
			if r.Archived && !c.IncludeArchived {
				continue
			}
			names = append(names, r.Name)
		}
	}

	seen := make(map[string]bool)
	var out []audit.Repository
	for _, name := range names {
		if seen[name] || !c.wanted(name) {
			continue
		}
		seen[name] = true
		out = append(out, audit.Repository{Owner: c.Organization, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Config) wanted(name string) bool {
	if len(c.Include) > 0 && !matchAny(c.Include, name) {
		return false
	}
	return !matchAny(c.Exclude, name)
}

func matchAny(patterns []string, name string) bool {
	for _, raw := range patterns {
		pat := strings.TrimSpace(raw)
		if pat == "" {
			continue
		}
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// describe renders the effective settings for --verbose runs.
func (c *Config) describe() string {
	return fmt.Sprintf("org=%s branches=%s workers=%d hosting=%s cache=%s snapshot=%s",
		c.Organization, strings.Join(c.Branches, ","), c.Workers,
		c.Hosting.Backend, c.Cache.Backend, c.Snapshot.Backend)
}
