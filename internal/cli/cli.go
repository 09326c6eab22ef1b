// Package cli implements the fossaudit command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fossaudit/pkg/audit"
	"github.com/matzehuels/fossaudit/pkg/buildinfo"
	"github.com/matzehuels/fossaudit/pkg/cache"
	ferrors "github.com/matzehuels/fossaudit/pkg/errors"
	"github.com/matzehuels/fossaudit/pkg/integrations/github"
	"github.com/matzehuels/fossaudit/pkg/integrations/gitrepo"
	"github.com/matzehuels/fossaudit/pkg/snapshot"
)

// appName is the application name used for directories and display.
const appName = "fossaudit"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "fossaudit reports the open source packages an organization ships",
		Long: `fossaudit scans the Gemfile and Gemfile.lock of every repository in a GitHub
organization, infers each package's license and writes a spreadsheet of
packages used in released products and packages used internally.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./"+defaultConfigFile+")")

	root.AddCommand(c.auditCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads, defaults and validates the config file.
func (c *CLI) config() (*Config, error) {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	d := cfg.WithDefaults()
	return &d, nil
}

// =============================================================================
// Collaborator Factories
// =============================================================================

func newCache(ctx context.Context, cfg CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case backendNone:
		return cache.NewNullCache(), nil
	case backendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeNetwork, err, "connect to redis at %s", cfg.RedisAddr)
		}
		return rc, nil
	default:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(filepath.Join(dir, "http"))
	}
}

// newHosting returns the client repositories are read through. Organization
// listing always goes through the API client.
func (c *CLI) newHosting(cfg *Config, api *github.Client) (audit.Hosting, error) {
	if cfg.Hosting.Backend != backendGit {
		return api, nil
	}
	dir := cfg.Hosting.CloneDir
	if dir == "" {
		base, err := cacheDir()
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeInvalidConfig, err, "resolve clone directory")
		}
		dir = filepath.Join(base, "repos")
	}
	return gitrepo.NewClient(dir, cfg.Hosting.Token, c.Logger), nil
}

func openSnapshots(ctx context.Context, cfg SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Backend {
	case backendNone:
		return nil, nil
	case backendMongo:
		store, err := snapshot.NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeNetwork, err, "open snapshot store")
		}
		return store, nil
	default:
		dir := cfg.Dir
		if dir == "" {
			base, err := dataDir()
			if err != nil {
				return nil, ferrors.Wrap(ferrors.ErrCodeInvalidConfig, err, "resolve snapshot directory")
			}
			dir = filepath.Join(base, "snapshots")
		}
		return snapshot.NewFileStore(dir)
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/fossaudit/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// dataDir returns the data directory using XDG standard (~/.local/share/fossaudit/).
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}
