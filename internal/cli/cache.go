package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fossaudit/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the HTTP response cache and repository clones",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var clones bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached registry and GitHub responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == backendRedis {
				printWarning("Redis entries expire on their own; nothing cleared")
				printDetail("Address: %s", cfg.Cache.RedisAddr)
				return nil
			}

			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			count, err := clearFileCache(filepath.Join(dir, "http"))
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
			} else {
				printSuccess("Cleared %d cached entries", count)
			}
			printDetail("Directory: %s", filepath.Join(dir, "http"))

			if clones {
				repos := cfg.Hosting.CloneDir
				if repos == "" {
					repos = filepath.Join(dir, "repos")
				}
				if err := os.RemoveAll(repos); err != nil {
					return err
				}
				printSuccess("Removed repository clones")
				printDetail("Directory: %s", repos)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clones, "clones", false, "also remove bare repository clones")
	return cmd
}

func clearFileCache(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return 0, err
	}
	defer fc.Close()
	return fc.Clear()
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache and data directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cdir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			ddir, err := dataDir()
			if err != nil {
				return fmt.Errorf("get data dir: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "http       %s\n", filepath.Join(cdir, "http"))
			fmt.Fprintf(out, "clones     %s\n", filepath.Join(cdir, "repos"))
			fmt.Fprintf(out, "snapshots  %s\n", filepath.Join(ddir, "snapshots"))
			return nil
		},
	}
}
