package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fossaudit/pkg/audit"
	"github.com/matzehuels/fossaudit/pkg/deps/ruby"
	ferrors "github.com/matzehuels/fossaudit/pkg/errors"
	"github.com/matzehuels/fossaudit/pkg/integrations"
	"github.com/matzehuels/fossaudit/pkg/integrations/github"
	"github.com/matzehuels/fossaudit/pkg/observability"
	"github.com/matzehuels/fossaudit/pkg/report"
	"github.com/matzehuels/fossaudit/pkg/snapshot"
)

// tableColumns are shown by --format table; the full header does not fit a terminal.
var tableColumns = []string{"Name", "Version", "License", "Used By", "Internal"}

type auditFlags struct {
	output       string
	format       string
	title        string
	workers      int
	repos        []string
	branches     []string
	noCache      bool
	noProgress   bool
	fromSnapshot bool
	saveSnapshot bool
}

// auditCommand creates the audit command.
func (c *CLI) auditCommand() *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Scan the organization and write the FOSS report",
		Long: `Scan every repository of the configured organization on each configured
branch, resolve Gemfile dependencies against Gemfile.lock, infer licenses and
write the report.

Repository branches without a Gemfile or Gemfile.lock are skipped.`,
		Example: `  # Full audit into foss.xlsx
  fossaudit audit

  # Two repositories, printed as a table
  fossaudit audit --repo shop --repo admin --format table

  # Re-emit the last stored run without scanning
  fossaudit audit --from-snapshot -o foss.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runAudit(cmd.Context(), cfg, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default foss.xlsx for xlsx, stdout otherwise)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "output format: xlsx, table, json")
	cmd.Flags().StringVar(&flags.title, "title", "", "worksheet title")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "repositories scanned in parallel")
	cmd.Flags().StringSliceVar(&flags.repos, "repo", nil, "scan only these repositories (repeatable)")
	cmd.Flags().StringSliceVarP(&flags.branches, "branch", "b", nil, "branches to scan (default master,develop,release)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the HTTP response cache")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "log progress lines instead of the progress view")
	cmd.Flags().BoolVar(&flags.fromSnapshot, "from-snapshot", false, "report from the latest stored run instead of scanning")
	cmd.Flags().BoolVar(&flags.saveSnapshot, "save-snapshot", false, "store this run for later reports and the server")

	return cmd
}

// apply overrides config values with flags the user set.
func (f auditFlags) apply(cmd *cobra.Command, cfg *Config) {
	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Format = f.format
		if cfg.Format != formatXLSX && !changed("output") {
			cfg.Output = ""
		}
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("title") {
		cfg.Title = f.title
	}
	if changed("workers") && f.workers > 0 {
		cfg.Workers = f.workers
	}
	if changed("repo") {
		cfg.Repositories = f.repos
	}
	if changed("branch") {
		cfg.Branches = f.branches
	}
}

func (c *CLI) runAudit(ctx context.Context, cfg *Config, flags auditFlags) error {
	logger := c.Logger
	logger.Debug("config", "settings", cfg.describe())

	stats := &observability.Counters{}
	observability.SetAuditHooks(stats)
	observability.SetCacheHooks(stats)
	observability.SetHTTPHooks(stats)
	defer observability.Reset()

	httpCache, err := newCache(ctx, cfg.Cache, flags.noCache)
	if err != nil {
		return err
	}
	defer httpCache.Close()

	api := github.NewClient(httpCache, cfg.Hosting.Token, cfg.Cache.TTL)
	if cfg.Hosting.APIURL != "" {
		api.SetBaseURL(cfg.Hosting.APIURL)
	}
	hosting, err := c.newHosting(cfg, api)
	if err != nil {
		return err
	}
	opts := cfg.auditOptions()
	registry := opts.Ecosystem.NewRegistry(httpCache, cfg.Cache.TTL)
	if reg, ok := registry.(ruby.Registry); ok && cfg.Hosting.RegistryURL != "" {
		reg.SetBaseURL(cfg.Hosting.RegistryURL)
	}

	var store snapshot.Store
	if flags.fromSnapshot || flags.saveSnapshot {
		if store, err = openSnapshots(ctx, cfg.Snapshot); err != nil {
			return err
		}
		if store == nil {
			return ferrors.New(ferrors.ErrCodeInvalidConfig, "snapshots are disabled (snapshot.backend = none)")
		}
		defer store.Close(context.WithoutCancel(ctx))
	}

	var (
		auditor *audit.Auditor
		res     *audit.Result
	)
	prog := newProgress(logger)
	if flags.fromSnapshot {
		s, err := store.Latest(ctx, cfg.Organization)
		if errors.Is(err, snapshot.ErrNotFound) {
			return ferrors.New(ferrors.ErrCodeSnapshotNotFound, "no stored run for %s", cfg.Organization)
		}
		if err != nil {
			return ferrors.Wrap(ferrors.ErrCodeInternal, err, "load snapshot")
		}
		if res, err = snapshot.Restore(s); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeInternal, err, "restore snapshot")
		}
		auditor = audit.New(hosting, registry, opts, logger)
		prog.done(fmt.Sprintf("Loaded run %s from %s", s.RunID, s.CreatedAt.Format("2006-01-02 15:04")))
	} else {
		repos, err := c.listRepos(ctx, cfg, api)
		if err != nil {
			return err
		}
		total := len(repos) * len(cfg.Branches)
		err = runScan(ctx, logger, total, !flags.noProgress, func(ctx context.Context, onScan func(audit.ScanEvent)) error {
			opts.OnScan = onScan
			auditor = audit.New(hosting, registry, opts, logger)
			var err error
			res, err = auditor.Run(ctx, repos)
			return err
		})
		if err != nil {
			return err
		}
		prog.done(fmt.Sprintf("Scanned %d repository branches (%d skipped)", len(res.Included), len(res.Skipped)))
	}

	sp := startSpinner(ctx, "Inferring licenses")
	err = auditor.InferLicenses(ctx, res)
	sp.Stop()
	if err != nil {
		return err
	}

	if flags.saveSnapshot {
		s := snapshot.FromResult(cfg.Organization, res)
		if err := store.Save(ctx, s); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeInternal, err, "save snapshot")
		}
		logger.Debug("snapshot saved", "run", s.RunID)
	}

	if err := c.writeReport(ctx, cfg, auditor, res); err != nil {
		return err
	}
	printSummary(res, stats.Stats())
	logStats(logger, stats.Stats())
	return nil
}

// listRepos returns the repositories to scan. An explicit list skips the
// organization listing.
func (c *CLI) listRepos(ctx context.Context, cfg *Config, api *github.Client) ([]audit.Repository, error) {
	var listed []github.Repo
	if len(cfg.Repositories) == 0 {
		sp := startSpinner(ctx, "Listing repositories of "+cfg.Organization)
		var err error
		listed, err = api.ListOrgRepos(ctx, cfg.Organization)
		sp.Stop()
		if err != nil {
			return nil, hostingError(err, cfg.Organization)
		}
		c.Logger.Debug("listed repositories", "org", cfg.Organization, "count", len(listed))
	}
	repos := cfg.selectRepos(listed)
	if len(repos) == 0 {
		return nil, ferrors.New(ferrors.ErrCodeNotFound, "no repositories to scan in %s", cfg.Organization)
	}
	return repos, nil
}

func hostingError(err error, org string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, integrations.ErrUnauthorized):
		return ferrors.Wrap(ferrors.ErrCodeUnauthorized, err, "list repositories of %s (is GITHUB_TOKEN set?)", org)
	case errors.Is(err, integrations.ErrNotFound):
		return ferrors.Wrap(ferrors.ErrCodeNotFound, err, "organization %s", org)
	default:
		return ferrors.Wrap(ferrors.ErrCodeNetwork, err, "list repositories of %s", org)
	}
}

func (c *CLI) writeReport(ctx context.Context, cfg *Config, auditor *audit.Auditor, res *audit.Result) error {
	switch cfg.Format {
	case formatTable:
		tw := report.NewTableWriter(tableColumns...)
		if err := auditor.Report(ctx, res, tw); err != nil {
			return err
		}
		return withOutput(cfg.Output, func(w io.Writer) error { return tw.Render(w) })
	case formatJSON:
		jw := report.NewJSONWriter()
		if err := auditor.Report(ctx, res, jw); err != nil {
			return err
		}
		return withOutput(cfg.Output, func(w io.Writer) error {
			_, err := jw.WriteTo(w)
			return err
		})
	default:
		xw, err := report.NewXLSXWriter(cfg.Title)
		if err != nil {
			return err
		}
		defer xw.Close()
		if err := auditor.Report(ctx, res, xw); err != nil {
			return err
		}
		if err := xw.Save(cfg.Output); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeInternal, err, "write %s", cfg.Output)
		}
		printSuccess("Wrote report")
		printFile(cfg.Output)
		return nil
	}
}

// withOutput runs write against path, or stdout when path is empty.
func withOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess("Wrote report")
	printFile(path)
	return nil
}

func printSummary(res *audit.Result, s observability.Stats) {
	agg := res.Aggregator
	printStats(agg.Production().Len(), agg.Internal().Len(), len(res.Included), len(res.Skipped))
	if s.Licenses > 0 {
		printKeyValue("licenses", fmt.Sprintf("%d of %d inferred", s.LicensesFound, s.Licenses))
	}
}

func logStats(logger *log.Logger, s observability.Stats) {
	logger.Debug("run stats",
		"requests", s.Requests,
		"http_errors", s.HTTPErrors,
		"http_time", s.HTTPTime.Round(time.Millisecond),
		"cache_hits", s.CacheHits,
		"cache_misses", s.CacheMisses)
}
