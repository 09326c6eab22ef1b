package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/fossaudit/pkg/deps"
	"github.com/matzehuels/fossaudit/pkg/integrations"
	"github.com/matzehuels/fossaudit/pkg/observability"
)

// DefaultBranches are scanned when no branches are configured.
var DefaultBranches = []string{"master", "develop", "release"}

// Repository is one repository to scan on every configured branch.
type Repository struct {
	Owner string
	Name  string
}

// Options configures an audit run.
type Options struct {
	Ecosystem       *deps.Ecosystem // Manifest and lockfile formats
	Branches        []string        // Branches scanned in every repository
	ProductionGroup string          // Group reported as "used in released products"
	Namespace       string          // Marks internal sources, e.g. "github.com:acme/"
	DefaultRef      string          // Ref for license files when a package has none
	Workers         int             // Repositories scanned in parallel; 1 is sequential

	// OnScan is called after each repository branch, from the scanning
	// goroutine. It must be safe for concurrent use when Workers > 1.
	OnScan func(ScanEvent)
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if len(o.Branches) == 0 {
		o.Branches = DefaultBranches
	}
	if o.ProductionGroup == "" {
		o.ProductionGroup = deps.DefaultGroup
		if o.Ecosystem != nil && o.Ecosystem.DefaultGroup != "" {
			o.ProductionGroup = o.Ecosystem.DefaultGroup
		}
	}
	if o.DefaultRef == "" {
		o.DefaultRef = DefaultRef
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// ScanStatus is the outcome of scanning one repository branch.
type ScanStatus int

const (
	ScanIncluded ScanStatus = iota // Both files found and folded into the report
	ScanSkipped                    // Manifest or lockfile missing or unreadable
)

func (s ScanStatus) String() string {
	if s == ScanIncluded {
		return "included"
	}
	return "skipped"
}

// ScanEvent reports one scanned repository branch.
type ScanEvent struct {
	Repo     RepoRef
	Status   ScanStatus
	Reason   string // Why the branch was skipped
	Packages int    // Distinct packages the branch contributed
	Done     int    // Repository branches finished so far
	Total    int    // Repository branches in the run
}

// Result is the aggregated state of a run.
type Result struct {
	Packages   *PackageCache
	Aggregator *Aggregator
	Included   []RepoRef
	Skipped    []RepoRef
}

// NewResult returns an empty result for productionGroup.
func NewResult(productionGroup string) *Result {
	return &Result{
		Packages:   NewPackageCache(),
		Aggregator: NewAggregator(productionGroup, NewUsageIndex()),
	}
}

// Auditor scans repositories and reports the packages they use.
type Auditor struct {
	hosting  Hosting
	registry *RegistryCache
	opts     Options
	logger   *log.Logger

	builder  *Builder
	licenses *LicenseInferrer
}

// New returns an auditor reading repositories through hosting and package
// metadata through registry. Registry may be nil.
func New(hosting Hosting, registry deps.Registry, opts Options, logger *log.Logger) *Auditor {
	opts = opts.WithDefaults()
	logger = orDiscard(logger)
	reg := NewRegistryCache(registry)

	var fromReg func(string) bool
	if opts.Ecosystem != nil {
		fromReg = opts.Ecosystem.FromRegistry
	}
	return &Auditor{
		hosting:  hosting,
		registry: reg,
		opts:     opts,
		logger:   logger,
		builder: &Builder{
			Registry:     reg,
			Hosting:      hosting,
			FromRegistry: fromReg,
			Logger:       logger,
		},
		licenses: &LicenseInferrer{
			Hosting:      hosting,
			Registry:     reg,
			DefaultRef:   opts.DefaultRef,
			FromRegistry: fromReg,
			Logger:       logger,
		},
	}
}

// Licenses returns the auditor's license inferrer.
func (a *Auditor) Licenses() *LicenseInferrer { return a.licenses }

// Run scans every repository on every configured branch. Missing or broken
// input only skips the affected branch; Run fails only when ctx is done.
func (a *Auditor) Run(ctx context.Context, repos []Repository) (*Result, error) {
	if a.opts.Ecosystem == nil || a.opts.Ecosystem.Manifest == nil || a.opts.Ecosystem.Lockfile == nil {
		return nil, errors.New("audit: no ecosystem configured")
	}
	if a.hosting == nil {
		return nil, errors.New("audit: no hosting client configured")
	}
	res := NewResult(a.opts.ProductionGroup)
	builder := *a.builder
	builder.Cache = res.Packages

	var (
		mu    sync.Mutex
		done  int
		total = len(repos) * len(a.opts.Branches)
	)
	record := func(ev ScanEvent) {
		mu.Lock()
		done++
		ev.Done, ev.Total = done, total
		if ev.Status == ScanIncluded {
			res.Included = append(res.Included, ev.Repo)
		} else {
			res.Skipped = append(res.Skipped, ev.Repo)
		}
		mu.Unlock()
		if a.opts.OnScan != nil {
			a.opts.OnScan(ev)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, repo := range repos {
		g.Go(func() error {
			for _, branch := range a.opts.Branches {
				if err := gctx.Err(); err != nil {
					return err
				}
				ref := RepoRef{Owner: repo.Owner, Name: repo.Name, Branch: branch}
				start := time.Now()
				ev := a.scan(gctx, ref, &builder, res.Aggregator)
				observability.Audit().OnScanComplete(gctx, ref.ID(), ev.Status == ScanIncluded, ev.Packages, time.Since(start))
				record(ev)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

// scan processes one repository branch.
func (a *Auditor) scan(ctx context.Context, ref RepoRef, builder *Builder, agg *Aggregator) ScanEvent {
	logger := a.logger.With("repo", ref.ID())
	eco := a.opts.Ecosystem

	manifest, err := a.fetch(ctx, ref, eco.Manifest.Filename())
	if err != nil {
		return a.skip(logger, ref, err)
	}
	lockfile, err := a.fetch(ctx, ref, eco.Lockfile.Filename())
	if err != nil {
		return a.skip(logger, ref, err)
	}

	declared, err := eco.Manifest.ParseManifest(manifest)
	if err != nil {
		return a.skip(logger, ref, fmt.Errorf("parse %s: %w", eco.Manifest.Filename(), err))
	}
	specList, err := eco.Lockfile.ParseLockfile(lockfile)
	if err != nil {
		return a.skip(logger, ref, fmt.Errorf("parse %s: %w", eco.Lockfile.Filename(), err))
	}
	specs := deps.NewSpecIndex(specList)

	requester := a.requester(ctx, ref, logger)
	groups := GroupedPackages{}
	for _, dep := range Reconcile(ref, declared, specs, logger) {
		p := builder.Build(ctx, ref, dep, specs, groups)
		if requester != "" {
			p.SetRequester(ref.ID(), requester)
		}
	}
	agg.Fold(ref, groups)

	distinct := NewPackageSet()
	for _, set := range groups {
		for _, p := range set.Packages() {
			distinct.Add(p)
		}
	}
	logger.Debug("scanned", "declared", len(declared), "locked", len(specList), "packages", distinct.Len())
	return ScanEvent{Repo: ref, Status: ScanIncluded, Packages: distinct.Len()}
}

func (a *Auditor) fetch(ctx context.Context, ref RepoRef, path string) ([]byte, error) {
	data, err := a.hosting.FetchFile(ctx, ref.Owner, ref.Name, path, ref.Branch)
	if errors.Is(err, integrations.ErrNotFound) {
		return nil, fmt.Errorf("no %s", path)
	}
	return data, err
}

func (a *Auditor) skip(logger *log.Logger, ref RepoRef, err error) ScanEvent {
	logger.Info("skipping repository branch", "reason", err)
	return ScanEvent{Repo: ref, Status: ScanSkipped, Reason: err.Error()}
}

func (a *Auditor) requester(ctx context.Context, ref RepoRef, logger *log.Logger) string {
	c, ok := a.hosting.(Committer)
	if !ok {
		return ""
	}
	who, err := c.LastCommitter(ctx, ref.Owner, ref.Name, a.opts.Ecosystem.Manifest.Filename(), ref.Branch)
	if err != nil {
		logger.Debug("last committer unavailable", "err", err)
		return ""
	}
	return who
}

// InferLicenses runs license inference for every package of res ahead of
// reporting, using the configured number of workers.
func (a *Auditor) InferLicenses(ctx context.Context, res *Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, p := range res.Packages.All() {
		if !res.Aggregator.Usage().Has(p.Key()) {
			continue
		}
		g.Go(func() error {
			a.licenses.License(gctx, p)
			return gctx.Err()
		})
	}
	return g.Wait()
}

// Report writes both sheets of res to w.
func (a *Auditor) Report(ctx context.Context, res *Result, w RowWriter) error {
	if err := a.InferLicenses(ctx, res); err != nil {
		return err
	}
	e := &Emitter{
		Writer:    w,
		Licenses:  a.licenses,
		Usage:     res.Aggregator.Usage(),
		Namespace: a.opts.Namespace,
	}
	if err := e.Emit(ctx, SheetProduction, res.Aggregator.Production().Packages()); err != nil {
		return err
	}
	return e.Emit(ctx, SheetInternal, res.Aggregator.Internal().Packages())
}
