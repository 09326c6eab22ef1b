package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fossaudit/pkg/audit"
	ferrors "github.com/matzehuels/fossaudit/pkg/errors"
	"github.com/matzehuels/fossaudit/pkg/snapshot"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest stored run as a JSON API",
		Long: `Serve the latest run stored with "audit --save-snapshot" as read-only JSON.

Endpoints:
  GET /healthz
  GET /sheets
  GET /sheets/{sheet}              sheet is "production" or "internal"
  GET /packages/{name}/{version}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}
			if err := ferrors.ValidateOrgName(cfg.Organization); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openSnapshots(ctx, cfg.Snapshot)
			if err != nil {
				return err
			}
			if store == nil {
				return ferrors.New(ferrors.ErrCodeInvalidConfig, "snapshots are disabled (snapshot.backend = none)")
			}
			defer store.Close(context.WithoutCancel(ctx))

			srv := &reportServer{
				store:     store,
				org:       cfg.Organization,
				namespace: cfg.Namespace,
				logger:    c.Logger,
			}
			return listen(ctx, cfg.Serve.Addr, srv.routes(), c.Logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	return cmd
}

func listen(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()
	printSuccess("Serving report")
	printKeyValue("address", addr)
	logger.Debug("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// reportServer answers from the newest snapshot of one organization.
type reportServer struct {
	store     snapshot.Store
	org       string
	namespace string
	logger    *log.Logger

	mu    sync.Mutex
	runID string
	meta  *snapshot.Snapshot
	res   *audit.Result
}

var sheetSlugs = map[string]string{
	"production":          audit.SheetProduction,
	"internal":            audit.SheetInternal,
	audit.SheetProduction: audit.SheetProduction,
	audit.SheetInternal:   audit.SheetInternal,
}

func (s *reportServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/sheets", s.listSheets)
	r.Get("/sheets/{sheet}", s.getSheet)
	r.Get("/packages/{name}/{version}", s.getPackage)
	return r
}

func (s *reportServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond))
	})
}

// current returns the newest run, restoring it only when its ID changed.
func (s *reportServer) current(ctx context.Context) (*snapshot.Snapshot, *audit.Result, error) {
	latest, err := s.store.Latest(ctx, s.org)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, nil, ferrors.New(ferrors.ErrCodeSnapshotNotFound, "no stored run for %s", s.org)
	}
	if err != nil {
		return nil, nil, ferrors.Wrap(ferrors.ErrCodeInternal, err, "load snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if latest.RunID != s.runID {
		res, err := snapshot.Restore(latest)
		if err != nil {
			return nil, nil, ferrors.Wrap(ferrors.ErrCodeInternal, err, "restore snapshot")
		}
		s.runID, s.meta, s.res = latest.RunID, latest, res
	}
	return s.meta, s.res, nil
}

func (s *reportServer) emitter(res *audit.Result) *audit.Emitter {
	return &audit.Emitter{Usage: res.Aggregator.Usage(), Namespace: s.namespace}
}

type sheetSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

type runSummary struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Org       string         `json:"org"`
	Included  int            `json:"included"`
	Skipped   int            `json:"skipped"`
	Sheets    []sheetSummary `json:"sheets"`
}

func (s *reportServer) listSheets(w http.ResponseWriter, r *http.Request) {
	meta, res, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	e := s.emitter(res)
	out := runSummary{
		RunID:     meta.RunID,
		CreatedAt: meta.CreatedAt,
		Org:       meta.Org,
		Included:  len(res.Included),
		Skipped:   len(res.Skipped),
		Sheets: []sheetSummary{
			{audit.SheetProduction, "/sheets/production", len(e.Rows(r.Context(), res.Aggregator.Production().Packages()))},
			{audit.SheetInternal, "/sheets/internal", len(e.Rows(r.Context(), res.Aggregator.Internal().Packages()))},
		},
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *reportServer) getSheet(w http.ResponseWriter, r *http.Request) {
	name, ok := sheetSlugs[chi.URLParam(r, "sheet")]
	if !ok {
		s.writeError(w, ferrors.New(ferrors.ErrCodeNotFound, "unknown sheet %q", chi.URLParam(r, "sheet")))
		return
	}
	_, res, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	set := res.Aggregator.Production()
	if name == audit.SheetInternal {
		set = res.Aggregator.Internal()
	}
	writeJSON(w, http.StatusOK, s.emitter(res).Rows(r.Context(), set.Packages()))
}

type packageDetail struct {
	Name       string             `json:"name"`
	Version    string             `json:"version"`
	Source     string             `json:"source,omitempty"`
	SourceURL  string             `json:"source_url,omitempty"`
	Downloads  *int               `json:"downloads,omitempty"`
	License    *audit.LicenseInfo `json:"license,omitempty"`
	UsedBy     []string           `json:"used_by"`
	Requesters map[string]string  `json:"requesters,omitempty"`
	Sub        []audit.Key        `json:"sub"`
	Production bool               `json:"production"`
	Internal   bool               `json:"internal"`
}

func (s *reportServer) getPackage(w http.ResponseWriter, r *http.Request) {
	name, version := chi.URLParam(r, "name"), chi.URLParam(r, "version")
	if err := ferrors.ValidateGemName(name); err != nil {
		s.writeError(w, err)
		return
	}
	_, res, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	k := audit.Key{Name: name, Version: version}
	p, ok := res.Packages.Get(k)
	if !ok {
		s.writeError(w, ferrors.New(ferrors.ErrCodePackageNotFound, "package %s not in the latest run", k))
		return
	}

	out := packageDetail{
		Name:       p.Name,
		Version:    p.Version,
		Source:     p.Source,
		SourceURL:  p.SourceURL,
		Downloads:  p.Downloads,
		UsedBy:     res.Aggregator.Usage().Users(k),
		Requesters: p.Requesters(),
		Sub:        []audit.Key{},
		Production: res.Aggregator.Production().Has(k),
		Internal:   res.Aggregator.Internal().Has(k),
	}
	if info, ok := p.CachedLicense(); ok {
		out.License = &info
	}
	for _, sub := range p.Sub() {
		out.Sub = append(out.Sub, sub.Key())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *reportServer) writeError(w http.ResponseWriter, err error) {
	status := ferrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{
		"error": ferrors.UserMessage(err),
		"code":  string(ferrors.GetCode(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
