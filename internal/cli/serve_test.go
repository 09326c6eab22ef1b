package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fossaudit/pkg/audit"
	"github.com/matzehuels/fossaudit/pkg/snapshot"
)

func intPtr(n int) *int { return &n }

func storedRun(t *testing.T) snapshot.Store {
	t.Helper()
	res := audit.NewResult("default")
	rails := res.Packages.Put(&audit.Package{Name: "rails", Version: "7.1.0", Source: "rubygems repository https://rubygems.org/", SourceURL: "https://github.com/rails/rails", Downloads: intPtr(42)})
	rack := res.Packages.Put(&audit.Package{Name: "rack", Version: "2.2.8", Source: "rubygems repository https://rubygems.org/"})
	tools := res.Packages.Put(&audit.Package{Name: "tools", Version: "0.1.0", Source: "git@github.com:acme/tools.git (at master)"})
	rails.Link(rack)
	rails.SetLicense(audit.LicenseInfo{Licenses: []string{"MIT"}})

	shop := audit.GroupedPackages{}
	shop.Add("default", rails)
	shop.Add("default", rack)
	shop.Add("development", tools)
	res.Aggregator.Fold(audit.RepoRef{Owner: "acme", Name: "shop", Branch: "master"}, shop)
	res.Included = []audit.RepoRef{{Owner: "acme", Name: "shop", Branch: "master"}}
	res.Skipped = []audit.RepoRef{{Owner: "acme", Name: "shop", Branch: "develop"}}

	store, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), snapshot.FromResult("acme", res)); err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestServer(t *testing.T, store snapshot.Store) *httptest.Server {
	t.Helper()
	srv := &reportServer{
		store:     store,
		org:       "acme",
		namespace: "github.com:acme/",
		logger:    log.New(io.Discard),
	}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServe_Sheets(t *testing.T) {
	ts := newTestServer(t, storedRun(t))

	if status := getJSON(t, ts.URL+"/healthz", nil); status != http.StatusOK {
		t.Errorf("healthz status = %d", status)
	}

	var summary runSummary
	if status := getJSON(t, ts.URL+"/sheets", &summary); status != http.StatusOK {
		t.Fatalf("sheets status = %d", status)
	}
	if summary.Org != "acme" || summary.Included != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Sheets) != 2 || summary.Sheets[0].Rows != 2 || summary.Sheets[1].Rows != 1 {
		t.Errorf("sheets = %+v", summary.Sheets)
	}

	var rows []audit.Row
	if status := getJSON(t, ts.URL+"/sheets/production", &rows); status != http.StatusOK {
		t.Fatalf("production status = %d", status)
	}
	if len(rows) != 2 || rows[0].Name != "rack" || rows[1].Name != "rails" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[1].License != "MIT" || rows[1].Downloads != "42" || rows[1].UsedBy != "shop/master" {
		t.Errorf("rails row = %+v", rows[1])
	}
	if rows[0].License != "" {
		t.Errorf("rack license = %q, want empty without inference", rows[0].License)
	}

	rows = nil
	if status := getJSON(t, ts.URL+"/sheets/internal", &rows); status != http.StatusOK {
		t.Fatalf("internal status = %d", status)
	}
	if len(rows) != 1 || rows[0].Name != "tools" || rows[0].Internal != "yes" {
		t.Errorf("internal rows = %+v", rows)
	}
}

func TestServe_Package(t *testing.T) {
	ts := newTestServer(t, storedRun(t))

	var detail packageDetail
	if status := getJSON(t, ts.URL+"/packages/rails/7.1.0", &detail); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !detail.Production || detail.Internal {
		t.Errorf("membership = %+v", detail)
	}
	if detail.License == nil || detail.License.String() != "MIT" {
		t.Errorf("license = %+v", detail.License)
	}
	if len(detail.Sub) != 1 || detail.Sub[0] != (audit.Key{Name: "rack", Version: "2.2.8"}) {
		t.Errorf("sub = %v", detail.Sub)
	}
	if len(detail.UsedBy) != 1 || detail.UsedBy[0] != "shop/master" {
		t.Errorf("used by = %v", detail.UsedBy)
	}
}

func TestServe_Errors(t *testing.T) {
	empty, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		store  snapshot.Store
		path   string
		status int
		code   string
	}{
		{"unknown sheet", storedRun(t), "/sheets/bogus", http.StatusNotFound, "NOT_FOUND"},
		{"unknown package", storedRun(t), "/packages/rails/0.0.1", http.StatusNotFound, "PACKAGE_NOT_FOUND"},
		{"invalid name", storedRun(t), "/packages/..rails/1.0", http.StatusBadRequest, "INVALID_PACKAGE"},
		{"no run stored", empty, "/sheets", http.StatusNotFound, "SNAPSHOT_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.store)
			var body map[string]string
			if status := getJSON(t, ts.URL+tt.path, &body); status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if body["code"] != tt.code {
				t.Errorf("code = %q, want %q", body["code"], tt.code)
			}
		})
	}
}
