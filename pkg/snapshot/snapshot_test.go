package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matzehuels/fossaudit/pkg/audit"
)

func intPtr(n int) *int { return &n }

func sampleResult() *audit.Result {
	res := audit.NewResult("default")
	rails := res.Packages.Put(&audit.Package{Name: "rails", Version: "7.1.0", Source: "rubygems repository https://rubygems.org/", SourceURL: "https://github.com/rails/rails", Downloads: intPtr(42)})
	rack := res.Packages.Put(&audit.Package{Name: "rack", Version: "2.2.8"})
	rspec := res.Packages.Put(&audit.Package{Name: "rspec", Version: "3.12.0"})
	rails.Link(rack)
	rspec.Link(rack)
	rails.SetLicense(audit.LicenseInfo{Licenses: []string{"MIT"}})
	rails.SetRequester("shop/master", "alice")

	shop := audit.GroupedPackages{}
	shop.Add("default", rails)
	shop.Add("default", rack)
	shop.Add("test", rspec)
	shop.Add("test", rack)
	res.Aggregator.Fold(audit.RepoRef{Owner: "acme", Name: "shop", Branch: "master"}, shop)

	admin := audit.GroupedPackages{}
	admin.Add("default", rack)
	res.Aggregator.Fold(audit.RepoRef{Owner: "acme", Name: "admin", Branch: "develop"}, admin)

	res.Included = []audit.RepoRef{{Owner: "acme", Name: "shop", Branch: "master"}}
	return res
}

func TestRestore(t *testing.T) {
	s := FromResult("acme", sampleResult())
	if s.RunID == "" || s.Org != "acme" || len(s.Packages) != 3 {
		t.Fatalf("snapshot = %+v", s)
	}

	res, err := Restore(s)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	rails, _ := res.Packages.Get(audit.Key{Name: "rails", Version: "7.1.0"})
	rspec, _ := res.Packages.Get(audit.Key{Name: "rspec", Version: "3.12.0"})
	rack, _ := res.Packages.Get(audit.Key{Name: "rack", Version: "2.2.8"})
	if rails == nil || rspec == nil || rack == nil {
		t.Fatal("packages missing after restore")
	}
	if rails.Sub()[0] != rack || rspec.Sub()[0] != rack {
		t.Error("sub-packages do not share identity")
	}
	if *rails.Downloads != 42 || rails.SourceURL != "https://github.com/rails/rails" {
		t.Errorf("rails = %+v", rails)
	}
	if info, ok := rails.CachedLicense(); !ok || info.String() != "MIT" {
		t.Errorf("license = %+v, %v", info, ok)
	}
	if _, ok := rack.CachedLicense(); ok {
		t.Error("rack license should not be memoized")
	}
	if got := rails.Requesters()["shop/master"]; got != "alice" {
		t.Errorf("requester = %q", got)
	}

	agg := res.Aggregator
	if got := agg.Production().Keys(); len(got) != 2 {
		t.Errorf("production = %v", got)
	}
	if !agg.Internal().Has(rspec.Key()) || !agg.Internal().Has(rack.Key()) {
		t.Errorf("internal = %v", agg.Internal().Keys())
	}
	if got := agg.Usage().Users(rack.Key()); !reflect.DeepEqual(got, []string{"admin/develop", "shop/master"}) {
		t.Errorf("rack users = %v", got)
	}
	if len(res.Included) != 1 {
		t.Errorf("included = %v", res.Included)
	}
}

func TestRestore_UnknownPackage(t *testing.T) {
	s := FromResult("acme", sampleResult())
	s.Production = append(s.Production, audit.Key{Name: "ghost", Version: "1.0"})
	if _, err := Restore(s); err == nil {
		t.Error("expected an error for an unknown package")
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close(ctx)

	if _, err := store.Latest(ctx, "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	older := FromResult("acme", sampleResult())
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := FromResult("acme", audit.NewResult("default"))
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	other := FromResult("other", sampleResult())
	other.CreatedAt = newer.CreatedAt.Add(time.Hour)

	for _, s := range []*Snapshot{newer, older, other} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := store.Latest(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != newer.RunID {
		t.Errorf("Latest = %s, want %s", got.RunID, newer.RunID)
	}

	entries, _ := os.ReadDir(filepath.Join(store.Dir(), "acme"))
	if len(entries) != 2 {
		t.Errorf("got %d files, want 2", len(entries))
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("FOSSAUDIT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FOSSAUDIT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := NewMongoStore(ctx, uri, "fossaudit_test")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close(ctx)

	s := FromResult("acme-test-"+time.Now().Format("150405.000"), sampleResult())
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Latest(ctx, s.Org)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != s.RunID || len(got.Packages) != len(s.Packages) {
		t.Errorf("Latest = %+v", got)
	}
	if _, err := Restore(got); err != nil {
		t.Errorf("Restore: %v", err)
	}
}
