package audit

import (
	"reflect"
	"testing"
)

func pkg(name, version string) *Package { return &Package{Name: name, Version: version} }

func TestAggregator_Fold(t *testing.T) {
	rails, rspec, pry := pkg("rails", "7.1.0"), pkg("rspec", "3.12.0"), pkg("pry", "0.14.2")

	agg := NewAggregator("", nil)
	agg.Fold(RepoRef{Name: "shop", Branch: "master"}, GroupedPackages{
		"default": setOf(rails),
		"test":    setOf(rspec, rails),
	})
	agg.Fold(RepoRef{Name: "admin", Branch: "develop"}, GroupedPackages{
		"development": setOf(pry),
	})

	if got := agg.Production().Keys(); !reflect.DeepEqual(got, []Key{rails.Key()}) {
		t.Errorf("production = %v, want only rails", got)
	}
	if got := agg.Internal().Keys(); !reflect.DeepEqual(got, []Key{pry.Key(), rails.Key(), rspec.Key()}) {
		t.Errorf("internal = %v", got)
	}
	if got := agg.Usage().Users(rails.Key()); !reflect.DeepEqual(got, []string{"shop/master"}) {
		t.Errorf("rails users = %v", got)
	}
	if got := agg.Usage().Users(pry.Key()); !reflect.DeepEqual(got, []string{"admin/develop"}) {
		t.Errorf("pry users = %v", got)
	}
}

func TestAggregator_ProductionAnywhere(t *testing.T) {
	rack := pkg("rack", "2.2.8")

	agg := NewAggregator("default", nil)
	agg.Fold(RepoRef{Name: "tools", Branch: "master"}, GroupedPackages{"test": setOf(rack)})
	if agg.Production().Has(rack.Key()) {
		t.Fatal("test-only package reached the production set")
	}
	agg.Fold(RepoRef{Name: "shop", Branch: "master"}, GroupedPackages{"default": setOf(rack)})

	if !agg.Production().Has(rack.Key()) || !agg.Internal().Has(rack.Key()) {
		t.Error("package should be in both sets")
	}
	if got := agg.Usage().Users(rack.Key()); !reflect.DeepEqual(got, []string{"shop/master", "tools/master"}) {
		t.Errorf("users = %v", got)
	}
}

func TestAggregator_OrderIndependent(t *testing.T) {
	a, b, c := pkg("a", "1.0"), pkg("b", "1.0"), pkg("c", "1.0")
	folds := []struct {
		repo   RepoRef
		groups GroupedPackages
	}{
		{RepoRef{Name: "x", Branch: "master"}, GroupedPackages{"default": setOf(a), "test": setOf(b)}},
		{RepoRef{Name: "y", Branch: "release"}, GroupedPackages{"default": setOf(b, c)}},
		{RepoRef{Name: "z", Branch: "develop"}, GroupedPackages{"development": setOf(a, c)}},
	}

	forward, backward := NewAggregator("", nil), NewAggregator("", nil)
	for _, f := range folds {
		forward.Fold(f.repo, f.groups)
	}
	for i := len(folds) - 1; i >= 0; i-- {
		backward.Fold(folds[i].repo, folds[i].groups)
	}

	if !reflect.DeepEqual(forward.Production().Keys(), backward.Production().Keys()) {
		t.Error("production set depends on fold order")
	}
	if !reflect.DeepEqual(forward.Internal().Keys(), backward.Internal().Keys()) {
		t.Error("internal set depends on fold order")
	}
	if !reflect.DeepEqual(forward.Usage().All(), backward.Usage().All()) {
		t.Error("usage index depends on fold order")
	}
}

func setOf(packages ...*Package) *PackageSet {
	s := NewPackageSet()
	for _, p := range packages {
		s.Add(p)
	}
	return s
}
