package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/fossaudit/pkg/audit"
)

// ErrNotFound is returned when a store holds no snapshot for an organization.
var ErrNotFound = errors.New("snapshot: not found")

// PackageRecord is the stored form of one *audit.Package.
type PackageRecord struct {
	Name       string             `json:"name" bson:"name"`
	Version    string             `json:"version" bson:"version"`
	Source     string             `json:"source,omitempty" bson:"source,omitempty"`
	SourceURL  string             `json:"source_url,omitempty" bson:"source_url,omitempty"`
	SourceRef  string             `json:"source_ref,omitempty" bson:"source_ref,omitempty"`
	Downloads  *int               `json:"downloads,omitempty" bson:"downloads,omitempty"`
	License    *audit.LicenseInfo `json:"license,omitempty" bson:"license,omitempty"`
	Sub        []audit.Key        `json:"sub,omitempty" bson:"sub,omitempty"`
	Requesters map[string]string  `json:"requesters,omitempty" bson:"requesters,omitempty"`
}

// UsageRecord lists the repository branches using one package.
type UsageRecord struct {
	Package audit.Key `json:"package" bson:"package"`
	Users   []string  `json:"users" bson:"users"`
}

// Snapshot is the stored state of one audit run.
type Snapshot struct {
	RunID           string          `json:"run_id" bson:"_id"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
	Org             string          `json:"org" bson:"org"`
	ProductionGroup string          `json:"production_group" bson:"production_group"`
	Packages        []PackageRecord `json:"packages" bson:"packages"`
	Production      []audit.Key     `json:"production" bson:"production"`
	Internal        []audit.Key     `json:"internal" bson:"internal"`
	Usage           []UsageRecord   `json:"usage" bson:"usage"`
	Included        []audit.RepoRef `json:"included,omitempty" bson:"included,omitempty"`
	Skipped         []audit.RepoRef `json:"skipped,omitempty" bson:"skipped,omitempty"`
}

// FromResult captures res. License results are included for packages
// whose inference already ran.
func FromResult(org string, res *audit.Result) *Snapshot {
	s := &Snapshot{
		RunID:           uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Org:             org,
		ProductionGroup: res.Aggregator.ProductionGroup,
		Production:      keys(res.Aggregator.Production().Packages()),
		Internal:        keys(res.Aggregator.Internal().Packages()),
		Included:        res.Included,
		Skipped:         res.Skipped,
	}
	for _, p := range res.Packages.All() {
		rec := PackageRecord{
			Name:      p.Name,
			Version:   p.Version,
			Source:    p.Source,
			SourceURL: p.SourceURL,
			SourceRef: p.SourceRef,
			Downloads: p.Downloads,
			Sub:       keys(p.Sub()),
		}
		if info, ok := p.CachedLicense(); ok {
			rec.License = &info
		}
		if r := p.Requesters(); len(r) > 0 {
			rec.Requesters = r
		}
		s.Packages = append(s.Packages, rec)
	}
	usage := res.Aggregator.Usage()
	for _, p := range res.Packages.All() {
		if users := usage.Users(p.Key()); len(users) > 0 {
			s.Usage = append(s.Usage, UsageRecord{Package: p.Key(), Users: users})
		}
	}
	return s
}

// Restore rebuilds the run state. It fails when the snapshot references a
// package it does not contain.
func Restore(s *Snapshot) (*audit.Result, error) {
	res := audit.NewResult(s.ProductionGroup)
	for _, rec := range s.Packages {
		p := res.Packages.Put(&audit.Package{
			Name:      rec.Name,
			Version:   rec.Version,
			Source:    rec.Source,
			SourceURL: rec.SourceURL,
			SourceRef: rec.SourceRef,
			Downloads: rec.Downloads,
		})
		if rec.License != nil {
			p.SetLicense(*rec.License)
		}
		for repo, who := range rec.Requesters {
			p.SetRequester(repo, who)
		}
	}

	lookup := func(k audit.Key) (*audit.Package, error) {
		p, ok := res.Packages.Get(k)
		if !ok {
			return nil, fmt.Errorf("snapshot %s: unknown package %s", s.RunID, k)
		}
		return p, nil
	}
	for _, rec := range s.Packages {
		p, _ := res.Packages.Get(audit.Key{Name: rec.Name, Version: rec.Version})
		for _, k := range rec.Sub {
			sub, err := lookup(k)
			if err != nil {
				return nil, err
			}
			p.Link(sub)
		}
	}
	for _, set := range []struct {
		keys   []audit.Key
		target *audit.PackageSet
	}{
		{s.Production, res.Aggregator.Production()},
		{s.Internal, res.Aggregator.Internal()},
	} {
		for _, k := range set.keys {
			p, err := lookup(k)
			if err != nil {
				return nil, err
			}
			set.target.Add(p)
		}
	}
	for _, u := range s.Usage {
		if _, err := lookup(u.Package); err != nil {
			return nil, err
		}
		for _, id := range u.Users {
			res.Aggregator.Usage().Record(u.Package, id)
		}
	}
	res.Included = s.Included
	res.Skipped = s.Skipped
	return res, nil
}

func keys(pkgs []*audit.Package) []audit.Key {
	out := make([]audit.Key, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.Key())
	}
	return out
}
