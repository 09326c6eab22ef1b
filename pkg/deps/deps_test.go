package deps

import (
	"reflect"
	"testing"
)

func TestNewSpecIndex(t *testing.T) {
	idx := NewSpecIndex([]ResolvedSpec{
		{Name: "rack", Version: "2.2.8"},
		{Name: "rails", Version: "7.1.0", Dependencies: []string{"rack"}},
	})
	if len(idx) != 2 {
		t.Fatalf("len = %d, want 2", len(idx))
	}
	if idx["rails"].Version != "7.1.0" {
		t.Errorf("rails version = %q", idx["rails"].Version)
	}
	if _, ok := idx["missing"]; ok {
		t.Error("unexpected entry for missing name")
	}
}

func TestRegistryInfo_LicensesFor(t *testing.T) {
	info := &RegistryInfo{
		Licenses: []string{"MIT"},
		LicensesByVersion: map[string][]string{
			"2.0": {"Apache-2.0", " "},
			"1.0": {""},
		},
	}

	tests := []struct {
		version string
		want    []string
	}{
		{"2.0", []string{"Apache-2.0"}},
		{"1.0", []string{"MIT"}},
		{"unknown", []string{"MIT"}},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := info.LicensesFor(tt.version); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LicensesFor(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}

	var nilInfo *RegistryInfo
	if got := nilInfo.LicensesFor("1.0"); got != nil {
		t.Errorf("nil info LicensesFor = %v", got)
	}
	if got := (&RegistryInfo{Licenses: []string{"", "  "}}).LicensesFor("1.0"); len(got) != 0 {
		t.Errorf("blank licenses should be dropped, got %v", got)
	}
}

func TestRegistryInfo_DownloadsFor(t *testing.T) {
	info := &RegistryInfo{DownloadsByVersion: map[string]int{"1.0": 42}}
	if n, ok := info.DownloadsFor("1.0"); !ok || n != 42 {
		t.Errorf("DownloadsFor(1.0) = %d, %v", n, ok)
	}
	if _, ok := info.DownloadsFor("2.0"); ok {
		t.Error("DownloadsFor(2.0) should be absent")
	}
	var nilInfo *RegistryInfo
	if _, ok := nilInfo.DownloadsFor("1.0"); ok {
		t.Error("nil info should report absent")
	}
}
