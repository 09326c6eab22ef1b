package ruby

import (
	"reflect"
	"testing"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

func TestGemfile_Filename(t *testing.T) {
	if got := (Gemfile{}).Filename(); got != "Gemfile" {
		t.Errorf("Filename() = %q, want Gemfile", got)
	}
}

func TestGemfile_ParseManifest(t *testing.T) {
	content := `source 'https://rubygems.org'

# Web framework
gem 'rails', '~> 7.0'
gem "puma", ">= 5.0", "< 7"
gem 'rails'  # duplicate should be ignored
# gem 'commented_out'
gemspec

group :development, :test do
  gem 'rspec-rails'
  gem 'factory_bot_rails', require: false
end

group :test do
  gem 'capybara', group: :integration
end

gem 'pry', groups: [:development, :console]
gem 'rubocop', :group => :development
gem 'debug', group: %w[development test]

gem 'widgets', git: 'git@github.com:acme/widgets.git',
               branch: 'develop'
gem 'pinned', git: 'git@github.com:acme/pinned.git', tag: 'v1.2'
gem 'hub', github: 'acme/hub'
gem 'local', path: 'vendor/gems/local'

source 'https://gems.acme.io' do
  gem 'private_gem'
end

git 'git@github.com:acme/suite.git', ref: 'abc123' do
  gem 'suite_core'
end

platforms :jruby do
  gem 'jruby-openssl'
end

if ENV['EXTRA']
  gem 'extra'
end

gem 'modern', '>= 1' if RUBY_VERSION >= "3"
`

	got, err := Gemfile{}.ParseManifest([]byte(content))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	want := []deps.DeclaredDependency{
		{Name: "rails", Constraint: "~> 7.0", Groups: []string{"default"}},
		{Name: "puma", Constraint: ">= 5.0, < 7", Groups: []string{"default"}},
		{Name: "rspec-rails", Groups: []string{"development", "test"}},
		{Name: "factory_bot_rails", Groups: []string{"development", "test"}},
		{Name: "capybara", Groups: []string{"test", "integration"}},
		{Name: "pry", Groups: []string{"development", "console"}},
		{Name: "rubocop", Groups: []string{"development"}},
		{Name: "debug", Groups: []string{"development", "test"}},
		{Name: "widgets", Groups: []string{"default"}, Source: "git@github.com:acme/widgets.git (at develop)"},
		{Name: "pinned", Groups: []string{"default"}, Source: "git@github.com:acme/pinned.git (at v1.2)"},
		{Name: "hub", Groups: []string{"default"}, Source: "https://github.com/acme/hub.git (at master)"},
		{Name: "local", Groups: []string{"default"}, Source: "source at `vendor/gems/local`"},
		{Name: "private_gem", Groups: []string{"default"}, Source: "rubygems repository https://gems.acme.io"},
		{Name: "suite_core", Groups: []string{"default"}, Source: "git@github.com:acme/suite.git (at abc123)"},
		{Name: "jruby-openssl", Groups: []string{"default"}},
		{Name: "extra", Groups: []string{"default"}},
		{Name: "modern", Constraint: ">= 1", Groups: []string{"default"}},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d gems, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("gem %d:\n got  %+v\n want %+v", i, got[i], want[i])
		}
	}
}

func TestGemfile_ParseManifest_Empty(t *testing.T) {
	got, err := Gemfile{}.ParseManifest(nil)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no gems, got %v", got)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`'a', 'b'`, []string{`'a'`, `'b'`}},
		{`'a', group: [:x, :y]`, []string{`'a'`, `group: [:x, :y]`}},
		{`'a,b', "c"`, []string{`'a,b'`, `"c"`}},
		{``, nil},
	}

	for _, tt := range tests {
		if got := splitArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`:test`, []string{"test"}},
		{`"test"`, []string{"test"}},
		{`[:development, "test"]`, []string{"development", "test"}},
		{`%w[development test]`, []string{"development", "test"}},
		{`%i(ci)`, []string{"ci"}},
	}

	for _, tt := range tests {
		if got := list(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("list(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
