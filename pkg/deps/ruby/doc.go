// Package ruby reads Bundler projects.
//
// [Gemfile] parses the declared gems of a Gemfile with their groups and
// sources; [Lockfile] parses the exact versions Bundler resolved into
// Gemfile.lock. Both produce Bundler's source descriptors:
//
//	rubygems repository https://rubygems.org/
//	git@github.com:acme/widgets.git (at master)
//	source at `vendor/gems/local`
//
// [Registry] looks gems up on RubyGems.org and reports per-version
// licenses and download counts. [Ecosystem] ties the three together.
package ruby
