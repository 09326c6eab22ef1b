package ruby

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

// Lockfile parses Gemfile.lock files written by Bundler.
type Lockfile struct{}

func (Lockfile) Filename() string { return "Gemfile.lock" }

var (
	specLine    = regexp.MustCompile(`^    ([^\s(]+) \(([^)]+)\)$`)
	subdepLine  = regexp.MustCompile(`^      ([^\s(]+)(?: \(.*\))?$`)
	settingLine = regexp.MustCompile(`^  (\w+): (.*)$`)
)

type lockSection struct {
	kind     string
	settings map[string]string
}

func (s *lockSection) source() string {
	remote := s.settings["remote"]
	switch s.kind {
	case "GEM":
		return rubygemsSource(remote)
	case "GIT":
		return gitSource(remote, s.settings)
	case "PATH":
		return pathSource(remote)
	default:
		return ""
	}
}

func (s *lockSection) revision() string {
	if s.kind != "GIT" {
		return ""
	}
	return s.settings["revision"]
}

// ParseLockfile returns every spec of the GEM, GIT and PATH sections in file
// order. Platform suffixes are dropped from versions, so a gem locked for
// several platforms appears once. Lines it does not understand are skipped.
func (Lockfile) ParseLockfile(data []byte) ([]deps.ResolvedSpec, error) {
	var (
		specs   []deps.ResolvedSpec
		section *lockSection
		current = -1
		seen    = make(map[string]bool)
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \r")
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, " ") {
			current = -1
			switch line {
			case "GEM", "GIT", "PATH":
				section = &lockSection{kind: line, settings: map[string]string{}}
			default:
				section = nil
			}
			continue
		}
		if section == nil {
			continue
		}

		if m := settingLine.FindStringSubmatch(line); m != nil {
			section.settings[m[1]] = m[2]
			continue
		}
		if m := specLine.FindStringSubmatch(line); m != nil {
			current = -1
			if seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			specs = append(specs, deps.ResolvedSpec{
				Name:     m[1],
				Version:  stripPlatform(m[2]),
				Source:   section.source(),
				Revision: section.revision(),
			})
			current = len(specs) - 1
			continue
		}
		if m := subdepLine.FindStringSubmatch(line); m != nil {
			if current >= 0 {
				specs[current].Dependencies = append(specs[current].Dependencies, m[1])
			}
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

// stripPlatform turns "1.10.0-x86_64-linux" into "1.10.0". Ruby prereleases
// use dots, so a dash always starts the platform.
func stripPlatform(v string) string {
	if i := strings.IndexByte(v, '-'); i > 0 {
		return v[:i]
	}
	return v
}
