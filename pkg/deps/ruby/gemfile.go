package ruby

import (
	"bufio"
	"bytes"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

// Gemfile parses Bundler Gemfiles into declared dependencies with their
// groups and sources. Ruby is not evaluated; the parser understands the
// declarative subset real Gemfiles are written in.
type Gemfile struct{}

func (Gemfile) Filename() string { return "Gemfile" }

var (
	gemPattern      = regexp.MustCompile(`^gem[\s(]+(.*?)\)?$`)
	groupPattern    = regexp.MustCompile(`^group[\s(]+(.*?)\)?\s+do(\s*\|.*\|)?$`)
	sourceBlock     = regexp.MustCompile(`^source[\s(]+(.*?)\)?\s+do(\s*\|.*\|)?$`)
	gitBlock        = regexp.MustCompile(`^git[\s(]+(.*?)\)?\s+do(\s*\|.*\|)?$`)
	pathBlock       = regexp.MustCompile(`^path[\s(]+(.*?)\)?\s+do(\s*\|.*\|)?$`)
	blockOpener     = regexp.MustCompile(`(^|\s)do(\s*\|.*\|)?$`)
	statementOpener = regexp.MustCompile(`^(if|unless|case|begin|while|until|def|class|module)\b`)
	optionPattern   = regexp.MustCompile(`^(\w+):\s*(.+)$`)
	hashRocket      = regexp.MustCompile(`^:(\w+)\s*=>\s*(.+)$`)
	modifierPattern = regexp.MustCompile(`\s+(if|unless)\s+.*$`)
)

// frame is one open block. Groups and source apply to every gem inside it.
type frame struct {
	groups []string
	source string
}

// ParseManifest returns the Gemfile's gems in declaration order. A gem
// declared twice keeps its first declaration.
func (Gemfile) ParseManifest(data []byte) ([]deps.DeclaredDependency, error) {
	var (
		result []deps.DeclaredDependency
		stack  []frame
		seen   = make(map[string]bool)
	)

	for _, line := range logicalLines(data) {
		switch {
		case line == "end":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case groupPattern.MatchString(line):
			args := splitArgs(groupPattern.FindStringSubmatch(line)[1])
			var groups []string
			for _, a := range args {
				if isOption(a) {
					continue
				}
				groups = append(groups, scalar(a))
			}
			stack = append(stack, frame{groups: groups})
		case sourceBlock.MatchString(line):
			args := splitArgs(sourceBlock.FindStringSubmatch(line)[1])
			stack = append(stack, frame{source: rubygemsSource(firstScalar(args))})
		case gitBlock.MatchString(line):
			args := splitArgs(gitBlock.FindStringSubmatch(line)[1])
			opts := options(args)
			stack = append(stack, frame{source: gitSource(firstScalar(args), opts)})
		case pathBlock.MatchString(line):
			args := splitArgs(pathBlock.FindStringSubmatch(line)[1])
			stack = append(stack, frame{source: pathSource(firstScalar(args))})
		case gemPattern.MatchString(line):
			dep, ok := parseGem(gemPattern.FindStringSubmatch(line)[1], stack)
			if ok && !seen[dep.Name] {
				seen[dep.Name] = true
				result = append(result, dep)
			}
			if blockOpener.MatchString(line) {
				stack = append(stack, frame{})
			}
		case blockOpener.MatchString(line), statementOpener.MatchString(line):
			stack = append(stack, frame{})
		}
	}
	return result, nil
}

func parseGem(raw string, stack []frame) (deps.DeclaredDependency, bool) {
	raw = blockOpener.ReplaceAllString(raw, "")
	raw = modifierPattern.ReplaceAllString(raw, "")
	args := splitArgs(raw)
	if len(args) == 0 || !isQuoted(args[0]) {
		return deps.DeclaredDependency{}, false
	}

	dep := deps.DeclaredDependency{Name: unquote(args[0])}
	var constraints []string
	for _, a := range args[1:] {
		if isOption(a) {
			break
		}
		if isQuoted(a) {
			constraints = append(constraints, unquote(a))
		}
	}
	dep.Constraint = strings.Join(constraints, ", ")

	var groups []string
	for _, f := range stack {
		groups = append(groups, f.groups...)
		if f.source != "" {
			dep.Source = f.source
		}
	}

	opts := options(args[1:])
	if v, ok := opts["groups"]; ok {
		groups = append(groups, list(v)...)
	} else if v, ok := opts["group"]; ok {
		groups = append(groups, list(v)...)
	}
	switch {
	case opts["git"] != "":
		dep.Source = gitSource(scalar(opts["git"]), opts)
	case opts["github"] != "":
		dep.Source = gitSource("https://github.com/"+scalar(opts["github"])+".git", opts)
	case opts["path"] != "":
		dep.Source = pathSource(scalar(opts["path"]))
	case opts["source"] != "":
		dep.Source = rubygemsSource(scalar(opts["source"]))
	}

	if len(groups) == 0 {
		groups = []string{deps.DefaultGroup}
	}
	dep.Groups = dedupe(groups)
	return dep, true
}

// logicalLines strips comments and joins continuation lines (trailing
// comma or backslash) so each declaration is one line.
func logicalLines(data []byte) []string {
	var (
		lines   []string
		pending string
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		if pending != "" {
			line = pending + " " + line
			pending = ""
		}
		if strings.HasSuffix(line, ",") || strings.HasSuffix(line, `\`) {
			pending = strings.TrimSuffix(line, `\`)
			continue
		}
		lines = append(lines, line)
	}
	if pending != "" {
		lines = append(lines, strings.TrimSuffix(pending, ","))
	}
	return lines
}

func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}

// splitArgs splits on commas outside quotes and brackets.
func splitArgs(s string) []string {
	var (
		args  []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(' || r == '{':
			depth++
		case r == ']' || r == ')' || r == '}':
			depth--
		case r == ',' && depth == 0:
			if a := strings.TrimSpace(s[start:i]); a != "" {
				args = append(args, a)
			}
			start = i + 1
		}
	}
	if a := strings.TrimSpace(s[start:]); a != "" {
		args = append(args, a)
	}
	return args
}

func isOption(arg string) bool {
	return optionPattern.MatchString(arg) || hashRocket.MatchString(arg)
}

func options(args []string) map[string]string {
	opts := make(map[string]string)
	for _, a := range args {
		if m := optionPattern.FindStringSubmatch(a); m != nil {
			opts[m[1]] = strings.TrimSpace(m[2])
		} else if m := hashRocket.FindStringSubmatch(a); m != nil {
			opts[m[1]] = strings.TrimSpace(m[2])
		}
	}
	return opts
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// scalar reads a quoted string or a symbol.
func scalar(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return unquote(s)
	}
	return strings.TrimPrefix(s, ":")
}

func firstScalar(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return scalar(args[0])
}

// list reads a scalar, an array literal or a %w/%i word list.
func list(s string) []string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "["):
		var out []string
		for _, a := range splitArgs(strings.Trim(s, "[]")) {
			out = append(out, scalar(a))
		}
		return out
	case strings.HasPrefix(s, "%w") || strings.HasPrefix(s, "%i"):
		return strings.Fields(strings.Trim(s[2:], "[](){}"))
	default:
		return []string{scalar(s)}
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func rubygemsSource(remote string) string {
	return "rubygems repository " + remote
}

func gitSource(remote string, opts map[string]string) string {
	return remote + " (at " + gitRef(opts) + ")"
}

func pathSource(path string) string {
	return "source at `" + path + "`"
}

// gitRef picks the ref Bundler displays: ref, then branch, then tag.
func gitRef(opts map[string]string) string {
	for _, k := range []string{"ref", "branch", "tag"} {
		if v := scalar(opts[k]); v != "" {
			return v
		}
	}
	return defaultGitRef
}
