package audit

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fossaudit/pkg/deps"
	"github.com/matzehuels/fossaudit/pkg/observability"
)

// DefaultRef is read when a package's source ref is unknown.
const DefaultRef = "master"

var (
	licenseFile   = regexp.MustCompile(`(?i)licen[sc]e`)
	candidateFile = regexp.MustCompile(`(?i)(licen[sc]e|readme)`)
)

// licensePatterns extract a license name from license or readme text.
// Order matters: for each file the first pattern that matches wins.
var licensePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)released\s+under\s+the\s+(?:terms\s+of\s+the\s+)?([\w.\-+ ]+?)\s+licen[sc]e`),
	regexp.MustCompile(`(?i)licensed\s+under\s+the\s+(?:terms\s+of\s+the\s+)?([\w.\-+ ]+?)\s+licen[sc]e`),
	regexp.MustCompile(`(?i)under\s+the\s+terms\s+of\s+the\s+([\w.\-+ ]+?)\s+licen[sc]e`),
	regexp.MustCompile(`(?im)^[ \t#*=]*(?:the[ \t]+)?(\w[\w.\-+]*(?:[ \t]+\w[\w.\-+]*){0,3})[ \t]+licen[sc]e(?:[ \t]*\([\w.\-+ ]+\))?[ \t#*=]*$`),
	regexp.MustCompile(`(?i)\b(MIT|ISC|BSD(?:[\w\-. ]*?\d)?|Apache(?:[\w\-. ]*?\d(?:\.\d)?)?|[AL]?GPL[\w\-.]*|MPL[\w\-.]*|Ruby|Artistic(?:[\w\-. ]*?\d(?:\.\d)?)?)\s+licen[sc]e`),
	regexp.MustCompile(`(?i)licen[sc]e\s*[:=]\s*["']?([\w.\-+]+)`),
}

// ExtractLicense runs the pattern cascade over text and returns the trimmed
// capture of the first matching pattern.
func ExtractLicense(text string) (string, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, re := range licensePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s, true
			}
			return "", false
		}
	}
	return "", false
}

// LicenseInferrer works out the license of a package: from the registry
// when it declares one, else from license and readme files in the
// package's source repository.
type LicenseInferrer struct {
	Hosting    Hosting       // Reads source repositories; nil disables the file fallback
	Registry   deps.Registry // Registry metadata; nil skips the registry step
	DefaultRef string        // Ref used when the package has none (default "master")
	Logger     *log.Logger

	// FromRegistry limits registry lookups to packages whose source is the
	// registry. Nil looks every package up.
	FromRegistry func(source string) bool
}

// License returns the package's license. Inference runs once per package;
// later calls return the memoized result. Retrieval failures are logged and
// yield an empty result, never an error.
func (li *LicenseInferrer) License(ctx context.Context, p *Package) LicenseInfo {
	p.inferMu.Lock()
	defer p.inferMu.Unlock()

	if info, ok := p.CachedLicense(); ok {
		return info
	}
	start := time.Now()
	info := li.infer(ctx, p)
	if ctx.Err() == nil {
		p.SetLicense(info)
		observability.Audit().OnLicenseComplete(ctx, p.Key().String(), len(info.Licenses) > 0, time.Since(start))
	}
	return info
}

func (li *LicenseInferrer) infer(ctx context.Context, p *Package) LicenseInfo {
	logger := orDiscard(li.Logger).With("package", p.Key().String())

	if li.Registry != nil && fromRegistry(li.FromRegistry, p.Source) {
		reg, err := li.Registry.Info(ctx, p.Name)
		if err != nil {
			logger.Debug("registry lookup failed", "err", err)
		}
		if l := reg.LicensesFor(p.Version); len(l) > 0 {
			return LicenseInfo{Licenses: dedupe(l)}
		}
	}

	if li.Hosting == nil || p.SourceURL == "" {
		return LicenseInfo{}
	}
	owner, repo, ok := li.Hosting.ParseRepoURL(p.SourceURL)
	if !ok {
		logger.Debug("source url not on a known host", "url", p.SourceURL)
		return LicenseInfo{}
	}
	ref := p.SourceRef
	if ref == "" {
		ref = li.defaultRef()
	}

	entries, err := li.Hosting.ListTree(ctx, owner, repo, ref)
	if err != nil {
		logger.Warn("listing source repository failed", "repo", owner+"/"+repo, "ref", ref, "err", err)
		return LicenseInfo{}
	}

	var info LicenseInfo
	for _, e := range entries {
		name := path.Base(e.Path)
		if (e.Type != "" && e.Type != "blob") || !candidateFile.MatchString(name) {
			continue
		}
		data, err := li.Hosting.FetchFile(ctx, owner, repo, e.Path, ref)
		if err != nil {
			logger.Debug("fetching license candidate failed", "file", e.Path, "err", err)
			continue
		}
		if license, ok := ExtractLicense(string(data)); ok {
			info.Licenses = append(info.Licenses, license)
		} else if licenseFile.MatchString(name) {
			info.URL = li.Hosting.FileURL(owner, repo, ref, e.Path)
		}
	}
	info.Licenses = dedupe(info.Licenses)
	if len(info.Licenses) == 0 && info.URL == "" {
		logger.Debug("no license found")
	}
	return info
}

func fromRegistry(pred func(string) bool, source string) bool {
	return pred == nil || pred(source)
}

func (li *LicenseInferrer) defaultRef() string {
	if li.DefaultRef != "" {
		return li.DefaultRef
	}
	return DefaultRef
}

func dedupe(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
