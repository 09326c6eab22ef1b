package audit

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fossaudit/pkg/deps"
)

// Reconcile pairs every declared dependency with the lockfile spec of the
// same name, in declaration order. Declared dependencies without a spec
// are logged and left out.
func Reconcile(repo RepoRef, declared []deps.DeclaredDependency, specs deps.SpecIndex, logger *log.Logger) []ResolvedDependency {
	logger = orDiscard(logger)

	out := make([]ResolvedDependency, 0, len(declared))
	for _, d := range declared {
		spec, ok := specs[d.Name]
		if !ok {
			logger.Warn("declared dependency missing from lockfile", "dependency", d.Name, "repo", repo.ID())
			continue
		}
		out = append(out, ResolvedDependency{Declared: d, Spec: spec})
	}
	return out
}

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
