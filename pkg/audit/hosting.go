package audit

import (
	"context"

	"github.com/matzehuels/fossaudit/pkg/integrations"
)

// Hosting reads repositories on a source hosting service.
//
// FetchFile and ListTree return an error wrapping [integrations.ErrNotFound]
// when the repository, ref or file does not exist.
type Hosting interface {
	FetchFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
	ListTree(ctx context.Context, owner, repo, ref string) ([]integrations.TreeEntry, error)

	// ParseRepoURL extracts owner and repository name from a hosting URL.
	ParseRepoURL(url string) (owner, repo string, ok bool)
	// ParseSource turns a lockfile source descriptor into a browsable URL
	// and a ref, when the descriptor points at this host.
	ParseSource(source string) (url, ref string, ok bool)
	// FileURL links to a file at a ref.
	FileURL(owner, repo, ref, path string) string
}

// Committer is implemented by hosts that can tell who last changed a file.
type Committer interface {
	LastCommitter(ctx context.Context, owner, repo, path, ref string) (string, error)
}
