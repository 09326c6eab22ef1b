package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/matzehuels/fossaudit/pkg/integrations"
	"github.com/matzehuels/fossaudit/pkg/integrations/github"
)

// Client serves repository content from bare clones under a directory.
type Client struct {
	dir    string
	auth   transport.AuthMethod
	logger *log.Logger

	// URL returns the clone URL of owner/repo. Defaults to GitHub over HTTPS.
	URL func(owner, repo string) string

	mu    sync.Mutex
	repos map[string]*handle
}

type handle struct {
	mu   sync.Mutex
	repo *git.Repository
	err  error
	done bool
}

// NewClient clones into dir. A non-empty token is sent as HTTP basic auth.
func NewClient(dir, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Client{
		dir:    dir,
		logger: logger,
		URL:    defaultURL,
		repos:  make(map[string]*handle),
	}
	if token != "" {
		c.auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}
	return c
}

func defaultURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo + ".git"
}

// open returns the locked handle of owner/repo, cloning or fetching it on
// first use. The caller must unlock h.mu.
func (c *Client) open(ctx context.Context, owner, repo string) (*handle, error) {
	key := owner + "/" + repo
	c.mu.Lock()
	h, ok := c.repos[key]
	if !ok {
		h = &handle{}
		c.repos[key] = h
	}
	c.mu.Unlock()

	h.mu.Lock()
	if !h.done {
		h.repo, h.err = c.sync(ctx, owner, repo)
		// a cancelled sync is retried by the next caller
		h.done = ctx.Err() == nil
	}
	if h.err != nil {
		h.mu.Unlock()
		return nil, h.err
	}
	return h, nil
}

func (c *Client) sync(ctx context.Context, owner, repo string) (*git.Repository, error) {
	path := filepath.Join(c.dir, owner, repo+".git")
	logger := c.logger.With("repo", owner+"/"+repo)

	if r, err := git.PlainOpen(path); err == nil {
		err := r.FetchContext(ctx, &git.FetchOptions{
			RemoteName: "origin",
			Auth:       c.auth,
			Tags:       git.AllTags,
			Force:      true,
		})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			return r, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Debug("fetch failed, recloning", "err", err)
		_ = os.RemoveAll(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	logger.Debug("cloning")
	r, err := git.PlainCloneContext(ctx, path, true, &git.CloneOptions{
		URL:  c.URL(owner, repo),
		Auth: c.auth,
		Tags: git.AllTags,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, cloneError(owner, repo, err)
	}
	return r, nil
}

func cloneError(owner, repo string, err error) error {
	switch {
	case errors.Is(err, transport.ErrRepositoryNotFound), errors.Is(err, transport.ErrEmptyRemoteRepository):
		return fmt.Errorf("%w: %s/%s", integrations.ErrNotFound, owner, repo)
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %s/%s", integrations.ErrUnauthorized, owner, repo)
	default:
		return fmt.Errorf("%w: clone %s/%s: %v", integrations.ErrNetwork, owner, repo, err)
	}
}

// commit resolves ref as a remote branch, local branch, tag, then any
// revision git understands.
func commit(r *git.Repository, ref string) (*object.Commit, error) {
	if ref == "" {
		ref = "HEAD"
	}
	candidates := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName("origin", ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, name := range candidates {
		if reference, err := r.Reference(name, true); err == nil {
			return commitAt(r, reference.Hash())
		}
	}
	if hash, err := r.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return commitAt(r, *hash)
	}
	return nil, fmt.Errorf("%w: ref %s", integrations.ErrNotFound, ref)
}

// commitAt peels annotated tags down to their commit.
func commitAt(r *git.Repository, hash plumbing.Hash) (*object.Commit, error) {
	if tag, err := r.TagObject(hash); err == nil {
		return tag.Commit()
	}
	return r.CommitObject(hash)
}

// FetchFile returns path at ref.
func (c *Client) FetchFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	h, err := c.open(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	defer h.mu.Unlock()

	cm, err := commit(h.repo, ref)
	if err != nil {
		return nil, err
	}
	f, err := cm.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", integrations.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	text, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// ListTree lists the root entries at ref.
func (c *Client) ListTree(ctx context.Context, owner, repo, ref string) ([]integrations.TreeEntry, error) {
	h, err := c.open(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	defer h.mu.Unlock()

	cm, err := commit(h.repo, ref)
	if err != nil {
		return nil, err
	}
	tree, err := cm.Tree()
	if err != nil {
		return nil, err
	}
	entries := make([]integrations.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entry := integrations.TreeEntry{Path: e.Name, Type: "tree"}
		if e.Mode.IsFile() {
			entry.Type = "blob"
			if blob, err := h.repo.BlobObject(e.Hash); err == nil {
				entry.Size = int(blob.Size)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LastCommitter returns the author name of the newest commit touching path.
func (c *Client) LastCommitter(ctx context.Context, owner, repo, path, ref string) (string, error) {
	h, err := c.open(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	defer h.mu.Unlock()

	cm, err := commit(h.repo, ref)
	if err != nil {
		return "", err
	}
	iter, err := h.repo.Log(&git.LogOptions{From: cm.Hash, FileName: &path})
	if err != nil {
		return "", err
	}
	defer iter.Close()
	last, err := iter.Next()
	if err != nil {
		return "", fmt.Errorf("%w: no commits for %s", integrations.ErrNotFound, path)
	}
	return last.Author.Name, nil
}

// ParseRepoURL extracts owner and repository from a GitHub URL.
func (c *Client) ParseRepoURL(raw string) (string, string, bool) {
	return github.ParseRepoURL(raw)
}

// ParseSource turns a git source descriptor into a tree URL and ref.
func (c *Client) ParseSource(source string) (string, string, bool) {
	return github.ParseSource(source)
}

// FileURL returns the browsable URL of path at ref.
func (c *Client) FileURL(owner, repo, ref, path string) string {
	return github.FileURL(owner, repo, ref, path)
}
