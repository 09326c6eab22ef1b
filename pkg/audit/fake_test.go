package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/matzehuels/fossaudit/pkg/deps"
	"github.com/matzehuels/fossaudit/pkg/integrations"
	"github.com/matzehuels/fossaudit/pkg/integrations/github"
)

// fakeHosting serves files and trees from memory and counts calls.
type fakeHosting struct {
	mu         sync.Mutex
	files      map[string]string // "owner/repo@ref:path"
	trees      map[string][]integrations.TreeEntry
	committers map[string]string // "owner/repo@ref:path"
	fileCalls  int
	treeCalls  int
}

func newFakeHosting() *fakeHosting {
	return &fakeHosting{
		files:      map[string]string{},
		trees:      map[string][]integrations.TreeEntry{},
		committers: map[string]string{},
	}
}

func (h *fakeHosting) addFile(owner, repo, ref, path, content string) {
	h.files[fmt.Sprintf("%s/%s@%s:%s", owner, repo, ref, path)] = content
	key := fmt.Sprintf("%s/%s@%s", owner, repo, ref)
	h.trees[key] = append(h.trees[key], integrations.TreeEntry{Path: path, Type: "blob"})
}

func (h *fakeHosting) FetchFile(_ context.Context, owner, repo, path, ref string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fileCalls++
	content, ok := h.files[fmt.Sprintf("%s/%s@%s:%s", owner, repo, ref, path)]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return []byte(content), nil
}

func (h *fakeHosting) ListTree(_ context.Context, owner, repo, ref string) ([]integrations.TreeEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.treeCalls++
	entries, ok := h.trees[fmt.Sprintf("%s/%s@%s", owner, repo, ref)]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return entries, nil
}

func (h *fakeHosting) LastCommitter(_ context.Context, owner, repo, path, ref string) (string, error) {
	who, ok := h.committers[fmt.Sprintf("%s/%s@%s:%s", owner, repo, ref, path)]
	if !ok {
		return "", integrations.ErrNotFound
	}
	return who, nil
}

func (h *fakeHosting) ParseRepoURL(url string) (string, string, bool) { return github.ParseRepoURL(url) }
func (h *fakeHosting) ParseSource(s string) (string, string, bool)    { return github.ParseSource(s) }
func (h *fakeHosting) FileURL(owner, repo, ref, path string) string {
	return github.FileURL(owner, repo, ref, path)
}

func (h *fakeHosting) calls() (files, trees int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fileCalls, h.treeCalls
}

// fakeRegistry answers from a map and counts lookups per name.
type fakeRegistry struct {
	mu    sync.Mutex
	infos map[string]*deps.RegistryInfo
	calls map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{infos: map[string]*deps.RegistryInfo{}, calls: map[string]int{}}
}

func (r *fakeRegistry) Info(_ context.Context, name string) (*deps.RegistryInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
	info, ok := r.infos[name]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return info, nil
}

func (r *fakeRegistry) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

// recordingWriter keeps rows per sheet.
type recordingWriter struct {
	headers map[string][]string
	rows    map[string][][]any
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{headers: map[string][]string{}, rows: map[string][][]any{}}
}

func (w *recordingWriter) AddHeader(sheet string, titles []string) error {
	w.headers[sheet] = titles
	return nil
}

func (w *recordingWriter) EmitRow(sheet string, values []any) error {
	if _, ok := w.headers[sheet]; !ok {
		return fmt.Errorf("row before header in %s", sheet)
	}
	w.rows[sheet] = append(w.rows[sheet], values)
	return nil
}

func (w *recordingWriter) names(sheet string) []string {
	var out []string
	for _, row := range w.rows[sheet] {
		out = append(out, fmt.Sprintf("%s@%s", row[0], row[1]))
	}
	return out
}
