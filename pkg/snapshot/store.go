package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store saves snapshots and loads the most recent one per organization.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Latest(ctx context.Context, org string) (*Snapshot, error)
	Close(ctx context.Context) error
}

const timeLayout = "20060102T150405.000000000Z"

// FileStore keeps each snapshot as a JSON file under Dir/<org>/.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) orgDir(org string) string {
	if org == "" {
		org = "_"
	}
	return filepath.Join(f.dir, strings.ReplaceAll(org, string(filepath.Separator), "_"))
}

// Save writes s atomically and returns once the file is in place.
func (f *FileStore) Save(_ context.Context, s *Snapshot) error {
	dir := f.orgDir(s.Org)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	name := s.CreatedAt.UTC().Format(timeLayout) + "-" + s.RunID + ".json"
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

// Latest loads the newest snapshot of org.
func (f *FileStore) Latest(_ context.Context, org string) (*Snapshot, error) {
	entries, err := os.ReadDir(f.orgDir(org))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrNotFound
	}
	sort.Strings(names)
	return Load(filepath.Join(f.orgDir(org), names[len(names)-1]))
}

func (f *FileStore) Close(context.Context) error { return nil }

// Load reads one snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}
