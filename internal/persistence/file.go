package persistence

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocp/domain/core"
	"gocp/domain/snapshot"
	"gocp/internal/errors"
)

// FileRepository keeps snapshots in a directory, one JSON file per snapshot.
type FileRepository struct {
	BaseDir string
}

// NewFileRepository creates a repository rooted at baseDir.
func NewFileRepository(baseDir string) *FileRepository {
	return &FileRepository{BaseDir: baseDir}
}

// EnsureBaseDir creates the base directory if it doesn't exist
func (r *FileRepository) EnsureBaseDir() error {
	return os.MkdirAll(r.BaseDir, 0755)
}

// Put writes snap to <BaseDir>/<id>.json.
func (r *FileRepository) Put(_ context.Context, snap snapshot.Snapshot) error {
	if err := r.EnsureBaseDir(); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}
	f, err := os.Create(r.path(snap.ID))
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()
	if err := Encode(f, snap); err != nil {
		return err
	}
	return f.Close()
}

// Get reads one snapshot.
func (r *FileRepository) Get(_ context.Context, id core.ID) (snapshot.Snapshot, error) {
	snap, err := readFile(r.path(id))
	if stderrors.Is(err, os.ErrNotExist) {
		return snapshot.Snapshot{}, errors.Wrap(core.NewNotFoundError(core.ErrSnapshotNotFound, id.String()), "failed to load snapshot")
	}
	return snap, err
}

// List returns the snapshots in the directory, newest first. Unreadable
// files are skipped.
func (r *FileRepository) List(_ context.Context) ([]snapshot.Snapshot, error) {
	entries, err := os.ReadDir(r.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var out []snapshot.Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		snap, err := readFile(filepath.Join(r.BaseDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a snapshot file.
func (r *FileRepository) Delete(_ context.Context, id core.ID) error {
	if err := os.Remove(r.path(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(core.NewNotFoundError(core.ErrSnapshotNotFound, id.String()), "failed to delete snapshot")
		}
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	return nil
}

func (r *FileRepository) path(id core.ID) string {
	return filepath.Join(r.BaseDir, id.String()+".json")
}

func readFile(path string) (snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
