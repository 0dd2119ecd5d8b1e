// Package trash implements soft deletion. Deleted files move into a holding
// area under the data dir instead of being unlinked, with a JSON metadata
// record per entry so they can be listed and restored.
package trash

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrEntryNotFound is returned for unknown trash entry IDs.
var ErrEntryNotFound = errors.New("trash: entry not found")

// Entry describes one trashed file.
type Entry struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"original_path"`
	TrashedAt    time.Time `json:"trashed_at"`
	Size         int64     `json:"size"`
}

// Trash is the holding area: <dir>/files/<id> plus <dir>/meta/<id>.json.
type Trash struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New creates the trash directories under dir.
func New(dir string, logger *slog.Logger) (*Trash, error) {
	for _, sub := range []string{"files", "meta"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("trash: create %s: %w", sub, err)
		}
	}
	return &Trash{
		dir:    dir,
		logger: logger.With("component", "trash"),
		now:    time.Now,
	}, nil
}

// Put moves path into the trash and returns the entry. originalPath is the
// caller-facing (sandbox-relative) name recorded for restore.
func (t *Trash) Put(path, originalPath string) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("trash: stat: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("trash: %q is a directory", originalPath)
	}

	e := &Entry{
		ID:           uuid.NewString(),
		OriginalPath: originalPath,
		TrashedAt:    t.now().UTC(),
		Size:         info.Size(),
	}
	dest := filepath.Join(t.dir, "files", e.ID)
	if err := moveFile(path, dest); err != nil {
		return nil, fmt.Errorf("trash: move: %w", err)
	}
	if err := t.writeMeta(e); err != nil {
		// Roll the file back so a metadata failure does not strand it.
		_ = moveFile(dest, path)
		return nil, err
	}
	t.logger.Info("file trashed", "id", e.ID, "path", originalPath)
	return e, nil
}

// List returns all entries, oldest first.
func (t *Trash) List() ([]*Entry, error) {
	metas, err := os.ReadDir(filepath.Join(t.dir, "meta"))
	if err != nil {
		return nil, fmt.Errorf("trash: list: %w", err)
	}
	var out []*Entry
	for _, m := range metas {
		if m.IsDir() || filepath.Ext(m.Name()) != ".json" {
			continue
		}
		e, err := t.readMeta(m.Name()[:len(m.Name())-len(".json")])
		if err != nil {
			t.logger.Warn("skipping unreadable trash meta", "file", m.Name(), "error", err)
			continue
		}
		out = append(out, e)
	}
	sortByTrashedAt(out)
	return out, nil
}

// Restore moves an entry back to destPath and removes it from the trash.
func (t *Trash) Restore(id, destPath string) (*Entry, error) {
	e, err := t.readMeta(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(destPath); err == nil {
		return nil, fmt.Errorf("trash: restore target %q already exists", destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("trash: restore: %w", err)
	}
	if err := moveFile(filepath.Join(t.dir, "files", id), destPath); err != nil {
		return nil, fmt.Errorf("trash: restore: %w", err)
	}
	_ = os.Remove(t.metaPath(id))
	t.logger.Info("file restored", "id", id, "path", destPath)
	return e, nil
}

// Purge permanently deletes entries older than age and returns the count.
func (t *Trash) Purge(age time.Duration) (int, error) {
	entries, err := t.List()
	if err != nil {
		return 0, err
	}
	cutoff := t.now().Add(-age)
	purged := 0
	for _, e := range entries {
		if e.TrashedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(t.dir, "files", e.ID)); err != nil && !os.IsNotExist(err) {
			return purged, fmt.Errorf("trash: purge %s: %w", e.ID, err)
		}
		_ = os.Remove(t.metaPath(e.ID))
		purged++
	}
	if purged > 0 {
		t.logger.Info("trash purged", "count", purged)
	}
	return purged, nil
}

func (t *Trash) metaPath(id string) string {
	return filepath.Join(t.dir, "meta", id+".json")
}

func (t *Trash) writeMeta(e *Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("trash: encode meta: %w", err)
	}
	return os.WriteFile(t.metaPath(e.ID), data, 0o644)
}

func (t *Trash) readMeta(id string) (*Entry, error) {
	data, err := os.ReadFile(t.metaPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("trash: read meta: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("trash: decode meta: %w", err)
	}
	return &e, nil
}

// moveFile renames, falling back to copy-then-delete across filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func sortByTrashedAt(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TrashedAt.Before(entries[j].TrashedAt)
	})
}
