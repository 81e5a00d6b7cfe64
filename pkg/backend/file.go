package backend

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

const (
	snapshotExt  = ".snap"
	dirPerm      = 0o750
	filePerm     = 0o640
	tmpFilePrefx = ".tmp-"
)

// File is a snapshot backend that keeps one encoded file per snapshot in a directory.
// Writes go through a temporary file and a rename, so a reader never sees a partial snapshot.
type File struct {
	mu         sync.RWMutex
	dir        string
	Serializer serializer.ISerializer
}

// NewFile creates a filesystem snapshot store rooted at the directory set by WithDir.
// The directory is created when missing.
func NewFile(opts ...Option[File]) (*File, error) {
	fb := &File{}

	ApplyOptions(fb, opts...)

	if strings.TrimSpace(fb.dir) == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot directory")
	}

	err := os.MkdirAll(fb.dir, dirPerm)
	if err != nil {
		return nil, ewrap.Wrapf(err, "create snapshot directory %s", fb.dir)
	}

	if fb.Serializer == nil {
		fb.Serializer, err = serializer.New(constants.DefaultSerializer)
		if err != nil {
			return nil, err
		}
	}

	return fb, nil
}

// Dir returns the directory the snapshots are written to.
func (fb *File) Dir() string { return fb.dir }

// Count returns the number of snapshot files in the directory.
func (fb *File) Count(_ context.Context) int {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	ids, err := fb.ids()
	if err != nil {
		return 0
	}

	return len(ids)
}

// Get reads the snapshot stored under id.
func (fb *File) Get(_ context.Context, id string) (*histcache.Snapshot, error) {
	err := validID(id)
	if err != nil {
		return nil, err
	}

	fb.mu.RLock()
	defer fb.mu.RUnlock()

	return fb.read(id)
}

// Put writes the snapshot to <dir>/<id>.snap, replacing any previous file.
func (fb *File) Put(_ context.Context, snap *histcache.Snapshot) error {
	if snap == nil {
		return ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot")
	}

	err := validID(snap.ID)
	if err != nil {
		return err
	}

	data, err := fb.Serializer.Marshal(snap)
	if err != nil {
		return ewrap.Wrapf(err, "encode snapshot %s", snap.ID)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	tmp, err := os.CreateTemp(fb.dir, tmpFilePrefx+"*")
	if err != nil {
		return ewrap.Wrap(err, "create temporary snapshot file")
	}

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(filePerm)
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return ewrap.Wrapf(err, "write snapshot %s", snap.ID)
	}

	err = os.Rename(tmp.Name(), fb.path(snap.ID))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return ewrap.Wrapf(err, "commit snapshot %s", snap.ID)
	}

	return nil
}

// List reads every snapshot in the directory and applies the given filters.
func (fb *File) List(_ context.Context, filters ...IFilter) ([]*histcache.Snapshot, error) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	ids, err := fb.ids()
	if err != nil {
		return nil, err
	}

	snaps := make([]*histcache.Snapshot, 0, len(ids))

	for _, id := range ids {
		snap, err := fb.read(id)
		if err != nil {
			return nil, err
		}

		snaps = append(snaps, snap)
	}

	return applyFilters(constants.FileBackend, snaps, filters...)
}

// Remove deletes the snapshot files with the given ids.
func (fb *File) Remove(_ context.Context, ids ...string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, id := range ids {
		if validID(id) != nil {
			continue
		}

		err := os.Remove(fb.path(id))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ewrap.Wrapf(err, "remove snapshot %s", id)
		}
	}

	return nil
}

// Clear deletes every snapshot file. Other files in the directory are left alone.
func (fb *File) Clear(ctx context.Context) error {
	fb.mu.RLock()
	ids, err := fb.ids()
	fb.mu.RUnlock()

	if err != nil {
		return err
	}

	return fb.Remove(ctx, ids...)
}

// Close is a no-op for the filesystem store.
func (*File) Close() error { return nil }

func (fb *File) path(id string) string {
	return filepath.Join(fb.dir, id+snapshotExt)
}

func (fb *File) read(id string) (*histcache.Snapshot, error) {
	data, err := os.ReadFile(fb.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ewrap.Wrapf(sentinel.ErrSnapshotNotFound, "%q", id)
		}

		return nil, ewrap.Wrapf(err, "read snapshot %s", id)
	}

	snap := &histcache.Snapshot{}

	err = fb.Serializer.Unmarshal(data, snap)
	if err != nil {
		return nil, ewrap.Wrapf(err, "decode snapshot %s", id)
	}

	return snap, nil
}

func (fb *File) ids() ([]string, error) {
	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		return nil, ewrap.Wrapf(err, "read snapshot directory %s", fb.dir)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tmpFilePrefx) || filepath.Ext(name) != snapshotExt {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}

	return ids, nil
}
