package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// LocalTempDir is the directory under the root that holds in-flight writes.
// Keys never start with it, so List cannot confuse a temp file with a record.
const LocalTempDir = ".tenf-tmp"

// publishAttempts bounds how often Close recreates a partition directory
// removed by a concurrent Delete.
const publishAttempts = 5

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// Fs is the filesystem the store writes to. Default: afero.NewOsFs().
	Fs afero.Fs

	// DirPerm is used for partition directories. Default: 0o755.
	DirPerm os.FileMode

	// FilePerm is used for record files. Default: 0o644.
	FilePerm os.FileMode
}

// LocalStore implements BlobStore on a filesystem tree rooted at a base
// directory. Each key segment maps to a nested directory and the final
// segment to a file name.
//
// Because segments are directories, a real filesystem cannot hold both
// "c/p/a.json" and "c/p/a.json/b.json": the second write fails with a
// BackendError. Object stores and MemoryStore accept both keys.
//
// Writes go to a uuid-named file under LocalTempDir and are renamed into
// place, so readers never observe a partial record.
type LocalStore struct {
	fs       afero.Fs
	root     string
	dirPerm  os.FileMode
	filePerm os.FileMode

	// dirMu orders directory pruning after Delete against publishing renames
	// within this process. Publishes share it; pruning is exclusive.
	dirMu sync.RWMutex
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
// The directory is created lazily on the first write.
func NewLocalStore(root string, optFns ...func(o *LocalOptions)) *LocalStore {
	opts := LocalOptions{
		Fs:       afero.NewOsFs(),
		DirPerm:  0o755,
		FilePerm: 0o644,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &LocalStore{
		fs:       opts.Fs,
		root:     filepath.Clean(root),
		dirPerm:  opts.DirPerm,
		filePerm: opts.FilePerm,
	}
}

// Root returns the base directory of the store.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	path := s.path(name)

	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: ErrNotFound}
	}

	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &localBlob{f: f, size: info.Size()}, nil
}

// Put writes a blob atomically: the data goes to a temp file which is then
// renamed over the final name.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.(*localWritableBlob).Abort()
		return err
	}
	return w.Close()
}

// Create creates a new writable blob. The content is published on Close,
// which creates the partition directories as needed.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := s.path(name)
	tmpDir := filepath.Join(s.root, LocalTempDir)

	if err := s.fs.MkdirAll(tmpDir, s.dirPerm); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", tmpDir, err)
	}

	tmp := filepath.Join(tmpDir, filepath.Base(path)+"."+uuid.NewString())
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
	if err != nil {
		return nil, err
	}

	return &localWritableBlob{store: s, f: f, tmp: tmp, path: path}, nil
}

// Delete removes a blob and prunes partition directories left empty.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	path := s.path(name)
	if err := s.fs.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	s.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

func (s *LocalStore) pruneEmptyDirs(dir string) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		empty, err := afero.IsEmpty(s.fs, dir)
		if err != nil || !empty {
			return
		}
		if err := s.fs.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// List returns all blob names matching the prefix.
//
// The walk starts at the deepest directory named by the prefix, so listing a
// single partition does not touch sibling partitions.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	start := s.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		start = s.path(prefix[:i])
	}
	tmpDir := filepath.Join(s.root, LocalTempDir)

	if _, err := s.fs.Stat(start); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	names := []string{}
	err := afero.Walk(s.fs, start, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path == tmpDir {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	f    afero.File
	size int64
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size {
		return io.NopCloser(strings.NewReader("")), nil
	}
	if off+length > b.size {
		length = b.size - off
	}
	return io.NopCloser(io.NewSectionReader(b.f, off, length)), nil
}

func (b *localBlob) Close() error {
	return b.f.Close()
}

func (b *localBlob) Size() int64 {
	return b.size
}

type localWritableBlob struct {
	store  *LocalStore
	f      afero.File
	tmp    string
	path   string
	closed bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.f.Write(p)
}

// Close flushes the temp file and renames it into place.
func (w *localWritableBlob) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true

	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = w.store.fs.Remove(w.tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = w.store.fs.Remove(w.tmp)
		return err
	}
	if err := w.publish(); err != nil {
		_ = w.store.fs.Remove(w.tmp)
		return err
	}
	return nil
}

// publish renames the temp file into place. Another process sharing the
// root may prune the partition directory between MkdirAll and Rename; that
// surfaces as ErrNotExist and is retried.
func (w *localWritableBlob) publish() error {
	s := w.store
	s.dirMu.RLock()
	defer s.dirMu.RUnlock()

	dir := filepath.Dir(w.path)

	var err error
	for range publishAttempts {
		if err = s.fs.MkdirAll(dir, s.dirPerm); err == nil {
			err = s.fs.Rename(w.tmp, w.path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return fmt.Errorf("publish %s: %w", w.path, err)
}

// Abort discards the temp file; nothing becomes visible.
func (w *localWritableBlob) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.f.Close()
	return w.store.fs.Remove(w.tmp)
}
