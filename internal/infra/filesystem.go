package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct{}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	return &FileSystemManagerImpl{}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// EnsureDir creates dir and all parents.
func (fm *FileSystemManagerImpl) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", domain.ErrIO, dir, err)
	}
	return nil
}

// WriteExclusive creates path with data. O_EXCL makes the collision check and
// the create a single step, so an existing file is never overwritten.
func (fm *FileSystemManagerImpl) WriteExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &domain.PathCollisionError{Path: path}
		}
		return fmt.Errorf("%w: create %s: %w", domain.ErrIO, path, err)
	}

	// Clean up the partial file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(path)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %w", domain.ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrIO, path, err)
	}

	success = true
	return nil
}

// Delete removes a single file.
func (fm *FileSystemManagerImpl) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: remove %s: %w", domain.ErrIO, path, err)
	}
	return nil
}

// ListFiles returns every non-directory path below dir, sorted.
func (fm *FileSystemManagerImpl) ListFiles(dir string) ([]string, error) {
	if _, err := os.Lstat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrIO, dir, err)
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	err := fastwalk.Walk(&fastwalk.Config{}, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", domain.ErrIO, dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
