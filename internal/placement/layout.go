// Package placement computes where registered resources live on disk.
//
// Both storage roots share one layout:
//
//	<root>/applications/<app_id>.desktop
//	<root>/icons/hicolor/<W>x<H>/apps/<name>.png
//	<root>/icons/hicolor/scalable/apps/<name>.svg
package placement

import (
	"fmt"
	"path/filepath"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/validate"
)

const (
	applicationsDir = "applications"
	iconsDir        = "icons"
	iconTheme       = "hicolor"
	iconContext     = "apps"
)

// Layout places resources under a transient root (process and session
// lifetimes) or a persistent root (persistent lifetimes).
type Layout struct {
	transientRoot  string
	persistentRoot string
	fs             domain.FileSystemManager
}

// NewLayout creates a layout over the two roots.
func NewLayout(transientRoot, persistentRoot string, fs domain.FileSystemManager) *Layout {
	return &Layout{
		transientRoot:  transientRoot,
		persistentRoot: persistentRoot,
		fs:             fs,
	}
}

// Root returns the storage root selected by lt.
func (l *Layout) Root(lt domain.Lifetime) string {
	if lt.IsPersistent() {
		return l.persistentRoot
	}
	return l.transientRoot
}

// Roots returns both storage roots.
func (l *Layout) Roots() []string {
	return []string{l.transientRoot, l.persistentRoot}
}

// ManagedDirs returns the entry and icon directories under both roots.
func (l *Layout) ManagedDirs() []string {
	var dirs []string
	for _, root := range l.Roots() {
		dirs = append(dirs, filepath.Join(root, applicationsDir), filepath.Join(root, iconsDir))
	}
	return dirs
}

// EntryPath returns the destination of a desktop entry, creating its directory.
// It fails with *domain.PathCollisionError if the file already exists.
func (l *Layout) EntryPath(appID string, lt domain.Lifetime) (string, error) {
	dir := filepath.Join(l.Root(lt), applicationsDir)
	return l.place(dir, appID, "desktop")
}

// IconPath returns the destination of an icon in bucket ("<W>x<H>" or "scalable").
func (l *Layout) IconPath(name, bucket, ext string, lt domain.Lifetime) (string, error) {
	if err := validate.CheckName(bucket); err != nil {
		return "", fmt.Errorf("bucket: %w", err)
	}
	dir := filepath.Join(l.Root(lt), iconsDir, iconTheme, bucket, iconContext)
	return l.place(dir, name, ext)
}

func (l *Layout) place(dir, name, ext string) (string, error) {
	if err := validate.CheckName(name); err != nil {
		return "", err
	}
	if err := l.fs.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+"."+ext)
	if l.fs.Exists(path) {
		return "", &domain.PathCollisionError{Path: path}
	}
	return path, nil
}
