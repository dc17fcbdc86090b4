package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppDirName is the directory name used under the XDG base directories.
const AppDirName = "desktop-entry-daemon"

// Dirs holds the storage locations used by the daemon.
type Dirs struct {
	// TransientRoot holds process- and session-scoped resources.
	TransientRoot string
	// PersistentRoot holds persistent resources.
	PersistentRoot string
	// SnapshotPath is the catalog snapshot file.
	SnapshotPath string
}

// DetectDirs resolves the default storage locations.
// The transient root honors systemd's RUNTIME_DIRECTORY, then XDG_RUNTIME_DIR.
func DetectDirs() Dirs {
	transient := os.Getenv("RUNTIME_DIRECTORY")
	if transient == "" {
		transient = filepath.Join(xdg.RuntimeDir, AppDirName)
	}

	return Dirs{
		TransientRoot:  transient,
		PersistentRoot: filepath.Join(xdg.CacheHome, AppDirName),
		SnapshotPath:   filepath.Join(xdg.ConfigHome, AppDirName, "cache.yaml"),
	}
}

// PrepareDirs creates the storage directory chain. The parent of the transient
// root is the per-user runtime directory and must already exist; it is never
// created here.
func PrepareDirs(d Dirs) error {
	runtimeDir := filepath.Dir(d.TransientRoot)
	info, err := os.Stat(runtimeDir)
	if err != nil {
		return fmt.Errorf("runtime directory %s unavailable: %w", runtimeDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("runtime directory %s is not a directory", runtimeDir)
	}

	for _, root := range []string{d.TransientRoot, d.PersistentRoot} {
		for _, sub := range []string{"applications", "icons"} {
			dir := filepath.Join(root, sub)
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(d.SnapshotPath), dirPerm); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return nil
}

// DataDirs returns the XDG data directories searched for installed desktop
// entries, most important first.
func DataDirs() []string {
	dirs := make([]string, 0, len(xdg.DataDirs)+1)
	dirs = append(dirs, xdg.DataHome)
	dirs = append(dirs, xdg.DataDirs...)
	return dirs
}
