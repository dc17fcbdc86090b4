package infra

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

const (
	// DefaultIndexTTL bounds staleness when a change is missed by the watcher
	// (fsnotify does not watch subdirectories).
	DefaultIndexTTL = 5 * time.Minute

	indexKey = "app_ids"
)

// DesktopIndex implements domain.AppIndex over the desktop entries installed in
// the XDG data directories, excluding the daemon's own storage roots.
type DesktopIndex struct {
	appDirs []string
	exclude []string
	cache   *gocache.Cache
	logger  *zap.Logger
}

// NewDesktopIndex creates an index over <dataDir>/applications for each data dir.
// Directories under any of excludeRoots are never scanned.
func NewDesktopIndex(dataDirs, excludeRoots []string, ttl time.Duration, logger *zap.Logger) *DesktopIndex {
	idx := &DesktopIndex{
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
	for _, root := range excludeRoots {
		idx.exclude = append(idx.exclude, filepath.Clean(root))
	}
	for _, dir := range dataDirs {
		appDir := filepath.Join(dir, "applications")
		if idx.excluded(appDir) {
			continue
		}
		idx.appDirs = append(idx.appDirs, appDir)
	}
	return idx
}

// Contains reports whether appID is installed outside the daemon.
func (i *DesktopIndex) Contains(appID string) bool {
	_, ok := i.ids()[appID]
	return ok
}

// Invalidate drops the cached id set; the next lookup rescans.
func (i *DesktopIndex) Invalidate() {
	i.cache.Delete(indexKey)
}

// Watch invalidates the cache whenever a scanned directory changes.
// It blocks until ctx is canceled.
func (i *DesktopIndex) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer w.Close()

	watched := 0
	for _, dir := range i.appDirs {
		if err := w.Add(dir); err != nil {
			// Missing data dirs are normal
			i.logger.Debug("not watching applications dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
	}
	i.logger.Debug("watching installed desktop entries", zap.Int("dirs", watched))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				i.Invalidate()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			i.logger.Warn("desktop entry watcher error", zap.Error(err))
			i.Invalidate()
		}
	}
}

func (i *DesktopIndex) ids() map[string]struct{} {
	if v, found := i.cache.Get(indexKey); found {
		if ids, ok := v.(map[string]struct{}); ok {
			return ids
		}
	}
	ids := i.scan()
	i.cache.Set(indexKey, ids, gocache.DefaultExpiration)
	return ids
}

// scan walks every applications dir and collects desktop file ids.
// The id of <appdir>/a/b.desktop is "a-b", per the desktop entry spec.
func (i *DesktopIndex) scan() map[string]struct{} {
	var mu sync.Mutex
	ids := make(map[string]struct{})
	conf := &fastwalk.Config{Follow: true}

	for _, appDir := range i.appDirs {
		if _, err := os.Stat(appDir); err != nil {
			continue
		}

		root := appDir
		err := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && i.excluded(path) {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".desktop") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil || !isDesktopEntry(data) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			id := strings.ReplaceAll(strings.TrimSuffix(rel, ".desktop"), string(filepath.Separator), "-")

			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
			return nil
		})
		if err != nil {
			i.logger.Warn("failed to scan applications dir", zap.String("dir", root), zap.Error(err))
		}
	}

	i.logger.Debug("scanned installed desktop entries", zap.Int("count", len(ids)))
	return ids
}

func (i *DesktopIndex) excluded(path string) bool {
	path = filepath.Clean(path)
	for _, root := range i.exclude {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// isDesktopEntry reports whether data parses as a key file with a [Desktop Entry] group.
func isDesktopEntry(data []byte) bool {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		KeyValueDelimiters:  "=",
	}, data)
	if err != nil {
		return false
	}
	_, err = f.GetSection("Desktop Entry")
	return err == nil
}

// Ensure DesktopIndex implements domain.AppIndex.
var _ domain.AppIndex = (*DesktopIndex)(nil)
