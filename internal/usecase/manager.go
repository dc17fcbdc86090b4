// Package usecase contains application business logic.
package usecase

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/metrics"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/placement"
)

// Manager owns the catalog and every file it references.
// All operations hold one mutex for their full duration.
type Manager struct {
	mu sync.Mutex

	layout    *placement.Layout
	fs        domain.FileSystemManager
	store     domain.CatalogStore
	entries   domain.EntryValidator
	icons     domain.IconDecoder
	notifier  domain.Notifier
	refresher domain.Refresher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	catalogDuplicates bool

	catalog  *domain.Catalog
	handlers map[uint32]struct{}
}

// Option configures optional collaborators of a Manager.
type Option func(*Manager)

// WithNotifier sets the listener for successful registrations.
func WithNotifier(n domain.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithRefresher sets the external refresh trigger.
func WithRefresher(r domain.Refresher) Option {
	return func(m *Manager) { m.refresher = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithCatalogDuplicateCheck rejects entries whose app id is already recorded
// under any lifetime, even when the destination file differs.
func WithCatalogDuplicateCheck(enabled bool) Option {
	return func(m *Manager) { m.catalogDuplicates = enabled }
}

// NewManager loads the snapshot and removes every session lifetime left in it.
// An unreadable snapshot is logged and replaced by an empty catalog, and a
// session lifetime that cannot be removed is logged and kept.
func NewManager(
	layout *placement.Layout,
	fs domain.FileSystemManager,
	store domain.CatalogStore,
	entries domain.EntryValidator,
	icons domain.IconDecoder,
	logger *zap.Logger,
	opts ...Option,
) (*Manager, error) {
	m := &Manager{
		layout:   layout,
		fs:       fs,
		store:    store,
		entries:  entries,
		icons:    icons,
		logger:   logger,
		handlers: make(map[uint32]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	catalog, err := store.Load()
	if err != nil {
		logger.Warn("failed to load catalog snapshot, starting empty",
			zap.String("path", store.Path()),
			zap.Error(err))
		catalog = domain.NewCatalog()
	}
	m.catalog = catalog

	m.resetSession()
	m.recordSize()
	return m, nil
}

// resetSession drops session lifetimes left by a previous run. A lifetime that
// cannot be removed stays in the catalog and the rest are still attempted.
func (m *Manager) resetSession() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, lt := range m.catalog.Lifetimes(domain.KindSession) {
		m.logger.Info("removing stale session lifetime", zap.Stringer("lifetime", lt))
		if err := m.removeLocked(lt, metrics.ReasonSessionReset); err != nil {
			m.logger.Warn("failed to reset session lifetime",
				zap.Stringer("lifetime", lt),
				zap.Error(err))
		}
	}
}

// RegisterEntry validates text, writes it as <appID>.desktop under the root
// selected by lt, and records it in the catalog.
func (m *Manager) RegisterEntry(text, appID string, lt domain.Lifetime) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.metrics.ObserveRegistration(domain.ResourceEntry.String(), lt.Kind.String(), err) }()

	validated, err := m.entries.Validate(text, appID)
	if err != nil {
		return err
	}

	path, err := m.layout.EntryPath(appID, lt)
	if err != nil {
		return err
	}

	if m.catalogDuplicates && m.catalog.HasAppID(appID) {
		return fmt.Errorf("%w: %s is already registered", domain.ErrDuplicateAppID, appID)
	}

	if err := m.fs.WriteExclusive(path, []byte(validated)); err != nil {
		return err
	}

	next := m.catalog.Clone()
	next.AddEntry(lt, domain.DesktopHandle{AppID: appID, Path: path})
	if err := m.commit(next, path); err != nil {
		return err
	}

	m.logger.Info("registered desktop entry",
		zap.String("app_id", appID),
		zap.Stringer("lifetime", lt),
		zap.String("path", path))

	if m.notifier != nil {
		m.notifier.EntryChanged(appID)
	}
	m.refresh(domain.ResourceEntry, lt)
	return nil
}

// RegisterIcon decodes data, writes the normalized icon under the root and
// bucket it resolves to, and records it in the catalog.
func (m *Manager) RegisterIcon(name string, data []byte, lt domain.Lifetime) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.metrics.ObserveRegistration(domain.ResourceIcon.String(), lt.Kind.String(), err) }()

	icon, err := m.icons.Decode(name, data)
	if err != nil {
		return err
	}

	path, err := m.layout.IconPath(name, icon.Bucket, icon.Ext, lt)
	if err != nil {
		return err
	}

	if err := m.fs.WriteExclusive(path, icon.Data); err != nil {
		return err
	}

	next := m.catalog.Clone()
	next.AddIcon(lt, domain.IconHandle{IconName: name, Path: path})
	if err := m.commit(next, path); err != nil {
		return err
	}

	m.logger.Info("registered icon",
		zap.String("icon", name),
		zap.String("bucket", icon.Bucket),
		zap.Stringer("lifetime", lt),
		zap.String("path", path))

	if m.notifier != nil {
		m.notifier.IconChanged(name)
	}
	m.refresh(domain.ResourceIcon, lt)
	return nil
}

// RemoveLifetime forgets lt and deletes its files. File deletion is best
// effort; only a failure to persist the catalog is returned.
func (m *Manager) RemoveLifetime(lt domain.Lifetime, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(lt, reason)
}

// Clean removes every process and session lifetime, then deletes files under
// the storage roots that no catalog handle references.
func (m *Manager) Clean() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, lt := range m.catalog.Lifetimes(0) {
		if lt.IsPersistent() {
			continue
		}
		if err := m.removeLocked(lt, metrics.ReasonClean); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.removeUnreferencedLocked(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// removeUnreferencedLocked deletes files left behind when the daemon stopped
// between saving a removal and deleting its files.
func (m *Manager) removeUnreferencedLocked() error {
	referenced := make(map[string]struct{})
	for _, handles := range m.catalog.Entries {
		for _, h := range handles {
			referenced[h.Path] = struct{}{}
		}
	}
	for _, handles := range m.catalog.Icons {
		for _, h := range handles {
			referenced[h.Path] = struct{}{}
		}
	}

	var errs []error
	for _, dir := range m.layout.ManagedDirs() {
		paths, err := m.fs.ListFiles(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, path := range paths {
			if _, ok := referenced[path]; ok {
				continue
			}
			if err := m.fs.Delete(path); err != nil {
				errs = append(errs, err)
				continue
			}
			m.logger.Info("removed unreferenced file", zap.String("path", path))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) removeLocked(lt domain.Lifetime, reason string) error {
	if !m.catalog.Has(lt) {
		return nil
	}

	next := m.catalog.Clone()
	entries, icons, _ := next.Remove(lt)
	if err := m.save(next); err != nil {
		return err
	}
	m.catalog = next
	m.recordSize()
	m.metrics.ObserveRemoval(lt.Kind.String(), reason)

	for _, h := range entries {
		m.deleteFile(lt, h.Path)
	}
	for _, h := range icons {
		m.deleteFile(lt, h.Path)
	}

	m.logger.Info("removed lifetime",
		zap.Stringer("lifetime", lt),
		zap.String("reason", reason),
		zap.Int("entries", len(entries)),
		zap.Int("icons", len(icons)))
	return nil
}

func (m *Manager) deleteFile(lt domain.Lifetime, path string) {
	if err := m.fs.Delete(path); err != nil {
		m.metrics.ObserveDeleteFailure()
		m.logger.Warn("failed to delete file",
			zap.Stringer("lifetime", lt),
			zap.String("path", path),
			zap.Error(err))
	}
}

// RegisterChangeHandler records pid as a listener that refreshes the desktop
// itself. While any handler is registered, external refresh tools are not run.
func (m *Manager) RegisterChangeHandler(pid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handlers[pid]; !ok {
		m.logger.Info("registered change handler", zap.Uint32("pid", pid))
	}
	m.handlers[pid] = struct{}{}
	m.metrics.SetChangeHandlers(len(m.handlers))
}

// PruneChangeHandlers drops handlers whose process has exited and returns how
// many were dropped. A liveness error keeps the handler.
func (m *Manager) PruneChangeHandlers(alive func(pid uint32) (bool, error)) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for pid := range m.handlers {
		ok, err := alive(pid)
		if err != nil {
			m.logger.Warn("liveness check failed for change handler",
				zap.Uint32("pid", pid),
				zap.Error(err))
			continue
		}
		if !ok {
			delete(m.handlers, pid)
			dropped++
			m.logger.Info("dropped change handler", zap.Uint32("pid", pid))
		}
	}
	m.metrics.SetChangeHandlers(len(m.handlers))
	return dropped
}

// ChangeHandlers returns the registered handler pids in ascending order.
func (m *Manager) ChangeHandlers() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	pids := make([]uint32, 0, len(m.handlers))
	for pid := range m.handlers {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// ProcessPIDs returns the pids owning process lifetimes.
func (m *Manager) ProcessPIDs() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.ProcessPIDs()
}

// Catalog returns a copy of the current catalog.
func (m *Manager) Catalog() *domain.Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.Clone()
}

// commit persists next and swaps it in. On failure the freshly written file
// is removed and the current catalog is kept.
func (m *Manager) commit(next *domain.Catalog, written string) error {
	if err := m.save(next); err != nil {
		if delErr := m.fs.Delete(written); delErr != nil {
			m.logger.Error("failed to roll back written file",
				zap.String("path", written),
				zap.Error(delErr))
		}
		return err
	}
	m.catalog = next
	m.recordSize()
	return nil
}

func (m *Manager) save(c *domain.Catalog) error {
	if err := m.store.Save(c); err != nil {
		m.logger.Error("failed to save catalog snapshot",
			zap.String("path", m.store.Path()),
			zap.Error(err))
		if errors.Is(err, domain.ErrIO) {
			return err
		}
		return fmt.Errorf("%w: save snapshot: %w", domain.ErrIO, err)
	}
	return nil
}

func (m *Manager) refresh(kind domain.ResourceKind, lt domain.Lifetime) {
	if m.refresher == nil || len(m.handlers) > 0 {
		return
	}
	m.refresher.Refresh(kind, m.layout.Root(lt))
}

func (m *Manager) recordSize() {
	m.metrics.SetCatalogSize(m.catalog.Counts())
}
