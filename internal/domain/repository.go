package domain

// LivenessOracle answers whether an owning process is still running.
// Implementation: uses gopsutil for cross-platform support.
type LivenessOracle interface {
	// IsAlive reports whether pid exists. An error means the answer is unknown.
	IsAlive(pid uint32) (bool, error)
}

// FileSystemManager handles filesystem operations for registered resources.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// EnsureDir creates dir and all parents.
	EnsureDir(dir string) error

	// WriteExclusive creates path with data, failing with *PathCollisionError
	// if it already exists. A partially written file is removed.
	WriteExclusive(path string, data []byte) error

	// Delete removes a single file.
	Delete(path string) error

	// ListFiles returns every non-directory path below dir.
	// A missing dir yields no paths.
	ListFiles(dir string) ([]string, error)
}

// CatalogStore persists the catalog snapshot.
// Implementation: YAML file replaced atomically (write + rename).
type CatalogStore interface {
	// Load reads the snapshot. A missing file yields an empty catalog and no error.
	Load() (*Catalog, error)

	// Save overwrites the snapshot with the full catalog.
	Save(c *Catalog) error

	// Path returns the snapshot file path.
	Path() string
}

// EntryValidator checks desktop entry text before it is written.
type EntryValidator interface {
	// Validate returns the text to store, or an error wrapping ErrEntryValidation.
	Validate(text, appID string) (string, error)
}

// IconDecoder classifies and normalizes icon payloads.
type IconDecoder interface {
	// Decode returns the icon to store, or an error wrapping ErrIconValidation.
	Decode(name string, data []byte) (*Icon, error)
}

// AppIndex lists desktop entry ids installed outside this daemon.
type AppIndex interface {
	// Contains reports whether appID is visible to the desktop environment.
	Contains(appID string) bool
}

// Notifier broadcasts successful registrations to listeners.
type Notifier interface {
	EntryChanged(appID string)
	IconChanged(iconName string)
}

// Refresher asks the desktop environment to rescan a storage root.
// Calls must not block and never fail the caller.
type Refresher interface {
	Refresh(kind ResourceKind, root string)
}

// RefreshStrategy defines one external tool that refreshes a desktop database.
// Implementations: update-desktop-database (entries), gtk-update-icon-cache (icons).
type RefreshStrategy interface {
	// Name returns the strategy name (e.g., "update-desktop-database").
	Name() string

	// Handles reports whether this strategy refreshes resources of kind.
	Handles(kind ResourceKind) bool

	// IsAvailable returns true if the tool can be used on this system.
	IsAvailable() bool

	// Refresh runs the tool against root.
	Refresh(root string) error
}
