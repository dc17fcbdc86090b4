// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// LifetimeKind identifies which case of Lifetime is populated.
type LifetimeKind int

const (
	// KindProcess lifetimes expire when the owning process exits.
	KindProcess LifetimeKind = iota + 1
	// KindSession lifetimes expire when the daemon restarts or the owner revokes them.
	KindSession
	// KindPersistent lifetimes are only removed by their owner.
	KindPersistent
)

// String returns the scope name used in logs, metrics and snapshot keys.
func (k LifetimeKind) String() string {
	switch k {
	case KindProcess:
		return "process"
	case KindSession:
		return "session"
	case KindPersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// Lifetime is the scope a registration belongs to.
// Exactly one of PID (process) or Owner (session, persistent) is meaningful,
// selected by Kind. The struct is comparable and used as a map key.
type Lifetime struct {
	Kind  LifetimeKind
	PID   uint32
	Owner string
}

// ProcessLifetime ties resources to a running process.
func ProcessLifetime(pid uint32) Lifetime {
	return Lifetime{Kind: KindProcess, PID: pid}
}

// SessionLifetime ties resources to the current daemon session.
func SessionLifetime(owner string) Lifetime {
	return Lifetime{Kind: KindSession, Owner: owner}
}

// PersistentLifetime keeps resources until the owner removes them.
func PersistentLifetime(owner string) Lifetime {
	return Lifetime{Kind: KindPersistent, Owner: owner}
}

// IsPersistent reports whether resources of this lifetime live under the persistent root.
func (l Lifetime) IsPersistent() bool {
	return l.Kind == KindPersistent
}

// String renders the lifetime as "process:<pid>", "session:<owner>" or "persistent:<owner>".
func (l Lifetime) String() string {
	switch l.Kind {
	case KindProcess:
		return KindProcess.String() + ":" + strconv.FormatUint(uint64(l.PID), 10)
	case KindSession, KindPersistent:
		return l.Kind.String() + ":" + l.Owner
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler. The encoding is the key format
// of the catalog snapshot.
func (l Lifetime) MarshalText() ([]byte, error) {
	switch l.Kind {
	case KindProcess, KindSession, KindPersistent:
		return []byte(l.String()), nil
	default:
		return nil, fmt.Errorf("%w: unknown lifetime kind %d", ErrSnapshotCodec, l.Kind)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	parsed, err := ParseLifetime(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLifetime parses the textual form produced by Lifetime.String.
// Only the first colon separates the kind, so owners may contain colons.
func ParseLifetime(s string) (Lifetime, error) {
	kind, payload, ok := strings.Cut(s, ":")
	if !ok {
		return Lifetime{}, fmt.Errorf("%w: lifetime %q has no kind separator", ErrSnapshotCodec, s)
	}

	switch kind {
	case "process":
		pid, err := strconv.ParseUint(payload, 10, 32)
		if err != nil {
			return Lifetime{}, fmt.Errorf("%w: invalid pid in lifetime %q: %w", ErrSnapshotCodec, s, err)
		}
		return ProcessLifetime(uint32(pid)), nil
	case "session":
		return SessionLifetime(payload), nil
	case "persistent":
		return PersistentLifetime(payload), nil
	default:
		return Lifetime{}, fmt.Errorf("%w: unknown lifetime kind %q", ErrSnapshotCodec, kind)
	}
}

// DesktopHandle records one registered desktop entry on disk.
type DesktopHandle struct {
	AppID string `yaml:"app_id"`
	Path  string `yaml:"path"`
}

// IconHandle records one registered icon on disk.
type IconHandle struct {
	IconName string `yaml:"icon_name"`
	Path     string `yaml:"path"`
}

// ResourceKind distinguishes desktop entries from icons.
type ResourceKind int

const (
	ResourceEntry ResourceKind = iota + 1
	ResourceIcon
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceEntry:
		return "entry"
	case ResourceIcon:
		return "icon"
	default:
		return "unknown"
	}
}

// IconFormat is the on-disk encoding of a registered icon.
type IconFormat int

const (
	IconRaster IconFormat = iota + 1
	IconVector
)

// ScalableBucket is the size bucket used for vector icons.
const ScalableBucket = "scalable"

// Icon is a classified and normalized icon payload, ready to be placed on disk.
type Icon struct {
	Format IconFormat
	// Bucket is "<W>x<H>" for raster icons and ScalableBucket for vector icons.
	Bucket string
	// Ext is the file extension without the dot ("png" or "svg").
	Ext  string
	Data []byte
	// Width and Height are zero for vector icons.
	Width   int
	Height  int
	Resized bool
}
