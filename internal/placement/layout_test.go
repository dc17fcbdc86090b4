package placement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/infra"
)

func newTestLayout(t *testing.T) (*Layout, string, string) {
	t.Helper()
	dir := t.TempDir()
	transient := filepath.Join(dir, "run")
	persistent := filepath.Join(dir, "cache")
	return NewLayout(transient, persistent, infra.NewFileSystemManager()), transient, persistent
}

// TestLayout_EntryPath verifies entries land under the root chosen by the lifetime
func TestLayout_EntryPath(t *testing.T) {
	l, transient, persistent := newTestLayout(t)

	tests := []struct {
		lt   domain.Lifetime
		want string
	}{
		{domain.ProcessLifetime(1), filepath.Join(transient, "applications", "org.example.App.desktop")},
		{domain.SessionLifetime("s"), filepath.Join(transient, "applications", "org.example.App.desktop")},
		{domain.PersistentLifetime("p"), filepath.Join(persistent, "applications", "org.example.App.desktop")},
	}

	for _, tt := range tests {
		t.Run(tt.lt.String(), func(t *testing.T) {
			got, err := l.EntryPath("org.example.App", tt.lt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.DirExists(t, filepath.Dir(got))
		})
	}
}

// TestLayout_IconPath verifies icons are bucketed under the hicolor theme
func TestLayout_IconPath(t *testing.T) {
	l, transient, persistent := newTestLayout(t)

	got, err := l.IconPath("app", "64x64", "png", domain.ProcessLifetime(1))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(transient, "icons", "hicolor", "64x64", "apps", "app.png"), got)

	got, err = l.IconPath("app", domain.ScalableBucket, "svg", domain.PersistentLifetime("p"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(persistent, "icons", "hicolor", "scalable", "apps", "app.svg"), got)
	assert.DirExists(t, filepath.Dir(got))
}

// TestLayout_Collision verifies an existing destination is reported, not reused
func TestLayout_Collision(t *testing.T) {
	l, transient, _ := newTestLayout(t)

	path, err := l.EntryPath("org.example.App", domain.SessionLifetime("s"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("taken"), 0o644))

	_, err = l.EntryPath("org.example.App", domain.ProcessLifetime(7))
	var collision *domain.PathCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, filepath.Join(transient, "applications", "org.example.App.desktop"), collision.Path)

	_, err = l.EntryPath("org.example.App", domain.PersistentLifetime("p"))
	assert.NoError(t, err, "persistent root is separate")
}

// TestLayout_InvalidNames verifies unsafe names never reach the filesystem
func TestLayout_InvalidNames(t *testing.T) {
	l, transient, _ := newTestLayout(t)

	_, err := l.EntryPath("../../etc/passwd", domain.ProcessLifetime(1))
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = l.IconPath("app", "../escape", "png", domain.ProcessLifetime(1))
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	assert.NoDirExists(t, transient)
}

// TestLayout_Roots verifies root selection
func TestLayout_Roots(t *testing.T) {
	l, transient, persistent := newTestLayout(t)

	assert.Equal(t, transient, l.Root(domain.SessionLifetime("s")))
	assert.Equal(t, persistent, l.Root(domain.PersistentLifetime("p")))
	assert.Equal(t, []string{transient, persistent}, l.Roots())
	assert.Equal(t, []string{
		filepath.Join(transient, "applications"),
		filepath.Join(transient, "icons"),
		filepath.Join(persistent, "applications"),
		filepath.Join(persistent, "icons"),
	}, l.ManagedDirs())
}
