package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

const snapshotVersion = 1

// snapshotDoc is the on-disk shape of the catalog. Map keys are the textual
// lifetime encoding ("process:<pid>", "session:<owner>", "persistent:<owner>"),
// which keeps the file sorted and diffable.
type snapshotDoc struct {
	Version int                               `yaml:"version"`
	Entries map[string][]domain.DesktopHandle `yaml:"entries"`
	Icons   map[string][]domain.IconHandle    `yaml:"icons"`
}

// YAMLCatalogStore implements domain.CatalogStore using a YAML file.
type YAMLCatalogStore struct {
	path string
}

// NewYAMLCatalogStore creates a store at path.
func NewYAMLCatalogStore(path string) *YAMLCatalogStore {
	return &YAMLCatalogStore{path: path}
}

// Path returns the snapshot file path.
func (s *YAMLCatalogStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty catalog.
func (s *YAMLCatalogStore) Load() (*domain.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewCatalog(), nil
		}
		return nil, fmt.Errorf("%w: read snapshot: %w", domain.ErrIO, err)
	}
	return DecodeCatalog(data)
}

// Save overwrites the snapshot with c.
func (s *YAMLCatalogStore) Save(c *domain.Catalog) error {
	data, err := EncodeCatalog(c)
	if err != nil {
		return err
	}
	return s.atomicWrite(data)
}

// EncodeCatalog serializes c to the snapshot format.
func EncodeCatalog(c *domain.Catalog) ([]byte, error) {
	doc := snapshotDoc{
		Version: snapshotVersion,
		Entries: make(map[string][]domain.DesktopHandle, len(c.Entries)),
		Icons:   make(map[string][]domain.IconHandle, len(c.Icons)),
	}
	for lt, handles := range c.Entries {
		key, err := lt.MarshalText()
		if err != nil {
			return nil, err
		}
		doc.Entries[string(key)] = handles
	}
	for lt, handles := range c.Icons {
		key, err := lt.MarshalText()
		if err != nil {
			return nil, err
		}
		doc.Icons[string(key)] = handles
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotCodec, err)
	}
	return data, nil
}

// DecodeCatalog parses the snapshot format.
func DecodeCatalog(data []byte) (*domain.Catalog, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotCodec, err)
	}
	if doc.Version > snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", domain.ErrSnapshotCodec, doc.Version)
	}

	c := domain.NewCatalog()
	for key, handles := range doc.Entries {
		lt, err := domain.ParseLifetime(key)
		if err != nil {
			return nil, err
		}
		c.Entries[lt] = handles
	}
	for key, handles := range doc.Icons {
		lt, err := domain.ParseLifetime(key)
		if err != nil {
			return nil, err
		}
		c.Icons[lt] = handles
	}
	return c, nil
}

// atomicWrite writes the snapshot atomically (write + sync + rename), so a
// crash leaves either the old or the new snapshot, never a torn one.
func (s *YAMLCatalogStore) atomicWrite(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: create snapshot directory: %w", domain.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp snapshot: %w", domain.ErrIO, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp snapshot: %w", domain.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp snapshot: %w", domain.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp snapshot: %w", domain.ErrIO, err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("%w: chmod temp snapshot: %w", domain.ErrIO, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replace snapshot: %w", domain.ErrIO, err)
	}

	success = true
	return nil
}

// Ensure YAMLCatalogStore implements domain.CatalogStore.
var _ domain.CatalogStore = (*YAMLCatalogStore)(nil)
