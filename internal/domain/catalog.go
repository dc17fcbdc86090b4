package domain

import "sort"

// Catalog indexes every registered entry and icon by lifetime.
// Lists are append-only; a lifetime only shrinks by being removed entirely.
// Catalog is not safe for concurrent use; the lifetime manager serializes access.
type Catalog struct {
	Entries map[Lifetime][]DesktopHandle
	Icons   map[Lifetime][]IconHandle
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Entries: make(map[Lifetime][]DesktopHandle),
		Icons:   make(map[Lifetime][]IconHandle),
	}
}

// Clone returns a deep copy.
func (c *Catalog) Clone() *Catalog {
	out := NewCatalog()
	for lt, handles := range c.Entries {
		out.Entries[lt] = append([]DesktopHandle(nil), handles...)
	}
	for lt, handles := range c.Icons {
		out.Icons[lt] = append([]IconHandle(nil), handles...)
	}
	return out
}

// AddEntry appends a desktop handle under lt.
func (c *Catalog) AddEntry(lt Lifetime, h DesktopHandle) {
	c.Entries[lt] = append(c.Entries[lt], h)
}

// AddIcon appends an icon handle under lt.
func (c *Catalog) AddIcon(lt Lifetime, h IconHandle) {
	c.Icons[lt] = append(c.Icons[lt], h)
}

// Remove drops lt from both maps and returns what was recorded under it.
// present is false when neither map held lt.
func (c *Catalog) Remove(lt Lifetime) (entries []DesktopHandle, icons []IconHandle, present bool) {
	entries, inEntries := c.Entries[lt]
	icons, inIcons := c.Icons[lt]
	delete(c.Entries, lt)
	delete(c.Icons, lt)
	return entries, icons, inEntries || inIcons
}

// Has reports whether lt has any record.
func (c *Catalog) Has(lt Lifetime) bool {
	_, inEntries := c.Entries[lt]
	_, inIcons := c.Icons[lt]
	return inEntries || inIcons
}

// HasAppID reports whether any lifetime holds an entry for appID.
func (c *Catalog) HasAppID(appID string) bool {
	for _, handles := range c.Entries {
		for _, h := range handles {
			if h.AppID == appID {
				return true
			}
		}
	}
	return false
}

// Lifetimes returns the distinct lifetimes of the given kind across both maps,
// sorted by their textual form. A zero kind returns every lifetime.
func (c *Catalog) Lifetimes(kind LifetimeKind) []Lifetime {
	seen := make(map[Lifetime]struct{})
	for lt := range c.Entries {
		if kind == 0 || lt.Kind == kind {
			seen[lt] = struct{}{}
		}
	}
	for lt := range c.Icons {
		if kind == 0 || lt.Kind == kind {
			seen[lt] = struct{}{}
		}
	}

	out := make([]Lifetime, 0, len(seen))
	for lt := range seen {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ProcessPIDs returns the distinct pids of process lifetimes.
func (c *Catalog) ProcessPIDs() []uint32 {
	lifetimes := c.Lifetimes(KindProcess)
	pids := make([]uint32, 0, len(lifetimes))
	for _, lt := range lifetimes {
		pids = append(pids, lt.PID)
	}
	return pids
}

// Counts returns the number of entry and icon handles.
func (c *Catalog) Counts() (entries, icons int) {
	for _, handles := range c.Entries {
		entries += len(handles)
	}
	for _, handles := range c.Icons {
		icons += len(handles)
	}
	return entries, icons
}
