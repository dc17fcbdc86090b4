package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func entry(id string) DesktopHandle {
	return DesktopHandle{AppID: id, Path: "/apps/" + id + ".desktop"}
}

func icon(name string) IconHandle {
	return IconHandle{IconName: name, Path: "/icons/" + name + ".png"}
}

// TestCatalog_AddAndRemove verifies removal returns and forgets everything under a lifetime
func TestCatalog_AddAndRemove(t *testing.T) {
	c := NewCatalog()
	p1 := ProcessLifetime(1)
	p2 := ProcessLifetime(2)

	c.AddEntry(p1, entry("a"))
	c.AddEntry(p1, entry("b"))
	c.AddIcon(p1, icon("a"))
	c.AddEntry(p2, entry("c"))

	entries, icons, present := c.Remove(p1)
	assert.True(t, present)
	assert.Equal(t, []DesktopHandle{entry("a"), entry("b")}, entries)
	assert.Equal(t, []IconHandle{icon("a")}, icons)
	assert.False(t, c.Has(p1))
	assert.True(t, c.Has(p2))

	_, _, present = c.Remove(p1)
	assert.False(t, present)
}

// TestCatalog_RemoveIconOnly verifies a lifetime present in only one map is still removed
func TestCatalog_RemoveIconOnly(t *testing.T) {
	c := NewCatalog()
	lt := SessionLifetime("s")
	c.AddIcon(lt, icon("x"))

	entries, icons, present := c.Remove(lt)
	assert.True(t, present)
	assert.Empty(t, entries)
	assert.Len(t, icons, 1)
}

// TestCatalog_Clone verifies clones do not share handle slices
func TestCatalog_Clone(t *testing.T) {
	c := NewCatalog()
	lt := PersistentLifetime("o")
	c.AddEntry(lt, entry("a"))

	clone := c.Clone()
	clone.AddEntry(lt, entry("b"))
	clone.AddIcon(lt, icon("i"))

	assert.Len(t, c.Entries[lt], 1)
	assert.Empty(t, c.Icons)
	assert.Len(t, clone.Entries[lt], 2)
}

// TestCatalog_Lifetimes verifies filtering by kind and stable ordering
func TestCatalog_Lifetimes(t *testing.T) {
	c := NewCatalog()
	c.AddEntry(SessionLifetime("b"), entry("1"))
	c.AddIcon(SessionLifetime("a"), icon("2"))
	c.AddEntry(ProcessLifetime(30), entry("3"))
	c.AddIcon(ProcessLifetime(30), icon("3"))
	c.AddEntry(ProcessLifetime(4), entry("4"))
	c.AddEntry(PersistentLifetime("z"), entry("5"))

	assert.Equal(t, []Lifetime{SessionLifetime("a"), SessionLifetime("b")}, c.Lifetimes(KindSession))
	assert.Len(t, c.Lifetimes(0), 5)
	assert.ElementsMatch(t, []uint32{4, 30}, c.ProcessPIDs())
}

// TestCatalog_HasAppIDAndCounts verifies lookups across lifetimes
func TestCatalog_HasAppIDAndCounts(t *testing.T) {
	c := NewCatalog()
	c.AddEntry(ProcessLifetime(1), entry("org.example.A"))
	c.AddEntry(PersistentLifetime("o"), entry("org.example.B"))
	c.AddIcon(ProcessLifetime(1), icon("org.example.A"))

	assert.True(t, c.HasAppID("org.example.B"))
	assert.False(t, c.HasAppID("org.example.C"))

	entries, icons := c.Counts()
	assert.Equal(t, 2, entries)
	assert.Equal(t, 1, icons)
}
