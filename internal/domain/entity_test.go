package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLifetime_TextRoundTrip verifies every lifetime kind survives its text form
func TestLifetime_TextRoundTrip(t *testing.T) {
	tests := []struct {
		lt   Lifetime
		text string
	}{
		{ProcessLifetime(4242), "process:4242"},
		{ProcessLifetime(0), "process:0"},
		{SessionLifetime("shell"), "session:shell"},
		{SessionLifetime(""), "session:"},
		{PersistentLifetime("store:flathub"), "persistent:store:flathub"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			text, err := tt.lt.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(text))
			assert.Equal(t, tt.text, tt.lt.String())

			var got Lifetime
			require.NoError(t, got.UnmarshalText(text))
			assert.Equal(t, tt.lt, got)
		})
	}
}

// TestParseLifetime_Invalid verifies malformed keys are codec failures
func TestParseLifetime_Invalid(t *testing.T) {
	for _, s := range []string{"", "process", "process:", "process:-1", "process:4294967296", "thread:1", "Session:x"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseLifetime(s)
			assert.True(t, errors.Is(err, ErrSnapshotCodec), "got %v", err)
		})
	}
}

// TestLifetime_MarshalUnknown verifies the zero value cannot be persisted
func TestLifetime_MarshalUnknown(t *testing.T) {
	_, err := Lifetime{}.MarshalText()
	assert.ErrorIs(t, err, ErrSnapshotCodec)
	assert.Equal(t, "unknown", Lifetime{}.String())
}

// TestLifetime_IsPersistent verifies only persistent lifetimes select the persistent root
func TestLifetime_IsPersistent(t *testing.T) {
	assert.False(t, ProcessLifetime(1).IsPersistent())
	assert.False(t, SessionLifetime("a").IsPersistent())
	assert.True(t, PersistentLifetime("a").IsPersistent())
}

// TestLifetime_Comparable verifies lifetimes with equal fields are the same map key
func TestLifetime_Comparable(t *testing.T) {
	m := map[Lifetime]int{SessionLifetime("a"): 1}
	m[SessionLifetime("a")]++
	m[PersistentLifetime("a")]++

	assert.Equal(t, 2, m[SessionLifetime("a")])
	assert.Equal(t, 1, m[PersistentLifetime("a")])
}

// TestErrorClasses verifies the error hierarchy used by callers
func TestErrorClasses(t *testing.T) {
	assert.ErrorIs(t, ErrDuplicateAppID, ErrEntryValidation)
	assert.ErrorIs(t, ErrNotSquare, ErrIconValidation)
	assert.ErrorIs(t, ErrNoTypeFound, ErrIconValidation)
	assert.NotErrorIs(t, ErrNotSquare, ErrEntryValidation)

	var err error = &PathCollisionError{Path: "/tmp/a.desktop"}
	assert.ErrorIs(t, err, ErrPathCollision)
	assert.Contains(t, err.Error(), "/tmp/a.desktop")
}
