package domain

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the lifetime manager. Use errors.Is to classify.
var (
	// ErrIO covers filesystem failures and snapshot save failures.
	ErrIO = errors.New("io failure")

	// ErrEntryValidation is returned when desktop entry text is rejected.
	ErrEntryValidation = errors.New("desktop entry failed validation")

	// ErrDuplicateAppID is returned when the app id is already visible to the desktop.
	ErrDuplicateAppID = fmt.Errorf("%w: duplicate app id", ErrEntryValidation)

	// ErrIconValidation is returned when an icon payload is rejected.
	ErrIconValidation = errors.New("icon failed validation")

	// ErrNotSquare is returned for raster icons whose width differs from their height.
	ErrNotSquare = fmt.Errorf("%w: icon is not square", ErrIconValidation)

	// ErrNoTypeFound is returned when the payload is neither a raster image nor SVG text.
	ErrNoTypeFound = fmt.Errorf("%w: icon data matches neither a raster image nor UTF-8 encoded SVG", ErrIconValidation)

	// ErrPathCollision is returned when the destination file already exists.
	ErrPathCollision = errors.New("path collision")

	// ErrSnapshotCodec is returned when the catalog snapshot cannot be encoded or decoded.
	ErrSnapshotCodec = errors.New("snapshot codec failure")

	// ErrInvalidName is returned for app ids or icon names that are unsafe as file names.
	ErrInvalidName = errors.New("invalid name")
)

// PathCollisionError reports the destination that already exists.
type PathCollisionError struct {
	Path string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("path collision: %s already exists", e.Path)
}

// Is makes errors.Is(err, ErrPathCollision) match.
func (e *PathCollisionError) Is(target error) bool {
	return target == ErrPathCollision
}
