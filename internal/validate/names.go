package validate

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

// CheckName rejects names that cannot be used verbatim as a file stem.
func CheckName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", domain.ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", domain.ErrInvalidName, name)
	}
	return nil
}
