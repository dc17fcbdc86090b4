// Package validate wraps desktop entry and icon format checks behind the
// uniform error contract used by the lifetime manager.
package validate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

const desktopEntryGroup = "Desktop Entry"

// EntryValidator implements domain.EntryValidator.
type EntryValidator struct {
	installed domain.AppIndex
	logger    *zap.Logger
}

// NewEntryValidator creates a validator. When installed is nil the duplicate
// scan against externally installed entries is skipped.
func NewEntryValidator(installed domain.AppIndex, logger *zap.Logger) *EntryValidator {
	return &EntryValidator{installed: installed, logger: logger}
}

// Validate checks text as the desktop file "<appID>.desktop" and rejects app ids
// that are already installed elsewhere. The text is returned unchanged.
func (v *EntryValidator) Validate(text, appID string) (string, error) {
	if err := CheckName(appID); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrEntryValidation, err)
	}

	v.logger.Debug("validating desktop entry", zap.String("app_id", appID))
	if err := ParseDesktopEntry(text); err != nil {
		v.logger.Warn("desktop entry failed validation",
			zap.String("app_id", appID),
			zap.Error(err))
		return "", fmt.Errorf("%w: %s.desktop: %v", domain.ErrEntryValidation, appID, err)
	}

	if v.installed != nil && v.installed.Contains(appID) {
		return "", fmt.Errorf("%w: %s", domain.ErrDuplicateAppID, appID)
	}

	// TODO: strip or sandbox Exec lines once the shell-side policy for transient launchers is settled.
	return text, nil
}

// ParseDesktopEntry checks the structural rules of a desktop entry file:
// the first group is [Desktop Entry], no keys precede it, Type and Name are
// set, and the keys required by the Type are present.
func ParseDesktopEntry(text string) error {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		KeyValueDelimiters:  "=",
	}, []byte(text))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if len(f.Section(ini.DefaultSection).Keys()) > 0 {
		return fmt.Errorf("key found before the [%s] group", desktopEntryGroup)
	}

	var first string
	for _, name := range f.SectionStrings() {
		if name != ini.DefaultSection {
			first = name
			break
		}
	}
	if first != desktopEntryGroup {
		return fmt.Errorf("first group must be [%s]", desktopEntryGroup)
	}

	sec := f.Section(desktopEntryGroup)
	entryType := strings.TrimSpace(sec.Key("Type").String())
	if entryType == "" {
		return fmt.Errorf("required key Type is missing")
	}
	if strings.TrimSpace(sec.Key("Name").String()) == "" {
		return fmt.Errorf("required key Name is missing")
	}

	switch entryType {
	case "Application":
		dbusActivatable, _ := sec.Key("DBusActivatable").Bool()
		if !dbusActivatable && strings.TrimSpace(sec.Key("Exec").String()) == "" {
			return fmt.Errorf("Application entries require Exec or DBusActivatable=true")
		}
	case "Link":
		if strings.TrimSpace(sec.Key("URL").String()) == "" {
			return fmt.Errorf("Link entries require URL")
		}
	case "Directory":
	default:
		return fmt.Errorf("unknown Type %q", entryType)
	}
	return nil
}

// Ensure EntryValidator implements domain.EntryValidator.
var _ domain.EntryValidator = (*EntryValidator)(nil)
