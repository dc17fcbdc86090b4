package infra

import (
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(name string, args ...string) error
	LookPath(name string) (string, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Run executes a command with no stdin/stdout and waits for it to complete
func (r *RealCommandRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// LookPath finds an executable in PATH
func (r *RealCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// DesktopDatabaseStrategy runs update-desktop-database on the applications directory.
type DesktopDatabaseStrategy struct {
	toolPath string
	runner   CommandRunner
}

// NewDesktopDatabaseStrategy creates the entry refresh strategy.
func NewDesktopDatabaseStrategy(runner CommandRunner) *DesktopDatabaseStrategy {
	path, _ := runner.LookPath("update-desktop-database")
	return &DesktopDatabaseStrategy{toolPath: path, runner: runner}
}

func (s *DesktopDatabaseStrategy) Name() string {
	return "update-desktop-database"
}

func (s *DesktopDatabaseStrategy) Handles(kind domain.ResourceKind) bool {
	return kind == domain.ResourceEntry
}

func (s *DesktopDatabaseStrategy) IsAvailable() bool {
	return s.toolPath != ""
}

func (s *DesktopDatabaseStrategy) Refresh(root string) error {
	return s.runner.Run(s.toolPath, filepath.Join(root, "applications"))
}

// IconCacheStrategy runs gtk-update-icon-cache on the hicolor theme directory.
type IconCacheStrategy struct {
	toolPath string
	runner   CommandRunner
}

// NewIconCacheStrategy creates the icon refresh strategy.
func NewIconCacheStrategy(runner CommandRunner) *IconCacheStrategy {
	path, _ := runner.LookPath("gtk-update-icon-cache")
	return &IconCacheStrategy{toolPath: path, runner: runner}
}

func (s *IconCacheStrategy) Name() string {
	return "gtk-update-icon-cache"
}

func (s *IconCacheStrategy) Handles(kind domain.ResourceKind) bool {
	return kind == domain.ResourceIcon
}

func (s *IconCacheStrategy) IsAvailable() bool {
	return s.toolPath != ""
}

func (s *IconCacheStrategy) Refresh(root string) error {
	// -t: no index.theme required, -f: force, -q: quiet
	return s.runner.Run(s.toolPath, "-q", "-t", "-f", filepath.Join(root, "icons", "hicolor"))
}

// RefreshManager implements domain.Refresher by running every available
// strategy for the changed resource kind in the background.
type RefreshManager struct {
	strategies []domain.RefreshStrategy
	logger     *zap.Logger
	spawn      func(func())
}

// NewRefreshManager creates a manager with all strategies available on this system.
func NewRefreshManager(logger *zap.Logger) *RefreshManager {
	runner := &RealCommandRunner{}
	return NewRefreshManagerWithStrategies(logger,
		NewDesktopDatabaseStrategy(runner),
		NewIconCacheStrategy(runner),
	)
}

// NewRefreshManagerWithStrategies creates a manager with custom strategies (for testing).
// Unavailable strategies are dropped.
func NewRefreshManagerWithStrategies(logger *zap.Logger, strategies ...domain.RefreshStrategy) *RefreshManager {
	rm := &RefreshManager{
		strategies: make([]domain.RefreshStrategy, 0, len(strategies)),
		logger:     logger,
		spawn:      func(f func()) { go f() },
	}
	for _, s := range strategies {
		if s.IsAvailable() {
			rm.strategies = append(rm.strategies, s)
		} else {
			logger.Debug("refresh strategy unavailable", zap.String("strategy", s.Name()))
		}
	}
	return rm
}

// GetStrategies returns all available strategies
func (rm *RefreshManager) GetStrategies() []domain.RefreshStrategy {
	return rm.strategies
}

// Refresh is fire-and-forget; failures are only logged.
func (rm *RefreshManager) Refresh(kind domain.ResourceKind, root string) {
	var selected []domain.RefreshStrategy
	for _, s := range rm.strategies {
		if s.Handles(kind) {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return
	}

	rm.spawn(func() {
		for _, s := range selected {
			if err := s.Refresh(root); err != nil {
				rm.logger.Warn("refresh failed",
					zap.String("strategy", s.Name()),
					zap.String("root", root),
					zap.Error(err))
				continue
			}
			rm.logger.Debug("refreshed desktop database",
				zap.String("strategy", s.Name()),
				zap.String("root", root))
		}
	})
}

// Ensure implementations satisfy interfaces
var _ domain.RefreshStrategy = (*DesktopDatabaseStrategy)(nil)
var _ domain.RefreshStrategy = (*IconCacheStrategy)(nil)
var _ domain.Refresher = (*RefreshManager)(nil)
