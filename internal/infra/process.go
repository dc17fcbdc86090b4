// Package infra implements infrastructure concerns (process, filesystem, snapshot store).
package infra

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

// ProcessManager implements domain.LivenessOracle using gopsutil.
type ProcessManager struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{}
}

// IsAlive checks if a PID exists.
func (pm *ProcessManager) IsAlive(pid uint32) (bool, error) {
	if pid == 0 {
		return false, nil
	}
	return process.PidExists(int32(pid))
}

// CurrentPID returns the current process PID.
func (pm *ProcessManager) CurrentPID() uint32 {
	return uint32(os.Getpid())
}

// Ensure ProcessManager implements domain.LivenessOracle.
var _ domain.LivenessOracle = (*ProcessManager)(nil)
