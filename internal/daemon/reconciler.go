// Package daemon implements the reconciler loop and the D-Bus service.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/metrics"
)

// LifetimeReaper is the part of the lifetime manager the reconciler drives.
type LifetimeReaper interface {
	ProcessPIDs() []uint32
	RemoveLifetime(lt domain.Lifetime, reason string) error
	PruneChangeHandlers(alive func(pid uint32) (bool, error)) int
}

// ReconcilerConfig holds reconciler configuration.
type ReconcilerConfig struct {
	Interval time.Duration // How often to check owner liveness
}

// DefaultReconcilerConfig returns default reconciler configuration.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval: 2 * time.Second,
	}
}

// Reconciler removes process lifetimes and change handlers whose owning
// process has exited.
type Reconciler struct {
	config  ReconcilerConfig
	reaper  LifetimeReaper
	oracle  domain.LivenessOracle
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewReconciler creates a new reconciler. mt may be nil.
func NewReconciler(
	config ReconcilerConfig,
	reaper LifetimeReaper,
	oracle domain.LivenessOracle,
	mt *metrics.Metrics,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		config:  config,
		reaper:  reaper,
		oracle:  oracle,
		metrics: mt,
		logger:  logger,
	}
}

// Run reconciles once immediately and then on every tick.
// This blocks until context is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler started", zap.Duration("interval", r.config.Interval))

	r.Reconcile()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return ctx.Err()

		case <-ticker.C:
			r.Reconcile()
		}
	}
}

// Reconcile runs a single pass over process lifetimes and change handlers.
// An oracle error counts as alive for this pass.
func (r *Reconciler) Reconcile() {
	r.metrics.ObserveReconcile()

	for _, pid := range r.reaper.ProcessPIDs() {
		alive, err := r.oracle.IsAlive(pid)
		if err != nil {
			r.logger.Warn("liveness check failed, keeping lifetime",
				zap.Uint32("pid", pid),
				zap.Error(err))
			continue
		}
		if alive {
			continue
		}

		r.logger.Info("owner exited, removing process lifetime", zap.Uint32("pid", pid))
		if err := r.reaper.RemoveLifetime(domain.ProcessLifetime(pid), metrics.ReasonReconcile); err != nil {
			r.logger.Error("failed to remove process lifetime",
				zap.Uint32("pid", pid),
				zap.Error(err))
		}
	}

	if dropped := r.reaper.PruneChangeHandlers(r.oracle.IsAlive); dropped > 0 {
		r.logger.Debug("pruned change handlers", zap.Int("dropped", dropped))
	}
}
