// Package reload watches the targets file for changes and swaps the
// running monitor engine when it does. The coordinator is the single
// owner of the current engine and current registry version; nothing
// else holds a mutable reference to either.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/ipmon/internal/monitor"
	"github.com/hamed0406/ipmon/internal/registry"
)

// Source yields registries and their version markers. Implemented by
// registry.FileSource.
type Source interface {
	Version() (time.Time, error)
	Load() (*registry.Registry, error)
}

// EngineFactory builds a fresh, unstarted engine for each generation.
type EngineFactory func() *monitor.Engine

const DefaultCheckInterval = 5 * time.Second

type Coordinator struct {
	logger   *zap.Logger
	source   Source
	factory  EngineFactory
	interval time.Duration

	mu      sync.RWMutex
	engine  *monitor.Engine
	version time.Time
}

func NewCoordinator(logger *zap.Logger, source Source, factory EngineFactory, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Coordinator{
		logger:   logger,
		source:   source,
		factory:  factory,
		interval: interval,
	}
}

// Bootstrap loads the registry and starts the first engine. A load
// failure here is fatal: there is no last-known-good registry yet.
func (c *Coordinator) Bootstrap() error {
	reg, err := c.source.Load()
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	eng := c.factory()
	if err := eng.Start(reg); err != nil && !errors.Is(err, monitor.ErrNoActiveTargets) {
		return fmt.Errorf("start engine: %w", err)
	}
	c.mu.Lock()
	c.engine = eng
	c.version = reg.Version
	c.mu.Unlock()
	return nil
}

// Current returns the engine serving status reads right now.
func (c *Coordinator) Current() *monitor.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Run checks the source for changes on each tick until ctx is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("reload_stopped")
			return
		case <-t.C:
			c.checkOnce()
		}
	}
}

func (c *Coordinator) checkOnce() {
	v, err := c.source.Version()
	if err != nil {
		c.logger.Warn("reload_stat_error", zap.Error(err))
		return
	}
	c.mu.RLock()
	cur := c.version
	c.mu.RUnlock()
	if v.Equal(cur) {
		return
	}

	reg, err := c.source.Load()
	if err != nil {
		// A bad edit must never take down active monitoring: the
		// current engine keeps running on the last-known-good registry.
		c.logger.Error("reload_failed", zap.Error(err))
		return
	}
	c.swap(reg)
}

// swap stops the current engine and starts a new one from reg. If the
// new engine fails to start, the coordinator degrades to a running
// empty engine rather than leaving nothing in place.
func (c *Coordinator) swap(reg *registry.Registry) {
	c.logger.Info("config_changed",
		zap.Int("targets", len(reg.Targets)),
		zap.Int("active", reg.ActiveCount()),
	)

	c.mu.RLock()
	old := c.engine
	c.mu.RUnlock()
	if old != nil {
		old.Stop()
	}

	eng := c.factory()
	err := eng.Start(reg)
	switch {
	case err == nil:
	case errors.Is(err, monitor.ErrNoActiveTargets):
		// Already logged by the engine; still a valid generation.
	default:
		c.logger.Error("engine_start_failed", zap.Error(err))
		eng.Stop()
		eng = c.factory()
		_ = eng.Start(&registry.Registry{Version: reg.Version})
		c.logger.Warn("engine_degraded_empty", zap.String("engine_id", eng.ID()))
	}

	c.mu.Lock()
	c.engine = eng
	c.version = reg.Version
	c.mu.Unlock()
	c.logger.Info("reload_complete",
		zap.String("engine_id", eng.ID()),
		zap.Time("version", reg.Version),
	)
}

// Shutdown stops the current engine. Run must already have returned or
// be about to via context cancellation.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	eng := c.engine
	c.engine = nil
	c.mu.Unlock()
	if eng != nil {
		eng.Stop()
	}
}
