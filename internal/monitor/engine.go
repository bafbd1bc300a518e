// Package monitor turns a target registry into a running set of polling
// tasks and the status board they update.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hamed0406/ipmon/internal/registry"
	"github.com/hamed0406/ipmon/internal/taskmgr"
)

// Prober performs one reachability check against an address, returning
// the round-trip latency or an error when the address is unreachable.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) (time.Duration, error)
}

// ErrNoActiveTargets reports that an engine was started from a registry
// with no active targets. The engine runs anyway, with an empty set of
// polling tasks; callers treat this as a warning.
var ErrNoActiveTargets = errors.New("monitor: no active targets")

// stopGrace bounds how long Stop waits for polling tasks to exit.
const stopGrace = 5 * time.Second

// Engine owns one polling task per active target plus the board those
// tasks write to. An engine is started once and stopped once; a reload
// builds a new engine rather than reconfiguring this one.
type Engine struct {
	logger *zap.Logger
	tasks  *taskmgr.Manager
	prober Prober

	id      string
	board   *Board
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	taskIDs []taskmgr.ID
	running atomic.Bool
}

func NewEngine(logger *zap.Logger, tasks *taskmgr.Manager, prober Prober) *Engine {
	return &Engine{
		logger: logger,
		tasks:  tasks,
		prober: prober,
		id:     uuid.NewString(),
	}
}

// ID is the engine generation id used in log correlation.
func (e *Engine) ID() string { return e.id }

// Board exposes the status registry. External callers only reach its
// read methods; the write paths are package-private to the polling tasks.
func (e *Engine) Board() *Board { return e.board }

func (e *Engine) Running() bool { return e.running.Load() }

// Start builds the board (one UNKNOWN record per target, active or not)
// and spawns a polling task for each active target. On task creation
// failure every task started so far is stopped and the error returned.
func (e *Engine) Start(reg *registry.Registry) error {
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.board = newBoard(reg.Targets)
	if reg.ProbeRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(reg.ProbeRate), 1)
	}

	for _, t := range reg.Targets {
		if !t.Active {
			e.logger.Info("target_inactive", zap.String("address", t.Address))
			continue
		}
		tgt := t
		id, err := e.tasks.Create(func(id taskmgr.ID, _ any) {
			e.poll(id, tgt)
		}, tgt.Address)
		if err != nil {
			for _, sid := range e.taskIDs {
				_ = e.tasks.Stop(sid)
			}
			e.cancel()
			return fmt.Errorf("create polling task for %s: %w", tgt.Address, err)
		}
		e.taskIDs = append(e.taskIDs, id)
	}

	e.running.Store(true)
	e.logger.Info("engine_started",
		zap.String("engine_id", e.id),
		zap.Int("targets", len(reg.Targets)),
		zap.Int("active", len(e.taskIDs)),
	)
	if len(e.taskIDs) == 0 {
		e.logger.Warn("engine_no_active_targets", zap.String("engine_id", e.id))
		return ErrNoActiveTargets
	}
	return nil
}

// Stop requests every polling task to stop, then waits up to the grace
// period for them to exit. Once Stop returns, no task of this engine
// writes to the board again. Best-effort; safe to call once per engine.
func (e *Engine) Stop() {
	if !e.running.Swap(false) {
		return
	}
	e.cancel()
	for _, id := range e.taskIDs {
		_ = e.tasks.Stop(id)
	}
	deadline := time.Now().Add(stopGrace)
	for _, id := range e.taskIDs {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if !e.tasks.WaitExit(id, remaining) {
			e.logger.Warn("task_stop_timeout",
				zap.String("engine_id", e.id),
				zap.Uint64("task_id", uint64(id)),
			)
		}
	}
	e.logger.Info("engine_stopped", zap.String("engine_id", e.id))
}

// poll is the per-target loop: checkpoint, probe, apply, sleep. The
// checkpoint carries pause/resume; the sleep wakes early on stop.
func (e *Engine) poll(id taskmgr.ID, t registry.Target) {
	for {
		if e.tasks.Checkpoint(id) == taskmgr.StateStopped {
			return
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(e.ctx); err != nil {
				return
			}
		}

		latency, err := e.prober.Probe(e.ctx, t.Address, t.Timeout)
		now := time.Now()
		switch {
		case err == nil:
			prev, _ := e.board.applySuccess(t.Address, latency, now)
			if prev != StatusUp {
				e.logger.Info("target_up",
					zap.String("address", t.Address),
					zap.Duration("latency", latency),
				)
			}
		case e.ctx.Err() != nil:
			// Probe aborted by engine shutdown; not a target failure.
			return
		default:
			prev, rec := e.board.applyFailure(t.Address, now)
			if rec.Status == StatusDown && prev != StatusDown {
				e.logger.Warn("target_down",
					zap.String("address", t.Address),
					zap.Int("failures", rec.Failures),
				)
			}
		}

		if !e.tasks.Wait(id, t.Interval) {
			return
		}
	}
}
