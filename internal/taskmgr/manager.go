// Package taskmgr provides a pool of named concurrent tasks that can be
// paused, resumed and stopped independently. It knows nothing about
// monitoring; the monitor engine and the heartbeat publisher both run
// their loops under it.
package taskmgr

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// ID identifies a task for the lifetime of the manager. IDs are
// monotonically increasing and never reused.
type ID uint64

type State int

const (
	StateRunning State = iota
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "INVALID"
	}
}

var (
	ErrCapacityExceeded = errors.New("taskmgr: capacity exceeded")
	ErrNotFound         = errors.New("taskmgr: task not found")
)

// EntryPoint is the body of a task. The manager passes the task its own
// id so the body can call Checkpoint and Wait without looking itself up.
type EntryPoint func(id ID, arg any)

// Info is the introspection view of a live task.
type Info struct {
	State State
	Arg   any
}

const DefaultCapacity = 128

type task struct {
	state State
	arg   any
	cond  *sync.Cond    // shares the manager mutex; broadcast on state change
	stop  chan struct{} // closed when the task is stopped
	done  chan struct{} // closed when the task body has returned
}

// Manager owns task bookkeeping. A single mutex serializes all state
// changes; blocked checkpoints wait on a per-task condition and hold no
// lock while suspended.
type Manager struct {
	mu     sync.Mutex
	tasks  map[ID]*task
	nextID ID
	max    int
	wg     sync.WaitGroup
}

type Option func(*Manager)

// WithCapacity caps the number of concurrently live tasks.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{
		tasks: make(map[ID]*task),
		max:   DefaultCapacity,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts fn(id, arg) as a new task in the RUNNING state and
// returns its id. It fails with ErrCapacityExceeded when the live task
// count has reached the configured capacity.
func (m *Manager) Create(fn EntryPoint, arg any) (ID, error) {
	m.mu.Lock()
	if len(m.tasks) >= m.max {
		m.mu.Unlock()
		return 0, ErrCapacityExceeded
	}
	m.nextID++
	id := m.nextID
	t := &task{
		state: StateRunning,
		arg:   arg,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	t.cond = sync.NewCond(&m.mu)
	m.tasks[id] = t
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.finish(id, t)
		fn(id, arg)
	}()
	return id, nil
}

func (m *Manager) finish(id ID, t *task) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
	close(t.done)
}

// Pause marks the task PAUSED. The task keeps executing until its next
// Checkpoint; in-flight work is never interrupted.
func (m *Manager) Pause(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.state == StateRunning {
		t.state = StatePaused
	}
	return nil
}

// Resume puts a PAUSED task back into RUNNING and wakes its checkpoint.
func (m *Manager) Resume(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.state == StatePaused {
		t.state = StateRunning
		t.cond.Broadcast()
	}
	return nil
}

// Checkpoint is called from inside a task body. It blocks, without
// consuming CPU, for as long as the task is PAUSED and returns the
// current state otherwise. Unknown ids report StateStopped so a stale
// caller simply exits.
func (m *Manager) Checkpoint(id ID) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return StateStopped
	}
	for t.state == StatePaused {
		t.cond.Wait()
	}
	return t.state
}

// Wait sleeps for d on behalf of the task. It returns early with false
// when the task is stopped during the wait, true after the full
// duration otherwise.
func (m *Manager) Wait(id ID, d time.Duration) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.stop:
		return false
	case <-timer.C:
		return true
	}
}

// Stop transitions the task to STOPPED. The body observes this at its
// next Checkpoint or Wait and is expected to return promptly.
func (m *Manager) Stop(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	stopLocked(t)
	return nil
}

// StopAll stops every live task.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		stopLocked(t)
	}
}

func stopLocked(t *task) {
	if t.state == StateStopped {
		return
	}
	t.state = StateStopped
	close(t.stop)
	t.cond.Broadcast()
}

// WaitExit blocks until the task body has returned or the timeout
// elapses. Ids the manager no longer knows have already exited.
func (m *Manager) WaitExit(id ID, timeout time.Duration) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Count reports the number of live tasks.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// IDs lists live task ids in ascending order.
func (m *Manager) IDs() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]ID, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Info returns the state and creation argument of a live task.
func (m *Manager) Info(id ID) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{State: t.state, Arg: t.arg}, nil
}

// Destroy stops every task, waits for all bodies to return and clears
// the bookkeeping. Used at process shutdown.
func (m *Manager) Destroy() {
	m.StopAll()
	m.wg.Wait()
	m.mu.Lock()
	m.tasks = make(map[ID]*task)
	m.mu.Unlock()
}
