package taskmgr

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// blockUntilStopped is a task body that parks until its task is stopped.
func blockUntilStopped(m *Manager) EntryPoint {
	return func(id ID, _ any) {
		m.Wait(id, time.Hour)
	}
}

func eventually(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

func TestCreate_AssignsMonotonicIDs(t *testing.T) {
	m := New()
	defer m.Destroy()

	var ids []ID
	for i := 0; i < 3; i++ {
		id, err := m.Create(blockUntilStopped(m), i)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, id)
	}
	if ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("expected ids 1,2,3 got %v", ids)
	}
	if got := m.Count(); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
	got := m.IDs()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("IDs = %v", got)
	}
}

func TestCreate_CapacityExceeded(t *testing.T) {
	m := New(WithCapacity(2))
	defer m.Destroy()

	for i := 0; i < 2; i++ {
		if _, err := m.Create(blockUntilStopped(m), i); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	if _, err := m.Create(blockUntilStopped(m), 2); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestPauseResume_SuspendsLoopAtCheckpoint(t *testing.T) {
	m := New()
	defer m.Destroy()

	var n atomic.Int64
	id, err := m.Create(func(id ID, _ any) {
		for {
			if m.Checkpoint(id) == StateStopped {
				return
			}
			n.Add(1)
			if !m.Wait(id, time.Millisecond) {
				return
			}
		}
	}, "loop")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	eventually(t, time.Second, func() bool { return n.Load() > 2 })

	if err := m.Pause(id); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	// One in-flight iteration may still land after Pause returns.
	time.Sleep(20 * time.Millisecond)
	before := n.Load()
	time.Sleep(30 * time.Millisecond)
	if after := n.Load(); after != before {
		t.Fatalf("task kept running while paused: %d -> %d", before, after)
	}

	info, err := m.Info(id)
	if err != nil || info.State != StatePaused {
		t.Fatalf("Info = %+v, %v; want PAUSED", info, err)
	}

	if err := m.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	eventually(t, time.Second, func() bool { return n.Load() > before })
}

func TestStop_InterruptsWait(t *testing.T) {
	m := New()
	defer m.Destroy()

	id, err := m.Create(blockUntilStopped(m), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // let the body reach its Wait

	if err := m.Stop(id); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !m.WaitExit(id, time.Second) {
		t.Fatal("task did not exit after Stop")
	}
	if got := m.Count(); got != 0 {
		t.Fatalf("Count = %d after exit, want 0", got)
	}
}

func TestStop_UnknownID(t *testing.T) {
	m := New()
	defer m.Destroy()
	if err := m.Stop(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Pause(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Resume(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckpoint_UnknownIDReportsStopped(t *testing.T) {
	m := New()
	defer m.Destroy()
	if got := m.Checkpoint(99); got != StateStopped {
		t.Fatalf("Checkpoint(unknown) = %v, want STOPPED", got)
	}
}

func TestInfo_LocatesTaskByArgument(t *testing.T) {
	m := New()
	defer m.Destroy()

	want := "heartbeat"
	wantID, err := m.Create(blockUntilStopped(m), want)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(blockUntilStopped(m), "other"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var found ID
	for _, id := range m.IDs() {
		info, err := m.Info(id)
		if err != nil {
			continue
		}
		if info.Arg == want {
			found = id
			break
		}
	}
	if found != wantID {
		t.Fatalf("located id %d, want %d", found, wantID)
	}
}

func TestDestroy_StopsEverythingAndClears(t *testing.T) {
	m := New()
	for i := 0; i < 4; i++ {
		if _, err := m.Create(blockUntilStopped(m), i); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	m.Destroy()
	if got := m.Count(); got != 0 {
		t.Fatalf("Count = %d after Destroy, want 0", got)
	}

	// IDs keep increasing after a Destroy; they are never reused.
	id, err := m.Create(blockUntilStopped(m), nil)
	if err != nil {
		t.Fatalf("Create after Destroy: %v", err)
	}
	if id != 5 {
		t.Fatalf("id after Destroy = %d, want 5", id)
	}
	m.Destroy()
}
