// Package probe implements reachability checks. The monitor engine
// consumes these through its own Prober interface, so alternative
// probes can be swapped in without touching the engine.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// ErrUnreachable reports a probe that got no reply within its timeout.
var ErrUnreachable = errors.New("probe: host unreachable")

// Pinger probes addresses with the system ping utility, one echo
// request per probe.
type Pinger struct{}

func NewPinger() *Pinger { return &Pinger{} }

var timePattern = regexp.MustCompile(`time[=<]([0-9.]+)`)

// Probe runs a single ping against address. The timeout is rounded up
// to whole seconds, the finest granularity -W accepts on common ping
// builds; the surrounding context deadline enforces the real bound.
func (p *Pinger) Probe(ctx context.Context, address string, timeout time.Duration) (time.Duration, error) {
	secs := int((timeout + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	cctx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+time.Second)
	defer cancel()

	start := time.Now()
	out, err := exec.CommandContext(cctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), address).CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnreachable, address)
	}
	if lat, ok := parseLatency(out); ok {
		return lat, nil
	}
	// No time= figure in the output; fall back to wall-clock elapsed.
	return elapsed, nil
}

// parseLatency extracts the round-trip figure from ping output, e.g.
// "64 bytes from 1.1.1.1: icmp_seq=1 ttl=58 time=12.3 ms".
func parseLatency(out []byte) (time.Duration, bool) {
	m := timePattern.FindSubmatch(out)
	if m == nil {
		return 0, false
	}
	ms, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}
