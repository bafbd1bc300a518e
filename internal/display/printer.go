// Package display renders the periodic status table on the terminal.
package display

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hamed0406/ipmon/internal/monitor"
)

// Source yields the engine whose board should be rendered. Implemented
// by the reload coordinator.
type Source interface {
	Current() *monitor.Engine
}

type Printer struct {
	out      io.Writer
	source   Source
	interval time.Duration
}

func New(out io.Writer, source Source, interval time.Duration) *Printer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Printer{out: out, source: source, interval: interval}
}

// Run prints the table immediately, then once per interval until ctx is
// cancelled.
func (p *Printer) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.printOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.printOnce()
		}
	}
}

func (p *Printer) printOnce() {
	eng := p.source.Current()
	if eng == nil || eng.Board() == nil {
		fmt.Fprintln(p.out, "No targets being monitored")
		return
	}
	records := eng.Board().Snapshot()
	if len(records) == 0 {
		fmt.Fprintln(p.out, "No targets being monitored")
		return
	}

	fmt.Fprintf(p.out, "\n=== Target Monitoring Status ===\n")
	fmt.Fprintf(p.out, "%-20s %-10s %-15s %-20s\n", "Address", "Status", "Response Time", "Last Checked")
	fmt.Fprintln(p.out, "----------------------------------------------------------------")
	for _, r := range records {
		checked := "Never"
		if !r.LastChecked.IsZero() {
			checked = r.LastChecked.Format("2006-01-02 15:04:05")
		}
		latency := "N/A"
		if r.Status == monitor.StatusUp && r.LatencyMS != nil {
			latency = fmt.Sprintf("%.0f ms", *r.LatencyMS)
		}
		suffix := ""
		if !r.Active {
			suffix = " (inactive)"
		}
		fmt.Fprintf(p.out, "%-20s %-10s %-15s %-20s%s\n",
			r.Address, r.Status, latency, checked, suffix)
	}
	fmt.Fprintln(p.out, "----------------------------------------------------------------")
}
