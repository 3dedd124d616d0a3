// Package progress prints a periodic status line while an experiment runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"labflow/internal/collector"
	"labflow/internal/core"
)

// DefaultInterval is how often the status line is refreshed.
const DefaultInterval = time.Second

type Progress struct {
	startTime time.Time
	collector *collector.Collector
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

func NewProgress(c *collector.Collector, quiet bool) *Progress {
	return &Progress{
		collector: c,
		interval:  DefaultInterval,
		quiet:     quiet,
		output:    os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// SetInterval changes the refresh interval. Must be called before Start.
func (p *Progress) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

func (p *Progress) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

// Line renders the current status without the leading line-clear sequence.
func (p *Progress) Line(elapsed time.Duration) string {
	s := p.collector.Compute()
	elapsed = elapsed.Round(time.Second)
	hours := int(elapsed.Hours())
	mins := int(elapsed.Minutes()) % 60
	secs := int(elapsed.Seconds()) % 60

	measurements := 0
	if ks, ok := s.Kinds[core.KindMeasurement]; ok {
		measurements = ks.Executed
	}
	return fmt.Sprintf("[%02d:%02d:%02d] step %d/%d | measurements %d | skipped %d",
		hours, mins, secs, s.Progress(), s.PlannedSteps, measurements, s.Skipped)
}

func (p *Progress) printProgress() {
	line := p.Line(time.Since(p.startTime))
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K%s", line)
	p.mu.Unlock()
}

func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K")
	p.mu.Unlock()
}

func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
