package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"labflow/internal/collector"
	"labflow/internal/core"
)

func TestNewProgress(t *testing.T) {
	c := collector.NewCollector()

	progress := NewProgress(c, false)

	if progress.collector != c {
		t.Error("collector not assigned")
	}
	if progress.quiet {
		t.Error("quiet should be false")
	}
}

func TestNewProgress_Quiet(t *testing.T) {
	c := collector.NewCollector()

	progress := NewProgress(c, true)

	if !progress.quiet {
		t.Error("quiet should be true")
	}
}

func TestProgress_QuietMode(t *testing.T) {
	c := collector.NewCollector()

	progress := NewProgress(c, true) // quiet mode

	// Start and stop should not panic in quiet mode
	progress.Start()
	time.Sleep(10 * time.Millisecond)
	progress.Stop()
}

func TestProgress_DoubleStop(t *testing.T) {
	c := collector.NewCollector()

	progress := NewProgress(c, true)
	progress.Start()

	// Double stop should not panic
	progress.Stop()
	progress.Stop()
}

func TestProgress_StopWithoutStart(t *testing.T) {
	c := collector.NewCollector()

	progress := NewProgress(c, false)

	// Stop without start should not panic
	progress.Stop()
}

func TestProgress_Print(t *testing.T) {
	c := collector.NewCollector()

	var buf bytes.Buffer
	progress := NewProgress(c, false)
	progress.SetOutput(&buf)

	progress.Print("Plan: chemostat (12 steps)")

	output := buf.String()

	// Should contain the escape sequence to clear line before message
	if !strings.Contains(output, "\033[K") {
		t.Error("expected output to contain line clear escape sequence")
	}

	// Should contain the message
	if !strings.Contains(output, "Plan: chemostat (12 steps)") {
		t.Errorf("expected output to contain message, got: %q", output)
	}

	// Message should end with newline
	if !strings.Contains(output, "Plan: chemostat (12 steps)\n") {
		t.Error("expected message to end with newline")
	}
}

func TestProgress_Print_QuietModeDoesNotPrint(t *testing.T) {
	c := collector.NewCollector()

	var buf bytes.Buffer
	progress := NewProgress(c, true) // quiet mode
	progress.SetOutput(&buf)

	progress.Print("Plan: test")

	output := buf.String()

	// In quiet mode, Print should not output
	if output != "" {
		t.Errorf("expected no output in quiet mode, got: %q", output)
	}
}

func TestProgress_Printf(t *testing.T) {
	c := collector.NewCollector()

	var buf bytes.Buffer
	progress := NewProgress(c, false)
	progress.SetOutput(&buf)

	progress.Printf("Plan: %s (steps: %d)", "chemostat", 10)

	output := buf.String()

	if !strings.Contains(output, "Plan: chemostat (steps: 10)\n") {
		t.Errorf("expected formatted message, got: %q", output)
	}
}

func TestProgress_SetOutput(t *testing.T) {
	c := collector.NewCollector()

	var buf1, buf2 bytes.Buffer
	progress := NewProgress(c, false)

	progress.SetOutput(&buf1)
	progress.Print("message1")

	progress.SetOutput(&buf2)
	progress.Print("message2")

	if !strings.Contains(buf1.String(), "message1") {
		t.Error("expected message1 in buf1")
	}
	if !strings.Contains(buf2.String(), "message2") {
		t.Error("expected message2 in buf2")
	}
	if strings.Contains(buf1.String(), "message2") {
		t.Error("buf1 should not contain message2")
	}
}

func TestProgress_Line(t *testing.T) {
	c := collector.NewCollector()
	c.RunStarted("r", 5, time.Now())
	c.Report(core.Event{Kind: core.KindMeasurement, Outcome: core.OutcomeExecuted})
	c.Report(core.Event{Kind: core.KindMeasurement, Outcome: core.OutcomeExecuted})
	c.Report(core.Event{Kind: core.KindAction, Outcome: core.OutcomeSkipped})

	progress := NewProgress(c, false)
	got := progress.Line(time.Hour + 2*time.Minute + 3*time.Second)

	want := "[01:02:03] step 3/5 | measurements 2 | skipped 1"
	if got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}

func TestProgress_TickerPrints(t *testing.T) {
	c := collector.NewCollector()
	c.RunStarted("r", 1, time.Now())

	var buf syncBuffer
	progress := NewProgress(c, false)
	progress.SetOutput(&buf)
	progress.SetInterval(5 * time.Millisecond)

	progress.Start()
	time.Sleep(30 * time.Millisecond)
	progress.Stop()

	if !strings.Contains(buf.String(), "step 0/1") {
		t.Errorf("expected status line, got: %q", buf.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
