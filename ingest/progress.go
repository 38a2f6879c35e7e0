package ingest

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker reports page-level ingestion progress to a writer, typically
// os.Stderr. It is safe for concurrent use by pool workers.
type Tracker struct {
	writer         io.Writer
	total          int
	done           int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewTracker creates a tracker over total pages, reporting every
// reportInterval completions.
func NewTracker(writer io.Writer, total, reportInterval int) *Tracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &Tracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
	t.started = true
	t.done = 0
	t.failed = 0
	t.lastReported = 0
}

// PageDone records one completed page.
func (t *Tracker) PageDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.done++
	t.maybeReport()
}

// PageFailed records one failed page. Failures count toward progress so
// the bar still reaches the end of a bad run.
func (t *Tracker) PageFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.done++
	t.failed++
	t.maybeReport()
}

// Finish prints the final progress line.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.report()
	fmt.Fprintln(t.writer)
}

// Elapsed returns time since Start.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	return time.Since(t.startTime)
}

// maybeReport prints when a report interval was crossed. Lock held.
func (t *Tracker) maybeReport() {
	if t.done-t.lastReported >= t.reportInterval {
		t.report()
		t.lastReported = t.done
	}
}

// report prints the current progress. Lock held.
func (t *Tracker) report() {
	elapsed := time.Since(t.startTime)
	rate := float64(t.done) / elapsed.Seconds()

	percentage := 0.0
	if t.total > 0 {
		percentage = float64(t.done) / float64(t.total) * 100.0
	}

	fmt.Fprintf(t.writer, "\rProgress: %d/%d (%.1f%%) - %d failed - %.1f pages/s",
		t.done, t.total, percentage, t.failed, rate)
}
