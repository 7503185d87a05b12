package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress reports how many input files have been processed.
// It is safe for use by concurrent workers.
type Progress struct {
	writer   io.Writer
	total    int
	done     int
	every    int
	reported int
	start    time.Time
	mu       sync.Mutex
}

// NewProgress creates a progress reporter for total files that writes a
// line to w every `every` files. A nil writer disables output.
func NewProgress(w io.Writer, total, every int) *Progress {
	if every < 1 {
		every = 1
	}
	return &Progress{writer: w, total: total, every: every, start: time.Now()}
}

// Done records n more processed files.
func (p *Progress) Done(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = min(p.done+n, p.total)
	if p.done-p.reported >= p.every {
		p.report()
		p.reported = p.done
	}
}

// Finish prints the final line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.report()
	if p.writer != nil {
		fmt.Fprintln(p.writer)
	}
}

// Count returns the number of processed files.
func (p *Progress) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// report prints the current progress. Must be called with lock held.
func (p *Progress) report() {
	if p.writer == nil {
		return
	}
	rate := 0.0
	if s := time.Since(p.start).Seconds(); s > 0 {
		rate = float64(p.done) / s
	}
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rIngested: %d/%d files (%.1f%%) - %.1f files/s",
		p.done, p.total, percentage, rate)
}
