package main

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/tonimelisma/upload-go/internal/jobs"
)

// redrawInterval throttles progress-only redraws of the live table.
const redrawInterval = 100 * time.Millisecond

// ANSI sequences for the live table.
const (
	ansiCursorUp   = "\x1b[%dA"
	ansiClearBelow = "\x1b[J"
)

// jobView mirrors the job table for display. It implements jobs.Observer.
// On a terminal it redraws the whole table in place; otherwise it prints
// one line per job when it starts and when it ends.
type jobView struct {
	mu    sync.Mutex
	w     io.Writer
	live  bool
	quiet bool
	rows  []jobs.Job
	drawn int
	last  time.Time
	now   func() time.Time

	// suspended holds off redraws while something else writes to the
	// terminal.
	suspended bool
}

func newJobView(w io.Writer, live, quiet bool) *jobView {
	return &jobView{w: w, live: live, quiet: quiet, now: time.Now}
}

func (v *jobView) RowInserted(index int, job jobs.Job) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rows = slices.Insert(v.rows, index, job)

	if v.live {
		v.redraw(true)
		return
	}

	if !v.quiet {
		fmt.Fprintf(v.w, "uploading %s (%s)\n", job.DisplayName, formatSize(job.Size))
	}
}

func (v *jobView) RowChanged(index int, job jobs.Job) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if index < 0 || index >= len(v.rows) {
		return
	}

	wasTerminal := v.rows[index].Status.IsTerminal()
	v.rows[index] = job

	if v.live {
		v.redraw(job.Status.IsTerminal())
		return
	}

	if job.Status.IsTerminal() && !wasTerminal {
		v.report(job)
	}
}

func (v *jobView) RowRemoved(index int, _ jobs.Job) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if index < 0 || index >= len(v.rows) {
		return
	}

	v.rows = slices.Delete(v.rows, index, index+1)

	if v.live {
		v.redraw(true)
	}
}

// Flush draws the final state of the live table.
func (v *jobView) Flush() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.live {
		v.redraw(true)
	}
}

// Suspend stops redrawing until Resume. Row changes are still recorded.
func (v *jobView) Suspend() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.suspended = true
}

// Resume draws the table again below whatever was written meanwhile.
func (v *jobView) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.suspended = false
	v.drawn = 0

	if v.live {
		v.redraw(true)
	}
}

// report prints the outcome of a job. Failures are shown even when quiet.
func (v *jobView) report(job jobs.Job) {
	switch job.Status.State {
	case jobs.StateFinished:
		if !v.quiet {
			fmt.Fprintf(v.w, "uploaded %s\n", job.DisplayName)
		}
	case jobs.StateCanceled:
		if !v.quiet {
			fmt.Fprintf(v.w, "canceled %s\n", job.DisplayName)
		}
	case jobs.StateFailed:
		fmt.Fprintf(v.w, "%s %s\n", job.DisplayName, formatStatus(job.Status))
	}
}

// redraw repaints the table over the previous one. Progress-only changes
// are throttled; force is set for structural and terminal changes.
func (v *jobView) redraw(force bool) {
	if v.suspended {
		return
	}

	now := v.now()
	if !force && now.Sub(v.last) < redrawInterval {
		return
	}

	v.last = now

	rows := make([][]string, len(v.rows))
	for i, j := range v.rows {
		rows[i] = jobRow(j)
	}

	var buf bytes.Buffer

	if v.drawn > 0 {
		fmt.Fprintf(&buf, ansiCursorUp, v.drawn)
	}

	buf.WriteString(ansiClearBelow)
	printTable(&buf, jobHeaders, rows)

	v.drawn = len(rows) + 1

	_, _ = v.w.Write(buf.Bytes()) //nolint:errcheck // terminal output is best-effort
}
