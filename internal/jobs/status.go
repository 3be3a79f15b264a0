// Package jobs holds the upload job table: an insertion-ordered collection of
// upload jobs that is the single source of truth for presentation. Transfer
// events are applied to rows by handle; terminal rows never change again.
package jobs

import (
	"fmt"
)

// State is the lifecycle phase of a job.
type State int

// Job states. Starting and InProgress are live; the rest are terminal.
const (
	StateStarting State = iota
	StateInProgress
	StateFinished
	StateCanceled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	case StateCanceled:
		return "canceled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a tagged job status. Percent is meaningful only for
// StateInProgress and Reason only for StateFailed.
type Status struct {
	State   State
	Percent int
	Reason  error
}

// Starting is the status of a job whose request has not reported any bytes.
func Starting() Status { return Status{State: StateStarting} }

// InProgress returns an in-progress status, clamping percent to [0,100].
func InProgress(percent int) Status {
	return Status{State: StateInProgress, Percent: clampPercent(percent)}
}

// Finished is the status of a job the server accepted.
func Finished() Status { return Status{State: StateFinished, Percent: maxPercent} }

// Canceled is the status of a job aborted by the caller.
func Canceled() Status { return Status{State: StateCanceled} }

// Failed returns a failed status carrying the cause.
func Failed(reason error) Status { return Status{State: StateFailed, Reason: reason} }

// IsTerminal reports whether no further transition can leave this status.
func (s Status) IsTerminal() bool {
	return s.State == StateFinished || s.State == StateCanceled || s.State == StateFailed
}

// String renders the status the way the job list shows it.
func (s Status) String() string {
	switch s.State {
	case StateStarting:
		return "Starting"
	case StateInProgress:
		return fmt.Sprintf("%d%%", s.Percent)
	case StateFinished:
		return "Done"
	case StateCanceled:
		return "Canceled"
	case StateFailed:
		return "Error"
	default:
		return s.State.String()
	}
}

// canAdvance reports whether next may replace s. Terminal statuses are
// final, nothing moves back to Starting, and progress never goes backwards.
func (s Status) canAdvance(next Status) bool {
	if s.IsTerminal() {
		return false
	}

	switch next.State {
	case StateStarting:
		return false
	case StateInProgress:
		return s.State == StateStarting || next.Percent >= s.Percent
	default:
		return true
	}
}

const maxPercent = 100

// Percent converts a byte count into a whole percentage. bytesTotal may be
// zero or negative when the size is unknown; the result is then 0.
func Percent(bytesSent, bytesTotal int64) int {
	if bytesSent <= 0 || bytesTotal <= 0 {
		return 0
	}

	if bytesSent >= bytesTotal {
		return maxPercent
	}

	return int(bytesSent * maxPercent / bytesTotal)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > maxPercent:
		return maxPercent
	default:
		return p
	}
}
