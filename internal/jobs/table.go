package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tonimelisma/upload-go/internal/transfer"
)

// ErrNoSuchRow is returned by Remove for an index outside the table.
var ErrNoSuchRow = errors.New("jobs: no such row")

// Job is one upload attempt. SourcePath, DisplayName, MediaType and Size are
// fixed at creation. Handle is zero once the job reached a terminal status.
type Job struct {
	ID          uuid.UUID
	SourcePath  string
	DisplayName string
	MediaType   string
	Size        int64
	Status      Status
	Handle      transfer.Handle
}

// NewJob builds a Starting job for the given source and handle. The display
// name is the source's already normalized Name.
func NewJob(src transfer.Source, h transfer.Handle) Job {
	return Job{
		ID:          uuid.New(),
		SourcePath:  src.Path,
		DisplayName: src.Name,
		MediaType:   src.MediaType,
		Size:        src.Size,
		Status:      Starting(),
		Handle:      h,
	}
}

// Observer receives row notifications in mutation order. Callbacks run on
// the goroutine that mutated the table and get a snapshot of the row; they
// must not call back into the table.
type Observer interface {
	RowInserted(index int, job Job)
	RowChanged(index int, job Job)
	RowRemoved(index int, job Job)
}

type notification struct {
	kind  notifyKind
	index int
	job   Job
}

type notifyKind int

const (
	notifyInserted notifyKind = iota
	notifyChanged
	notifyRemoved
)

// entry is a row plus its current position, renumbered on Remove.
type entry struct {
	job   Job
	index int
}

// Table is the ordered job collection. Lookups by handle and by ID are map
// backed so the progress path never scans rows.
type Table struct {
	mu       sync.Mutex
	rows     []*entry
	byHandle map[transfer.Handle]*entry
	byID     map[uuid.UUID]*entry

	// deliverMu is taken before mu is released so observers see
	// notifications in the order the mutations happened.
	deliverMu sync.Mutex
	observers []Observer

	logger *slog.Logger
}

// NewTable creates an empty table.
func NewTable(logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}

	return &Table{
		byHandle: make(map[transfer.Handle]*entry),
		byID:     make(map[uuid.UUID]*entry),
		logger:   logger,
	}
}

// Subscribe registers an observer for subsequent notifications.
func (t *Table) Subscribe(o Observer) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.observers = append(t.observers, o)
}

// Append inserts job at the end and returns its row index.
func (t *Table) Append(job Job) int {
	t.mu.Lock()

	e := &entry{job: job, index: len(t.rows)}
	t.rows = append(t.rows, e)
	t.byID[job.ID] = e

	if job.Handle != 0 && !job.Status.IsTerminal() {
		t.byHandle[job.Handle] = e
	}

	t.deliver(notification{kind: notifyInserted, index: e.index, job: job})

	return e.index
}

// UpdateStatus applies status to the job owning h. Unknown handles, terminal
// rows and regressions are ignored. Reports whether the row changed.
func (t *Table) UpdateStatus(h transfer.Handle, status Status) bool {
	t.mu.Lock()

	e, ok := t.byHandle[h]
	if !ok {
		t.mu.Unlock()
		t.logger.Debug("status update for unknown handle dropped",
			slog.Uint64("handle", uint64(h)),
			slog.String("state", status.State.String()),
		)

		return false
	}

	cur := e.job.Status
	if !cur.canAdvance(status) || (cur.State == status.State && cur.Percent == status.Percent) {
		t.mu.Unlock()
		return false
	}

	e.job.Status = status
	if status.IsTerminal() {
		delete(t.byHandle, h)
		e.job.Handle = 0
	}

	t.deliver(notification{kind: notifyChanged, index: e.index, job: e.job})

	return true
}

// Remove deletes the row at index. Later rows shift up by one.
func (t *Table) Remove(index int) error {
	return t.removeEntry(index, nil)
}

// removeEntry removes the row at index; when want is set the row must still
// be that entry, otherwise a concurrent removal moved it.
func (t *Table) removeEntry(index int, want *entry) error {
	t.mu.Lock()

	if want != nil {
		if _, ok := t.byID[want.job.ID]; !ok {
			t.mu.Unlock()
			return fmt.Errorf("%w: job %s", ErrNoSuchRow, want.job.ID)
		}

		index = want.index
	}

	if index < 0 || index >= len(t.rows) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchRow, index)
	}

	e := t.rows[index]
	t.rows = append(t.rows[:index], t.rows[index+1:]...)

	for i := index; i < len(t.rows); i++ {
		t.rows[i].index = i
	}

	delete(t.byID, e.job.ID)

	if e.job.Handle != 0 {
		delete(t.byHandle, e.job.Handle)
	}

	t.deliver(notification{kind: notifyRemoved, index: index, job: e.job})

	return nil
}

// RemoveID deletes the row of the job with the given ID.
func (t *Table) RemoveID(id uuid.UUID) error {
	t.mu.Lock()
	e, ok := t.byID[id]
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: job %s", ErrNoSuchRow, id)
	}

	return t.removeEntry(-1, e)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.rows)
}

// Row returns a snapshot of the row at index.
func (t *Table) Row(index int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.rows) {
		return Job{}, false
	}

	return t.rows[index].job, true
}

// Rows returns snapshots of all rows in order.
func (t *Table) Rows() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Job, len(t.rows))
	for i, e := range t.rows {
		out[i] = e.job
	}

	return out
}

// Lookup returns a snapshot of the job with the given ID and its index.
func (t *Table) Lookup(id uuid.UUID) (Job, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return Job{}, -1, false
	}

	return e.job, e.index, true
}

// LookupHandle returns a snapshot of the live job owning h and its index.
func (t *Table) LookupHandle(h transfer.Handle) (Job, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byHandle[h]
	if !ok {
		return Job{}, -1, false
	}

	return e.job, e.index, true
}

// deliver hands n to observers. Called with mu held; releases it.
func (t *Table) deliver(n notification) {
	t.deliverMu.Lock()
	t.mu.Unlock()
	defer t.deliverMu.Unlock()

	for _, o := range t.observers {
		switch n.kind {
		case notifyInserted:
			o.RowInserted(n.index, n.job)
		case notifyChanged:
			o.RowChanged(n.index, n.job)
		case notifyRemoved:
			o.RowRemoved(n.index, n.job)
		}
	}
}
