package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/upload-go/internal/jobs"
)

func testJob(name string, size int64, status jobs.Status) jobs.Job {
	return jobs.Job{DisplayName: name, Size: size, Status: status}
}

func TestJobView_PlainReportsStartAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, false, false)

	v.RowInserted(0, testJob("a.txt", 5, jobs.Starting()))
	v.RowInserted(1, testJob("b.txt", 2048, jobs.Starting()))
	v.RowChanged(0, testJob("a.txt", 5, jobs.InProgress(50)))
	v.RowChanged(0, testJob("a.txt", 5, jobs.Finished()))
	v.RowChanged(1, testJob("b.txt", 2048, jobs.Failed(errors.New("boom"))))

	assert.Equal(t, "uploading a.txt (5 B)\n"+
		"uploading b.txt (2.0 KB)\n"+
		"uploaded a.txt\n"+
		"b.txt failed: boom\n", buf.String())
}

func TestJobView_QuietHidesStartAndCancel(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, false, true)

	v.RowInserted(0, testJob("a.txt", 5, jobs.Starting()))
	v.RowChanged(0, testJob("a.txt", 5, jobs.Canceled()))
	v.RowChanged(0, testJob("a.txt", 5, jobs.Canceled()))

	assert.Empty(t, buf.String(), "quiet hides start and cancel")
}

func TestJobView_QuietStillShowsFailures(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, false, true)

	v.RowInserted(0, testJob("a.txt", 5, jobs.Starting()))
	v.RowChanged(0, testJob("a.txt", 5, jobs.Failed(errors.New("too large"))))

	assert.Equal(t, "a.txt failed: too large\n", buf.String())
}

func TestJobView_LiveRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, true, false)

	now := time.Unix(1000, 0)
	v.now = func() time.Time { return now }

	v.RowInserted(0, testJob("a.txt", 5, jobs.Starting()))

	first := buf.String()
	assert.True(t, strings.HasPrefix(first, ansiClearBelow))
	assert.Contains(t, first, "a.txt")

	buf.Reset()

	// Progress inside the throttle window is not drawn.
	v.RowChanged(0, testJob("a.txt", 5, jobs.InProgress(40)))
	assert.Empty(t, buf.String())

	now = now.Add(redrawInterval)
	v.RowChanged(0, testJob("a.txt", 5, jobs.InProgress(60)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b[2A"+ansiClearBelow), "moves up over header and one row")
	assert.Contains(t, out, "60%")

	buf.Reset()

	// Terminal changes are drawn at once.
	v.RowChanged(0, testJob("a.txt", 5, jobs.Finished()))
	assert.Contains(t, buf.String(), "finished")
}

func TestJobView_LiveRemove(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, true, false)

	v.RowInserted(0, testJob("a.txt", 5, jobs.Starting()))
	v.RowInserted(1, testJob("b.txt", 5, jobs.Starting()))

	buf.Reset()
	v.RowRemoved(0, testJob("a.txt", 5, jobs.Starting()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b[3A"))
	assert.NotContains(t, out, "a.txt")
	assert.Contains(t, out, "b.txt")
}

func TestJobView_IgnoresOutOfRangeIndex(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, false, false)

	v.RowChanged(3, testJob("x", 1, jobs.Finished()))
	v.RowRemoved(-1, testJob("x", 1, jobs.Finished()))

	assert.Empty(t, buf.String())
}

func TestJobView_SuspendHoldsRedrawsAndResumeStartsFresh(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, true, false)

	v.RowInserted(0, testJob("a.txt", 5, jobs.Starting()))
	v.Suspend()

	buf.Reset()
	v.RowChanged(0, testJob("a.txt", 5, jobs.Finished()))
	v.RowInserted(1, testJob("b.txt", 5, jobs.Starting()))
	assert.Empty(t, buf.String(), "nothing is drawn over a prompt")

	// Lines written by the prompt are not part of the table.
	buf.WriteString("Username: alice\nPassword: \n")
	v.Resume()

	out := strings.TrimPrefix(buf.String(), "Username: alice\nPassword: \n")
	assert.True(t, strings.HasPrefix(out, ansiClearBelow), "resume must not move the cursor over the prompt")
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "b.txt")

	buf.Reset()
	v.RowChanged(1, testJob("b.txt", 5, jobs.Finished()))
	assert.True(t, strings.HasPrefix(buf.String(), "\x1b[3A"), "later redraws cover only the table")
}

func TestJobView_ResumeIsQuietWhenNotLive(t *testing.T) {
	var buf bytes.Buffer
	v := newJobView(&buf, false, false)

	v.Suspend()
	v.Resume()

	assert.Empty(t, buf.String())
}
