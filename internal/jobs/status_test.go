package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sent, total int64
		want        int
	}{
		{"nothing sent", 0, 1000, 0},
		{"nothing sent unknown total", 0, 0, 0},
		{"unknown total", 500, 0, 0},
		{"negative total", 500, -1, 0},
		{"half", 500, 1000, 50},
		{"floors", 999, 1000, 99},
		{"complete", 1000, 1000, 100},
		{"overshoot clamps", 1500, 1000, 100},
		{"one byte of many", 1, 1 << 40, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Percent(tt.sent, tt.total))
		})
	}
}

func TestInProgress_Clamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, InProgress(-5).Percent)
	assert.Equal(t, 100, InProgress(250).Percent)
	assert.Equal(t, 42, InProgress(42).Percent)
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Starting", Starting().String())
	assert.Equal(t, "42%", InProgress(42).String())
	assert.Equal(t, "Done", Finished().String())
	assert.Equal(t, "Canceled", Canceled().String())
	assert.Equal(t, "Error", Failed(errors.New("boom")).String())
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, Starting().IsTerminal())
	assert.False(t, InProgress(99).IsTerminal())
	assert.True(t, Finished().IsTerminal())
	assert.True(t, Canceled().IsTerminal())
	assert.True(t, Failed(nil).IsTerminal())
}

func TestStatus_CanAdvance(t *testing.T) {
	t.Parallel()

	terminal := []Status{Finished(), Canceled(), Failed(errors.New("x"))}
	all := append([]Status{Starting(), InProgress(0), InProgress(100)}, terminal...)

	for _, from := range terminal {
		for _, to := range all {
			assert.False(t, from.canAdvance(to), "%v -> %v", from, to)
		}
	}

	assert.True(t, Starting().canAdvance(InProgress(0)))
	assert.True(t, Starting().canAdvance(Finished()))
	assert.True(t, Starting().canAdvance(Canceled()))
	assert.True(t, Starting().canAdvance(Failed(nil)))
	assert.False(t, Starting().canAdvance(Starting()))

	assert.True(t, InProgress(10).canAdvance(InProgress(10)))
	assert.True(t, InProgress(10).canAdvance(InProgress(11)))
	assert.False(t, InProgress(10).canAdvance(InProgress(9)))
	assert.False(t, InProgress(10).canAdvance(Starting()))
	assert.True(t, InProgress(10).canAdvance(Failed(nil)))
}
