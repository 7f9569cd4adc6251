package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestartBudget_RollingWindow(t *testing.T) {
	b := RestartBudget{Limit: 2, Window: 3}

	b.RecordCycle(true)
	b.RecordCycle(true)
	assert.False(t, b.Exceeded())

	b.RecordCycle(true)
	assert.True(t, b.Exceeded(), "3 restarts within a window of 3 should exceed a limit of 2")

	// Window slides: the oldest entry (cycle 1) drops off.
	b.RecordCycle(false)
	assert.False(t, b.Exceeded(), "2 restarts left in the window (cycles 2,3) do not exceed a limit of 2")

	b.RecordCycle(false)
	assert.False(t, b.Exceeded(), "only cycle 3's restart remains in the window")
}

func TestRestartBudget_DisabledByNonPositiveLimit(t *testing.T) {
	b := RestartBudget{Limit: 0, Window: 3}
	for i := 0; i < 10; i++ {
		b.RecordCycle(true)
	}
	assert.False(t, b.Exceeded())
}

func TestRestartBudget_Reset(t *testing.T) {
	b := RestartBudget{Limit: 1, Window: 2}
	b.RecordCycle(true)
	b.RecordCycle(true)
	assert.True(t, b.Exceeded())

	b.Reset()
	assert.False(t, b.Exceeded())
	assert.Equal(t, 0, b.Count())
}
