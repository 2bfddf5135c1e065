package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoseStatusTransitions(t *testing.T) {
	assert.True(t, DoseStatusDue.CanTransitionTo(DoseStatusTaken))
	assert.True(t, DoseStatusDue.CanTransitionTo(DoseStatusSkipped))
	assert.False(t, DoseStatusDue.CanTransitionTo(DoseStatusDue))

	// terminal states admit nothing
	for _, terminal := range []DoseStatus{DoseStatusTaken, DoseStatusSkipped} {
		assert.True(t, terminal.Terminal())
		for _, to := range []DoseStatus{DoseStatusDue, DoseStatusTaken, DoseStatusSkipped} {
			assert.False(t, terminal.CanTransitionTo(to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, DoseStatusDue.Terminal())
}

func TestCanSnooze(t *testing.T) {
	event := DoseEvent{Status: DoseStatusDue}
	assert.True(t, event.CanSnooze())

	event.Status = DoseStatusTaken
	assert.False(t, event.CanSnooze())
	event.Status = DoseStatusSkipped
	assert.False(t, event.CanSnooze())
}
