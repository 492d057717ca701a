package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualFiresInOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)
	var fired []string

	m.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	m.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	stopped := m.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "stopped") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	m.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"early"}, fired)
	assert.Equal(t, start.Add(150*time.Millisecond), m.Now())
	assert.Equal(t, 1, m.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, 0, m.Pending())
}

func TestManualChainedTimers(t *testing.T) {
	m := NewManual(time.Time{})
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			m.AfterFunc(10*time.Millisecond, tick)
		}
	}
	m.AfterFunc(10*time.Millisecond, tick)

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, 2, count)
	m.Advance(5 * time.Millisecond)
	assert.Equal(t, 3, count)
}

func TestFiredTimerCannotStop(t *testing.T) {
	m := NewManual(time.Time{})
	timer := m.AfterFunc(time.Millisecond, func() {})
	m.Advance(time.Millisecond)
	assert.False(t, timer.Stop())
}
