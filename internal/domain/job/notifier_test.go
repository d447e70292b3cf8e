package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeSignal_NotifyWakesSubscriber(t *testing.T) {
	s := NewNotifier()
	cancel, ch := s.Subscribe()
	defer cancel()

	assert.Equal(t, 1, s.Notify())
	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no wake-up delivered")
	}
}

func TestWakeSignal_BusySubscriberCoalesces(t *testing.T) {
	s := NewNotifier()
	cancel, ch := s.Subscribe()
	defer cancel()

	assert.Equal(t, 1, s.Notify())
	for range 4 {
		assert.Zero(t, s.Notify())
	}
	assert.Len(t, ch, 1)
}

func TestWakeSignal_CancelIsIdempotent(t *testing.T) {
	s := NewNotifier()
	cancel, ch := s.Subscribe()
	_, other := s.Subscribe()
	require.Equal(t, 2, s.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 1, s.Subscribers())

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 1, s.Notify())
	assert.Len(t, other, 1)
}

func TestWakeSignal_StopClosesEverything(t *testing.T) {
	s := NewNotifier()
	_, first := s.Subscribe()
	_, second := s.Subscribe()
	s.Notify()

	s.Stop()

	_, ok := <-first
	assert.False(t, ok, "pending wake-up must not survive Stop")
	_, ok = <-second
	assert.False(t, ok)
	assert.Zero(t, s.Subscribers())

	_, late := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	assert.Zero(t, s.Notify())
}
