package job

import "sync"

// Notifier wakes idle consumers when jobs become available.
type Notifier interface {
	// Subscribe returns a cancel func and a channel that receives a value per wake-up.
	// The channel is closed once the subscription is cancelled or the notifier stops.
	Subscribe() (func(), <-chan struct{})
	// Notify wakes every subscriber and reports how many were idle.
	Notify() int
	// Stop closes every subscription. Later subscriptions start closed.
	Stop()
}

// WakeSignal is the in-process Notifier. A subscriber holds at most one pending
// wake-up; repeated notifications while it is busy collapse into one.
type WakeSignal struct {
	mu      sync.Mutex
	nextID  uint64
	waiters map[uint64]chan struct{}
	stopped bool
}

var _ Notifier = (*WakeSignal)(nil)

// NewNotifier returns an empty WakeSignal.
func NewNotifier() *WakeSignal {
	return &WakeSignal{waiters: map[uint64]chan struct{}{}}
}

func (s *WakeSignal) Subscribe() (func(), <-chan struct{}) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		close(ch)
		return func() {}, ch
	}
	id := s.nextID
	s.nextID++
	s.waiters[id] = ch

	return func() { s.cancel(id) }, ch
}

func (s *WakeSignal) cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.waiters[id]; ok {
		delete(s.waiters, id)
		close(ch)
	}
}

func (s *WakeSignal) Notify() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	woken := 0
	for _, ch := range s.waiters {
		select {
		case ch <- struct{}{}:
			woken++
		default:
		}
	}
	return woken
}

func (s *WakeSignal) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, ch := range s.waiters {
		delete(s.waiters, id)
		// A pending wake-up would otherwise be read before the close.
		select {
		case <-ch:
		default:
		}
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (s *WakeSignal) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
