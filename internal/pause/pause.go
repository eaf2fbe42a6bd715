// Package pause implements the run-wide pause overlay: a single boolean
// written by the hotkey listener and observed by every delivery task.
package pause

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is a one-writer/many-reader pause flag. Readers either poll Paused
// or block in Wait; the writer never blocks. Toggling wakes every waiter,
// so suspended delivery tasks resume without fixed-latency polling.
type State struct {
	paused atomic.Bool

	mu      sync.Mutex
	waiters []chan struct{}
	subs    []chan bool
}

// NewState returns an unpaused State.
func NewState() *State {
	return &State{}
}

// Paused reports the current pause flag.
func (s *State) Paused() bool {
	return s.paused.Load()
}

// Set updates the pause flag and notifies waiters and subscribers.
func (s *State) Set(paused bool) {
	if s.paused.Swap(paused) == paused {
		return
	}
	s.notify(paused)
}

// Toggle flips the pause flag and returns the new value.
func (s *State) Toggle() bool {
	for {
		current := s.paused.Load()
		if s.paused.CompareAndSwap(current, !current) {
			s.notify(!current)
			return !current
		}
	}
}

func (s *State) notify(paused bool) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	subs := append([]chan bool(nil), s.subs...)
	s.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, sub := range subs {
		select {
		case sub <- paused:
		default:
		}
	}
}

// Wait blocks while the state is paused. It returns nil as soon as the
// state is (or becomes) unpaused, or ctx.Err() on cancellation.
func (s *State) Wait(ctx context.Context) error {
	for {
		if !s.paused.Load() {
			return nil
		}

		s.mu.Lock()
		// Re-check under the lock so a Set racing with registration
		// cannot strand this waiter.
		if !s.paused.Load() {
			s.mu.Unlock()
			return nil
		}
		wake := make(chan struct{})
		s.waiters = append(s.waiters, wake)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// Changes returns a channel receiving each pause transition. Slow readers
// miss intermediate transitions rather than blocking the writer. Callers
// must pass the channel to Unsubscribe when done with it.
func (s *State) Changes() <-chan bool {
	sub := make(chan bool, 1)
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub
}

// Unsubscribe removes a channel returned by Changes. A State outlives any
// single run, so subscriptions must not accumulate across runs.
func (s *State) Unsubscribe(ch <-chan bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}
