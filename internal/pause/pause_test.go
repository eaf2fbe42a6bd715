package pause

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStartsUnpaused(t *testing.T) {
	s := NewState()
	assert.False(t, s.Paused())
	require.NoError(t, s.Wait(context.Background()))
}

func TestToggle(t *testing.T) {
	s := NewState()
	assert.True(t, s.Toggle())
	assert.True(t, s.Paused())
	assert.False(t, s.Toggle())
	assert.False(t, s.Paused())
}

func TestSetIsIdempotent(t *testing.T) {
	s := NewState()
	changes := s.Changes()

	s.Set(true)
	s.Set(true)

	select {
	case paused := <-changes:
		assert.True(t, paused)
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}

	// The second Set was a no-op: no second notification.
	select {
	case <-changes:
		t.Fatal("unexpected notification for redundant Set")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestWaitBlocksWhilePaused(t *testing.T) {
	s := NewState()
	s.Set(true)

	released := make(chan struct{})
	go func() {
		if err := s.Wait(context.Background()); err == nil {
			close(released)
		}
	}()

	select {
	case <-released:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	s.Set(false)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestWaitWakesAllWaiters(t *testing.T) {
	s := NewState()
	s.Set(true)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Wait(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	s.Set(false)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all waiters woke up")
	}
}

func TestWaitCanceled(t *testing.T) {
	s := NewState()
	s.Set(true)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Wait(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	s := NewState()
	first := s.Changes()
	second := s.Changes()

	s.Unsubscribe(first)

	s.mu.Lock()
	remaining := len(s.subs)
	s.mu.Unlock()
	assert.Equal(t, 1, remaining)

	s.Set(true)
	select {
	case paused := <-second:
		assert.True(t, paused)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber missed the notification")
	}
	select {
	case <-first:
		t.Fatal("unsubscribed channel still receives notifications")
	case <-time.After(20 * time.Millisecond):
	}

	// Unknown channels are ignored.
	s.Unsubscribe(first)
	s.Unsubscribe(make(chan bool))
}

func TestRepeatedSubscribeUnsubscribeDoesNotAccumulate(t *testing.T) {
	s := NewState()
	for i := 0; i < 100; i++ {
		ch := s.Changes()
		s.Unsubscribe(ch)
	}

	s.mu.Lock()
	remaining := len(s.subs)
	s.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestChangesSeesToggles(t *testing.T) {
	s := NewState()
	changes := s.Changes()

	s.Toggle()
	select {
	case paused := <-changes:
		assert.True(t, paused)
	case <-time.After(time.Second):
		t.Fatal("missed pause notification")
	}

	s.Toggle()
	select {
	case paused := <-changes:
		assert.False(t, paused)
	case <-time.After(time.Second):
		t.Fatal("missed resume notification")
	}
}
