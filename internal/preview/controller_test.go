package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTimer records scheduled callbacks so tests can fire or drop them
// deterministically.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) factory(_ time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// fire runs the most recently scheduled timer unless it was stopped.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		t.Fatal("no timer scheduled")
	}
	timer := s.timers[len(s.timers)-1]
	s.mu.Unlock()

	if timer.stopped {
		return
	}
	timer.fn()
}

func (s *fakeScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type fakePlayer struct {
	mu         sync.Mutex
	playCalls  int
	pauseCalls int
	resetCalls int
	playErr    error
	block      chan struct{}
}

func (p *fakePlayer) Play(ctx context.Context) error {
	p.mu.Lock()
	p.playCalls++
	block := p.block
	err := p.playErr
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	p.pauseCalls++
	p.mu.Unlock()
}

func (p *fakePlayer) Reset() {
	p.mu.Lock()
	p.resetCalls++
	p.mu.Unlock()
}

func (p *fakePlayer) plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playCalls
}

func TestControllerStartsIdle(t *testing.T) {
	c := NewController(&fakePlayer{})

	if got := c.State(); got != Idle {
		t.Fatalf("unexpected initial state: %v", got)
	}
	if !c.ThumbnailVisible() {
		t.Fatal("thumbnail should be visible while idle")
	}
}

func TestControllerEarlyLeaveCancelsPreviewLoad(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()
	if got := c.State(); got != Armed {
		t.Fatalf("expected Armed after hover enter, got %v", got)
	}

	// Leave before the debounce fires.
	c.HoverLeave()
	if got := c.State(); got != Idle {
		t.Fatalf("expected Idle after hover leave, got %v", got)
	}

	// Even if the timer somehow fires afterwards, the stale generation must
	// not issue a preview load.
	sched.fire(t)
	if player.plays() != 0 {
		t.Fatalf("expected zero play attempts, got %d", player.plays())
	}
}

func TestControllerHeldHoverIssuesExactlyOneLoad(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()
	sched.fire(t)

	if player.plays() != 1 {
		t.Fatalf("expected exactly one play attempt, got %d", player.plays())
	}
	if got := c.State(); got != Playing {
		t.Fatalf("expected Playing after successful start, got %v", got)
	}
	if c.ThumbnailVisible() {
		t.Fatal("thumbnail should be hidden while playing")
	}

	// Re-entering while already playing must not arm a second session.
	c.HoverEnter()
	if sched.scheduled() != 1 {
		t.Fatalf("expected one scheduled timer, got %d", sched.scheduled())
	}
}

func TestControllerPlaybackErrorFallsBackToThumbnail(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{playErr: errors.New("codec unsupported")}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()
	sched.fire(t)

	if got := c.State(); got != Failed {
		t.Fatalf("expected Failed after play error, got %v", got)
	}
	if !c.ThumbnailVisible() {
		t.Fatal("thumbnail should be visible after playback failure")
	}

	// No automatic retry within the hover session.
	if player.plays() != 1 {
		t.Fatalf("expected one play attempt, got %d", player.plays())
	}

	// Leaving returns to Idle; a new hover session may try again.
	c.HoverLeave()
	if got := c.State(); got != Idle {
		t.Fatalf("expected Idle after leaving failed session, got %v", got)
	}
	c.HoverEnter()
	if got := c.State(); got != Armed {
		t.Fatalf("expected a fresh session to arm, got %v", got)
	}
}

func TestControllerLatePlayResolutionDoesNotFlipState(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{block: make(chan struct{})}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.fire(t)
	}()

	// Wait for the play start to be in flight, then leave.
	waitFor(t, func() bool { return player.plays() == 1 })
	c.HoverLeave()

	// Unblock the stale play; its resolution must be discarded.
	close(player.block)
	<-done

	if got := c.State(); got != Idle {
		t.Fatalf("expected Idle after leave superseded the load, got %v", got)
	}
}

func TestControllerHoverLeavePausesAndRewinds(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()
	sched.fire(t)
	c.HoverLeave()

	if player.pauseCalls != 1 {
		t.Fatalf("expected one pause, got %d", player.pauseCalls)
	}
	if player.resetCalls != 1 {
		t.Fatalf("expected one reset, got %d", player.resetCalls)
	}
}

func TestControllerManualToggle(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()
	sched.fire(t)

	// Pause.
	c.TogglePlayback(context.Background())
	if got := c.State(); got != Playing {
		t.Fatalf("manual pause should keep the Playing state, got %v", got)
	}
	if !c.ThumbnailVisible() {
		t.Fatal("thumbnail should return while manually paused")
	}
	if player.pauseCalls != 1 {
		t.Fatalf("expected one pause, got %d", player.pauseCalls)
	}

	// Resume.
	c.TogglePlayback(context.Background())
	if c.ThumbnailVisible() {
		t.Fatal("thumbnail should hide after resume")
	}
	if player.plays() != 2 {
		t.Fatalf("expected two play calls, got %d", player.plays())
	}
}

func TestControllerToggleOutsideHover(t *testing.T) {
	player := &fakePlayer{}
	c := NewController(player)

	c.TogglePlayback(context.Background())

	if got := c.State(); got != Playing {
		t.Fatalf("expected Playing after manual start, got %v", got)
	}
	if player.plays() != 1 {
		t.Fatalf("expected one play call, got %d", player.plays())
	}
}

func TestControllerReportPlaybackFailure(t *testing.T) {
	sched := &fakeScheduler{}
	player := &fakePlayer{}
	c := NewController(player, WithTimerFactory(sched.factory))

	c.HoverEnter()
	sched.fire(t)

	c.ReportPlaybackFailure()
	if got := c.State(); got != Failed {
		t.Fatalf("expected Failed after reported error, got %v", got)
	}
	if !c.ThumbnailVisible() {
		t.Fatal("thumbnail should be visible after reported failure")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
