// Package preview implements the per-asset state machine behind hover
// previews in the gallery: a debounced playback start, graceful fallback to
// the static thumbnail on playback failure, and a manual play/pause toggle.
package preview

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is how long a hover must be held before a preview load is
// issued. Brief scans across the grid never trigger a fetch.
const DefaultDebounce = 300 * time.Millisecond

// State enumerates the lifecycle of one rendered asset's preview.
type State int

const (
	// Idle: not hovered, thumbnail showing.
	Idle State = iota
	// Armed: hovered, debounce window running, no request issued yet.
	Armed
	// Loading: debounce elapsed, playback start in flight.
	Loading
	// Playing: the scrubbing preview is playing.
	Playing
	// Failed: playback failed; thumbnail fallback for the rest of this
	// hover session, no automatic retry.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Player abstracts the playback surface for the preview clip.
type Player interface {
	// Play starts playback. A cancelled ctx means the hover session ended
	// before playback could begin.
	Play(ctx context.Context) error
	Pause()
	// Reset rewinds the play position to the start.
	Reset()
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules fn after d. Swappable so tests can fire timers
// deterministically.
type TimerFactory func(d time.Duration, fn func()) Timer

func defaultTimerFactory(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Controller drives the preview state machine for one rendered asset. It is
// re-entrant for the asset's lifetime; Close releases any pending timer.
//
// Every hover session carries a generation number. Timers and play starts
// capture the generation they were scheduled under and become no-ops once a
// newer hover event supersedes them, so a late-resolving Play can never flip
// state after the cursor has left.
type Controller struct {
	player   Player
	debounce time.Duration
	newTimer TimerFactory

	mu         sync.Mutex
	state      State
	generation uint64
	timer      Timer
	cancelPlay context.CancelFunc
	paused     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithTimerFactory overrides timer scheduling, for tests.
func WithTimerFactory(f TimerFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.newTimer = f
		}
	}
}

// NewController constructs a Controller in the Idle state.
func NewController(player Player, opts ...Option) *Controller {
	c := &Controller{
		player:   player,
		debounce: DefaultDebounce,
		newTimer: defaultTimerFactory,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ThumbnailVisible reports whether the static thumbnail should be shown:
// always, except while the preview is actively playing.
func (c *Controller) ThumbnailVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Playing || c.paused
}

// HoverEnter arms the debounce window. A no-op unless the machine is Idle.
func (c *Controller) HoverEnter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return
	}

	c.generation++
	gen := c.generation
	c.state = Armed
	c.timer = c.newTimer(c.debounce, func() { c.debounceElapsed(gen) })
}

// HoverLeave ends the hover session: the pending debounce timer and any
// in-flight playback start are invalidated, playback is paused and rewound,
// and the machine returns to Idle.
func (c *Controller) HoverLeave() {
	c.mu.Lock()

	c.generation++
	c.stopTimerLocked()
	c.cancelPlayLocked()

	wasActive := c.state == Playing || c.state == Loading
	c.state = Idle
	c.paused = false
	c.mu.Unlock()

	if wasActive {
		c.player.Pause()
		c.player.Reset()
	}
}

// TogglePlayback is the manual play/pause control. It is independent of the
// hover debounce: it only moves the playback sub-state.
func (c *Controller) TogglePlayback(ctx context.Context) {
	c.mu.Lock()

	if c.state == Playing {
		if c.paused {
			c.paused = false
			c.mu.Unlock()
			if err := c.player.Play(ctx); err != nil {
				c.recordFailure()
			}
			return
		}
		c.paused = true
		c.mu.Unlock()
		c.player.Pause()
		return
	}

	gen := c.generation
	c.mu.Unlock()

	if err := c.player.Play(ctx); err != nil {
		c.recordFailure()
		return
	}

	c.mu.Lock()
	if gen == c.generation && c.state != Failed {
		c.state = Playing
		c.paused = false
	}
	c.mu.Unlock()
}

// ReportPlaybackFailure records an asynchronous playback error (codec or
// network) from the playback surface. The thumbnail takes over for the rest
// of the hover session.
func (c *Controller) ReportPlaybackFailure() {
	c.recordFailure()
}

// Close releases pending timers. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.stopTimerLocked()
	c.cancelPlayLocked()
	c.state = Idle
}

// debounceElapsed runs when the debounce window passes. Stale generations
// are discarded: the cursor already left.
func (c *Controller) debounceElapsed(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != Armed {
		c.mu.Unlock()
		return
	}

	c.state = Loading
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelPlay = cancel
	c.mu.Unlock()

	err := c.player.Play(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// The hover session ended while Play was in flight; the state has
		// already been reset and must not be touched.
		return
	}

	if err != nil {
		c.state = Failed
		return
	}

	if c.state == Loading {
		c.state = Playing
		c.paused = false
	}
}

func (c *Controller) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return
	}
	c.state = Failed
	c.paused = false
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) cancelPlayLocked() {
	if c.cancelPlay != nil {
		c.cancelPlay()
		c.cancelPlay = nil
	}
}
