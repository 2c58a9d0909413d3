// Package engine provides a clock-driven playback engine.
//
// The engine owns no media decoding; it advances a position signal on a
// wall-clock ticker and reports when the loaded item's duration elapses.
// It serves the daemon as a dry-run engine and tests as a deterministic
// position source.
package engine

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/mostafaalagamy/playd/internal/app/watch"
	"github.com/mostafaalagamy/playd/internal/domain/media"
)

// Clock is a playback engine driven by a wall-clock ticker.
type Clock struct {
	mu sync.Mutex

	position *watch.Value[float64]
	duration float64 // seconds, 0 when unknown
	playing  bool

	tick  time.Duration
	ended chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClock creates an engine advancing position every tick.
func NewClock(tick time.Duration) *Clock {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Clock{
		position: watch.NewValue(0.0),
		tick:     tick,
		ended:    make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Position returns the observable playback position in seconds.
func (c *Clock) Position() *watch.Value[float64] {
	return c.position
}

// Ended reports each time a loaded item plays to completion.
func (c *Clock) Ended() <-chan struct{} {
	return c.ended
}

// Load starts playing an item from position zero.
func (c *Clock) Load(item media.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.duration = item.Duration.Seconds()
	c.playing = true
	c.position.Set(0)
	zlog.Debug().Msgf("engine: loaded media=%s duration=%.0fs", item.MediaID, c.duration)
}

// SeekTo jumps to the given position in seconds, clamped into the item's
// range when the duration is known.
func (c *Clock) SeekTo(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	if c.duration > 0 && seconds > c.duration {
		seconds = c.duration
	}
	c.position.Set(seconds)
}

// Pause stops position advancement.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
}

// Resume restarts position advancement.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
}

// Stop halts playback and resets the position.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.position.Set(0)
}

// Close stops the ticker goroutine and closes the position holder.
func (c *Clock) Close() {
	c.cancel()
	<-c.done
	c.position.Close()
}

func (c *Clock) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.advance()
		}
	}
}

// advance moves the position by one tick and signals item end once the known
// duration elapses.
func (c *Clock) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}

	pos := c.position.Get() + c.tick.Seconds()
	if c.duration > 0 && pos >= c.duration {
		c.position.Set(c.duration)
		c.playing = false
		select {
		case c.ended <- struct{}{}:
		default:
		}
		return
	}
	c.position.Set(pos)
}
