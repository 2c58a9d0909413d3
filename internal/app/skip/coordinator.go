// Package skip tracks labeled segments of the currently playing item and
// applies the configured skip behavior.
package skip

import (
	"context"
	"fmt"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/mostafaalagamy/playd/internal/app/queue"
	"github.com/mostafaalagamy/playd/internal/app/watch"
	"github.com/mostafaalagamy/playd/internal/domain/media"
	"github.com/mostafaalagamy/playd/internal/domain/segment"
)

// Source fetches the segment list for one media item.
type Source interface {
	Segments(ctx context.Context, item media.Item) ([]segment.Segment, error)
}

// Engine is the slice of the playback engine the coordinator commands.
type Engine interface {
	SeekTo(seconds float64)
}

// Notifier displays a short fire-and-forget message.
type Notifier interface {
	Notify(message string)
}

// Settings exposes the configuration consulted on every reaction.
// Implementations must be non-blocking.
type Settings interface {
	// Enabled reports whether segment tracking is enabled at all.
	Enabled() bool
	// SkipEnabled reports whether the skip capability is enabled.
	SkipEnabled() bool
	// PolicyFor returns the behavior for a category.
	PolicyFor(c segment.Category) Policy
	// NotificationsEnabled reports whether skips surface a message.
	NotificationsEnabled() bool
	// CategoryLabel returns the display-name override for a category, or ""
	// to use the category's built-in label.
	CategoryLabel(c segment.Category) string
	// ButtonHideDelay is how long the skip/undo affordances stay visible.
	ButtonHideDelay() time.Duration
}

// Coordinator maintains per-item segment state and transient affordance
// state. Segment lists are cached per media ID; skipped/shown sets reset
// whenever the tracked item changes.
type Coordinator struct {
	mu sync.Mutex

	queue    *queue.Manager
	position *watch.Value[float64]
	source   Source
	engine   Engine
	notifier Notifier
	settings Settings

	tracked     string // media ID currently tracked, "" when not tracking
	trackedItem media.Item
	cache       map[string][]segment.Segment
	skipped     map[string]bool // segment UUIDs skipped for the tracked item
	shown       map[string]bool // segment UUIDs whose button was offered once

	fetching string // media ID with a fetch in flight

	segmentsWatch  *watch.Value[[]segment.Segment]
	currentSegment *watch.Value[*segment.Segment]
	skipButton     *watch.Value[bool]
	undoButton     *watch.Value[bool]
	lastSkipped    *segment.Segment

	skipHideTimer *time.Timer
	undoHideTimer *time.Timer

	subItem string
	subPos  string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCoordinator creates a coordinator observing the queue's current item and
// the given playback position holder. Call Start to begin.
func NewCoordinator(q *queue.Manager, position *watch.Value[float64], source Source, engine Engine, notifier Notifier, settings Settings) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		queue:          q,
		position:       position,
		source:         source,
		engine:         engine,
		notifier:       notifier,
		settings:       settings,
		cache:          make(map[string][]segment.Segment),
		skipped:        make(map[string]bool),
		shown:          make(map[string]bool),
		segmentsWatch:  watch.NewValue([]segment.Segment{}),
		currentSegment: watch.NewValue[*segment.Segment](nil),
		skipButton:     watch.NewValue(false),
		undoButton:     watch.NewValue(false),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// SegmentsWatch returns the observable segment list of the tracked item.
func (c *Coordinator) SegmentsWatch() *watch.Value[[]segment.Segment] {
	return c.segmentsWatch
}

// CurrentSegmentWatch returns the observable segment under the playback
// cursor (nil when none).
func (c *Coordinator) CurrentSegmentWatch() *watch.Value[*segment.Segment] {
	return c.currentSegment
}

// SkipButtonWatch returns the observable manual-skip affordance visibility.
func (c *Coordinator) SkipButtonWatch() *watch.Value[bool] {
	return c.skipButton
}

// UndoButtonWatch returns the observable undo affordance visibility.
func (c *Coordinator) UndoButtonWatch() *watch.Value[bool] {
	return c.undoButton
}

// Start subscribes to item and position changes and reacts until Stop.
func (c *Coordinator) Start() {
	itemID, itemCh := c.queue.CurrentWatch().Subscribe()
	posID, posCh := c.position.Subscribe()
	c.subItem = itemID
	c.subPos = posID

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.ctx.Done():
				return
			case item, ok := <-itemCh:
				if !ok {
					return
				}
				c.onItemChanged(item)
			case pos, ok := <-posCh:
				if !ok {
					return
				}
				c.onPosition(pos)
			}
		}
	}()
}

// Stop stops observing and releases the timers.
func (c *Coordinator) Stop() {
	c.cancel()
	c.queue.CurrentWatch().Unsubscribe(c.subItem)
	c.position.Unsubscribe(c.subPos)
	<-c.done

	c.mu.Lock()
	c.stopTimersLocked()
	c.mu.Unlock()
}

// onItemChanged retargets tracking at the new item. All transient affordance
// state resets unconditionally on every item change.
func (c *Coordinator) onItemChanged(item media.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetTransientLocked()

	if !c.settings.Enabled() || item.IsZero() {
		c.tracked = ""
		c.trackedItem = media.Item{}
		c.segmentsWatch.Set([]segment.Segment{})
		return
	}

	c.tracked = item.MediaID
	c.trackedItem = item
	c.skipped = make(map[string]bool)
	c.shown = make(map[string]bool)

	if segs, ok := c.cache[item.MediaID]; ok {
		c.segmentsWatch.Set(segs)
		return
	}
	c.segmentsWatch.Set([]segment.Segment{})

	if item.SegmentSourceRef() == "" || c.fetching == item.MediaID {
		return
	}
	c.fetching = item.MediaID
	go c.fetch(item)
}

// fetch populates the cache. A stale result (tracked item changed during the
// fetch) still lands in the cache but is not published.
func (c *Coordinator) fetch(item media.Item) {
	segs, err := c.source.Segments(c.ctx, item)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetching == item.MediaID {
		c.fetching = ""
	}
	if err != nil {
		// No segments available this time; swallowed.
		zlog.Debug().Msgf("skip: segment fetch failed: media=%s: %v", item.MediaID, err)
		return
	}
	c.cache[item.MediaID] = segs
	if c.tracked == item.MediaID {
		c.segmentsWatch.Set(segs)
		zlog.Debug().Msgf("skip: segments loaded: media=%s count=%d", item.MediaID, len(segs))
	}
}

// onPosition finds the segment containing pos and applies the configured
// behavior. The first match in list order wins when ranges overlap.
func (c *Coordinator) onPosition(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.settings.Enabled() || !c.settings.SkipEnabled() {
		c.setCurrentSegmentLocked(nil)
		c.hideSkipButtonLocked()
		return
	}
	if c.tracked == "" {
		return
	}

	var current *segment.Segment
	for _, seg := range c.cache[c.tracked] {
		if seg.Contains(pos) {
			s := seg
			current = &s
			break
		}
	}
	c.setCurrentSegmentLocked(current)
	if current == nil {
		return
	}
	if c.skipped[current.UUID] {
		return
	}

	switch c.settings.PolicyFor(current.Category) {
	case PolicyAuto:
		c.skipLocked(*current, false)
	case PolicyManual:
		if c.shown[current.UUID] {
			return
		}
		c.shown[current.UUID] = true
		c.skipButton.Set(true)
		c.restartSkipHideTimerLocked()
	}
}

// Skip performs the skip action for a segment of the tracked item. Manual
// skips arm the timed undo affordance; automatic skips do not.
func (c *Coordinator) Skip(seg segment.Segment, isManual bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipLocked(seg, isManual)
}

func (c *Coordinator) skipLocked(seg segment.Segment, isManual bool) {
	if c.skipped[seg.UUID] {
		return
	}
	c.skipped[seg.UUID] = true

	c.engine.SeekTo(seg.End)
	c.lastSkipped = &seg
	c.hideSkipButtonLocked()

	if c.settings.NotificationsEnabled() {
		label := c.settings.CategoryLabel(seg.Category)
		if label == "" {
			label = seg.DisplayName()
		}
		c.notifier.Notify(fmt.Sprintf("Skipped %s", label))
	}

	zlog.Debug().Msgf("skip: segment skipped: media=%s category=%s manual=%t end=%.1f",
		c.tracked, seg.Category, isManual, seg.End)

	if !isManual {
		// Automatic skips are not undoable via the timed affordance.
		if c.undoHideTimer != nil {
			c.undoHideTimer.Stop()
			c.undoHideTimer = nil
		}
		c.undoButton.Set(false)
		return
	}

	c.undoButton.Set(true)
	c.restartUndoHideTimerLocked()
}

// Undo reverts the most recent skip: the segment leaves the skipped set and
// playback seeks back to its start. No-op without a pending skip target.
func (c *Coordinator) Undo() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastSkipped == nil {
		return
	}
	seg := *c.lastSkipped
	delete(c.skipped, seg.UUID)
	c.engine.SeekTo(seg.Start)
	c.lastSkipped = nil
	c.undoButton.Set(false)
	if c.undoHideTimer != nil {
		c.undoHideTimer.Stop()
		c.undoHideTimer = nil
	}
}

// resetTransientLocked clears all transient UI state and timers.
func (c *Coordinator) resetTransientLocked() {
	c.setCurrentSegmentLocked(nil)
	c.skipButton.Set(false)
	c.undoButton.Set(false)
	c.lastSkipped = nil
	c.stopTimersLocked()
}

func (c *Coordinator) setCurrentSegmentLocked(seg *segment.Segment) {
	prev := c.currentSegment.Get()
	switch {
	case prev == nil && seg == nil:
		return
	case prev != nil && seg != nil && prev.UUID == seg.UUID:
		return
	}
	c.currentSegment.Set(seg)
}

func (c *Coordinator) hideSkipButtonLocked() {
	c.skipButton.Set(false)
	if c.skipHideTimer != nil {
		c.skipHideTimer.Stop()
		c.skipHideTimer = nil
	}
}

// restartSkipHideTimerLocked arms (or re-arms) the skip button auto-hide.
func (c *Coordinator) restartSkipHideTimerLocked() {
	if c.skipHideTimer != nil {
		c.skipHideTimer.Stop()
	}
	c.skipHideTimer = time.AfterFunc(c.settings.ButtonHideDelay(), func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.skipButton.Set(false)
		c.skipHideTimer = nil
	})
}

// restartUndoHideTimerLocked arms (or re-arms) the undo auto-hide; expiry
// also drops the pending undo target.
func (c *Coordinator) restartUndoHideTimerLocked() {
	if c.undoHideTimer != nil {
		c.undoHideTimer.Stop()
	}
	c.undoHideTimer = time.AfterFunc(c.settings.ButtonHideDelay(), func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.undoButton.Set(false)
		c.lastSkipped = nil
		c.undoHideTimer = nil
	})
}

func (c *Coordinator) stopTimersLocked() {
	if c.skipHideTimer != nil {
		c.skipHideTimer.Stop()
		c.skipHideTimer = nil
	}
	if c.undoHideTimer != nil {
		c.undoHideTimer.Stop()
		c.undoHideTimer = nil
	}
}
