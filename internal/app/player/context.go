// Package player wires the playback-coordination components together.
//
// Context is the dependency-injected bundle replacing ambient global state:
// it owns the queue manager, the autoplay continuation, the segment-skip
// coordinator and the playback engine, with a lifecycle tied to Start/Stop.
package player

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/mostafaalagamy/playd/internal/app/autoplay"
	"github.com/mostafaalagamy/playd/internal/app/queue"
	"github.com/mostafaalagamy/playd/internal/app/skip"
	"github.com/mostafaalagamy/playd/internal/app/watch"
	"github.com/mostafaalagamy/playd/internal/domain/media"
)

// Engine is the playback engine consumed by the context.
type Engine interface {
	Position() *watch.Value[float64]
	Load(item media.Item)
	SeekTo(seconds float64)
	Ended() <-chan struct{}
}

// Notifier displays a short fire-and-forget message.
type Notifier interface {
	Notify(message string)
}

// Context bundles the coordination core around one playback engine.
type Context struct {
	Queue    *queue.Manager
	Autoplay *autoplay.Continuation
	Skip     *skip.Coordinator

	engine   Engine
	notifier Notifier

	mu     sync.RWMutex
	repeat media.RepeatMode

	subItem string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Options carries the collaborators for a Context.
type Options struct {
	Engine   Engine
	Notifier Notifier
	Resolver autoplay.Resolver
	Source   skip.Source
	Autoplay autoplay.Settings
	Skip     skip.Settings
	Repeat   media.RepeatMode
}

// NewContext creates the coordination core. Call Start to begin reacting.
func NewContext(opts Options) *Context {
	ctx, cancel := context.WithCancel(context.Background())

	q := queue.NewManager()
	c := &Context{
		Queue:    q,
		Autoplay: autoplay.New(q, opts.Resolver, opts.Autoplay),
		Skip:     skip.NewCoordinator(q, opts.Engine.Position(), opts.Source, opts.Engine, opts.Notifier, opts.Skip),
		engine:   opts.Engine,
		notifier: opts.Notifier,
		repeat:   opts.Repeat,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	return c
}

// Start wires the subscriptions: the engine follows the current item, the
// queue advances when an item ends, and the two coordinators begin watching.
func (c *Context) Start() {
	c.Autoplay.Start()
	c.Skip.Start()

	id, itemCh := c.Queue.CurrentWatch().Subscribe()
	c.subItem = id

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
				if !item.IsZero() {
					c.engine.Load(item)
				}
			case <-c.engine.Ended():
				c.advance()
			}
		}
	}()
}

// Stop tears the subscriptions down in reverse order.
func (c *Context) Stop() {
	c.cancel()
	c.Queue.CurrentWatch().Unsubscribe(c.subItem)
	<-c.done

	c.Skip.Stop()
	c.Autoplay.Stop()
	c.Queue.Close()
}

// SetRepeat changes the repeat policy used when an item ends.
func (c *Context) SetRepeat(mode media.RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeat = mode
}

// Repeat returns the active repeat policy.
func (c *Context) Repeat() media.RepeatMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repeat
}

// advance moves the queue to the next item under the repeat policy when the
// engine reports the current item ended.
func (c *Context) advance() {
	mode := c.Repeat()

	cur, ok := c.Queue.Current()
	if !ok {
		return
	}
	next, ok := c.Queue.NextFor(mode)
	if !ok {
		zlog.Debug().Msgf("player: queue exhausted after media=%s", cur.MediaID)
		return
	}

	switch mode {
	case media.RepeatOne:
		// Same item again; the index does not move.
		c.engine.Load(next)
	case media.RepeatAll:
		c.Queue.SetIndex((c.Queue.Index() + 1) % c.Queue.Len())
	default:
		c.Queue.SetIndex(c.Queue.Index() + 1)
	}
}
