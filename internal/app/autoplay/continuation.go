// Package autoplay appends a follow-up item when the queue reaches its last
// position and the current item carries a continuation reference.
package autoplay

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/mostafaalagamy/playd/internal/app/queue"
	"github.com/mostafaalagamy/playd/internal/domain/media"
)

// ResolveResult is the structured follow-up information for a continuation
// reference. A result may carry an ordered partition list, a list of related
// candidate items, or both.
type ResolveResult struct {
	Partitions []media.Item // Ordered partitions of the continuation source
	Related    []media.Item // Related candidate items
}

// Resolver resolves a continuation reference into follow-up information.
type Resolver interface {
	Resolve(ctx context.Context, ref string, source string) (*ResolveResult, error)
}

// Settings exposes the configuration flags consulted on every item change.
// Implementations must be non-blocking.
type Settings interface {
	AutoplayEnabled() bool
	SkipLongItems() bool
	DurationCeiling() time.Duration
}

// Continuation watches the queue's current item and, when the last position
// is reached, resolves and appends one follow-up item. At most one resolution
// is in flight per item identity; a change to a different identity cancels
// the outstanding one.
type Continuation struct {
	mu sync.Mutex

	queue    *queue.Manager
	resolver Resolver
	settings Settings
	rng      *rand.Rand

	// In-flight attempt, keyed by mediaID + continuation reference.
	inflightKey    string
	inflightCancel context.CancelFunc

	// Identity of the last applied attempt, so an identical current-item
	// signal fired twice does not append twice.
	appliedKey string

	subID  string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a continuation watcher. Call Start to begin observing.
func New(q *queue.Manager, resolver Resolver, settings Settings) *Continuation {
	ctx, cancel := context.WithCancel(context.Background())
	return &Continuation{
		queue:    q,
		resolver: resolver,
		settings: settings,
		rng:      rand.New(rand.NewSource(autoplaySeed())),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start subscribes to the queue's current item and reacts until Stop.
func (c *Continuation) Start() {
	id, ch := c.queue.CurrentWatch().Subscribe()
	c.subID = id

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.ctx.Done():
				return
			case item, ok := <-ch:
				if !ok {
					return
				}
				c.onItemChanged(item)
			}
		}
	}()
}

// Stop cancels any in-flight resolution and stops observing.
func (c *Continuation) Stop() {
	c.cancel()
	c.queue.CurrentWatch().Unsubscribe(c.subID)
	<-c.done

	c.mu.Lock()
	if c.inflightCancel != nil {
		c.inflightCancel()
		c.inflightCancel = nil
		c.inflightKey = ""
	}
	c.mu.Unlock()
}

// onItemChanged decides whether the changed item starts a resolution attempt.
func (c *Continuation) onItemChanged(item media.Item) {
	if !c.settings.AutoplayEnabled() || item.IsZero() {
		return
	}
	ref := item.ContinuationRef()
	if ref == "" {
		return
	}
	if !c.queue.IsLast() {
		return
	}
	cur, ok := c.queue.Current()
	if !ok || cur.InstanceID != item.InstanceID {
		// The queue moved on before this signal was handled.
		return
	}

	key := item.MediaID + "|" + ref

	c.mu.Lock()
	if key == c.appliedKey {
		c.mu.Unlock()
		return
	}
	if c.inflightKey == key {
		// Same identity already resolving, never duplicated.
		c.mu.Unlock()
		return
	}
	if c.inflightCancel != nil {
		// A different identity supersedes the outstanding attempt.
		c.inflightCancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflightKey = key
	c.inflightCancel = cancel
	c.mu.Unlock()

	zlog.Debug().Msgf("autoplay: resolving continuation: media=%s ref=%s", item.MediaID, ref)
	go c.resolve(ctx, key, item, ref)
}

// resolve fetches follow-up information and appends the candidate when the
// last-index condition still holds at completion.
func (c *Continuation) resolve(ctx context.Context, key string, item media.Item, ref string) {
	defer func() {
		c.mu.Lock()
		if c.inflightKey == key {
			c.inflightKey = ""
			if c.inflightCancel != nil {
				c.inflightCancel()
				c.inflightCancel = nil
			}
		}
		c.mu.Unlock()
	}()

	result, err := c.resolver.Resolve(ctx, ref, item.Source)
	if err != nil {
		// Resolution failures are not surfaced; no continuation this time.
		zlog.Debug().Msgf("autoplay: resolution failed: media=%s: %v", item.MediaID, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	candidate, ok := c.pickCandidate(item, result)
	if !ok {
		zlog.Debug().Msgf("autoplay: no candidate for media=%s", item.MediaID)
		return
	}

	// The queue may have changed while resolving.
	cur, curOK := c.queue.Current()
	if !curOK || !c.queue.IsLast() || cur.InstanceID != item.InstanceID {
		zlog.Debug().Msgf("autoplay: abandoned, queue moved on: media=%s", item.MediaID)
		return
	}

	c.mu.Lock()
	c.appliedKey = key
	c.mu.Unlock()

	c.queue.Add(candidate.WithInstanceID())
	zlog.Info().Msgf("autoplay: appended continuation: media=%s title=%s", candidate.MediaID, candidate.Title)
}

// pickCandidate applies the two resolution strategies in order: the next
// partition after the current item, then a random related candidate filtered
// by the optional duration ceiling.
func (c *Continuation) pickCandidate(item media.Item, result *ResolveResult) (media.Item, bool) {
	for i, part := range result.Partitions {
		if part.MediaID == item.MediaID {
			if i+1 < len(result.Partitions) {
				return result.Partitions[i+1], true
			}
			break
		}
	}

	candidates := c.filterRelated(result.Related)
	if len(candidates) == 0 {
		return media.Item{}, false
	}
	return candidates[c.rng.Intn(len(candidates))], true
}

// filterRelated drops candidates above the duration ceiling when the
// skip-long-items preference is enabled. Unknown durations pass the filter.
func (c *Continuation) filterRelated(related []media.Item) []media.Item {
	if !c.settings.SkipLongItems() {
		return related
	}
	ceiling := c.settings.DurationCeiling()
	if ceiling <= 0 {
		return related
	}

	filtered := make([]media.Item, 0, len(related))
	for _, cand := range related {
		if cand.Duration > 0 && cand.Duration > ceiling {
			continue
		}
		filtered = append(filtered, cand)
	}
	return filtered
}

func autoplaySeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
