// Package queue provides the playback queue manager.
//
// The manager is the single source of truth for queue contents, ordering and
// position. All index arithmetic is clamped and operations on an empty queue
// are safe no-ops; nothing here returns an error.
package queue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/mostafaalagamy/playd/internal/app/watch"
	"github.com/mostafaalagamy/playd/internal/domain/media"
)

// Manager owns the ordered queue, the current index and the shuffle backup.
// The items and index holders fire on every mutation; the current-item holder
// fires only when the current item instance actually changes.
type Manager struct {
	mu sync.RWMutex

	items  []media.Item
	index  int
	backup []media.Item // pre-shuffle order, nil when not shuffled

	rng *rand.Rand

	itemsWatch   *watch.Value[[]media.Item]
	indexWatch   *watch.Value[int]
	currentWatch *watch.Value[media.Item]
}

// NewManager creates an empty queue manager.
func NewManager() *Manager {
	return &Manager{
		items:        make([]media.Item, 0),
		rng:          rand.New(rand.NewSource(cryptoSeed())),
		itemsWatch:   watch.NewValue([]media.Item{}),
		indexWatch:   watch.NewValue(0),
		currentWatch: watch.NewValue(media.Item{}),
	}
}

// ItemsWatch returns the observable queue contents.
func (m *Manager) ItemsWatch() *watch.Value[[]media.Item] {
	return m.itemsWatch
}

// IndexWatch returns the observable current index.
func (m *Manager) IndexWatch() *watch.Value[int] {
	return m.indexWatch
}

// CurrentWatch returns the observable current item. The zero media.Item is
// published when the queue is empty.
func (m *Manager) CurrentWatch() *watch.Value[media.Item] {
	return m.currentWatch
}

// Close closes all observable holders.
func (m *Manager) Close() {
	m.itemsWatch.Close()
	m.indexWatch.Close()
	m.currentWatch.Close()
}

// SetQueue replaces the entire queue. startIndex is clamped into the valid
// range. Any shuffle backup is dropped.
func (m *Manager) SetQueue(items []media.Item, startIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make([]media.Item, len(items))
	copy(m.items, items)
	m.index = clampIndex(startIndex, len(m.items))
	m.backup = nil
	m.publishLocked()
}

// SetItem replaces the queue with a single item.
func (m *Manager) SetItem(item media.Item) {
	m.SetQueue([]media.Item{item}, 0)
}

// SetIndex moves the current index, clamped into the valid range.
func (m *Manager) SetIndex(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index = clampIndex(i, len(m.items))
	m.publishLocked()
}

// Add appends an item to the end of the queue. While shuffled, the canonical
// order is preserved by also appending the item to the backup; the live queue
// receives the item unchanged at its tail.
func (m *Manager) Add(item media.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backup != nil {
		m.backup = append(m.backup, item)
	}
	m.items = append(m.items, item)
	m.publishLocked()
}

// Insert inserts an item at the clamped position. If the insertion position
// is at or before the current index, the index shifts so it keeps pointing at
// the same item. While shuffled the item is recorded at the canonical tail of
// the backup.
func (m *Manager) Insert(pos int, item media.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if pos > len(m.items) {
		pos = len(m.items)
	}

	wasEmpty := len(m.items) == 0
	m.items = append(m.items[:pos], append([]media.Item{item}, m.items[pos:]...)...)
	if !wasEmpty && pos <= m.index {
		m.index++
	}
	m.index = clampIndex(m.index, len(m.items))

	if m.backup != nil {
		m.backup = append(m.backup, item)
	}
	m.publishLocked()
}

// Remove removes the item at pos. The current index keeps denoting the same
// item where possible: removing before it shifts it down, removing it with a
// successor present leaves the index on the successor, and removing it at the
// tail steps back. The same instance is removed from the backup if present.
func (m *Manager) Remove(pos int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos < 0 || pos >= len(m.items) {
		return
	}

	removed := m.items[pos]
	m.items = append(m.items[:pos], m.items[pos+1:]...)

	switch {
	case pos < m.index:
		m.index--
	case pos == m.index && pos >= len(m.items):
		// Removed the current item at the tail.
		m.index--
	}
	m.index = clampIndex(m.index, len(m.items))

	if m.backup != nil {
		if bpos := indexOfInstance(m.backup, removed.InstanceID); bpos >= 0 {
			m.backup = append(m.backup[:bpos], m.backup[bpos+1:]...)
		}
	}
	m.publishLocked()
}

// Move relocates the item at from to position to. The current index is
// translated so it continues to reference the same item. The move is mirrored
// into the backup by relocating the same instance to the clamped target.
func (m *Manager) Move(from, to int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if from < 0 || from >= len(m.items) {
		return
	}
	to = clampIndex(to, len(m.items))
	if from == to {
		return
	}

	moved := m.items[from]
	m.items = append(m.items[:from], m.items[from+1:]...)
	m.items = append(m.items[:to], append([]media.Item{moved}, m.items[to:]...)...)

	switch {
	case from == m.index:
		m.index = to
	case from < m.index && to >= m.index:
		m.index--
	case from > m.index && to <= m.index:
		m.index++
	}

	if m.backup != nil {
		if bpos := indexOfInstance(m.backup, moved.InstanceID); bpos >= 0 {
			btarget := clampIndex(to, len(m.backup))
			m.backup = append(m.backup[:bpos], m.backup[bpos+1:]...)
			m.backup = append(m.backup[:btarget], append([]media.Item{moved}, m.backup[btarget:]...)...)
		}
	}
	m.publishLocked()
}

// Clear empties the queue, resets the index and drops the backup.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make([]media.Item, 0)
	m.index = 0
	m.backup = nil
	m.publishLocked()
}

// Shuffle snapshots the current order into the backup (unconditionally, so a
// later Unshuffle is always possible) and randomly permutes the live queue,
// relocating the previously current item to position 0. Queues of two or
// fewer items keep their order.
func (m *Manager) Shuffle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backup == nil {
		m.backup = make([]media.Item, len(m.items))
		copy(m.backup, m.items)
	}

	if len(m.items) <= 2 {
		m.publishLocked()
		return
	}

	current := m.items[m.index]
	m.rng.Shuffle(len(m.items), func(i, j int) {
		m.items[i], m.items[j] = m.items[j], m.items[i]
	})
	if pos := indexOfInstance(m.items, current.InstanceID); pos > 0 {
		m.items = append(m.items[:pos], m.items[pos+1:]...)
		m.items = append([]media.Item{current}, m.items...)
	}
	m.index = 0
	m.publishLocked()
}

// Unshuffle restores the canonical order from the backup and points the index
// at the item that was current, located by media ID (0 if not found). No-op
// when not shuffled.
func (m *Manager) Unshuffle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backup == nil {
		return
	}

	var current media.Item
	if len(m.items) > 0 {
		current = m.items[m.index]
	}

	m.items = m.backup
	m.backup = nil
	m.index = 0
	if !current.IsZero() {
		for i, it := range m.items {
			if it.MediaID == current.MediaID {
				m.index = i
				break
			}
		}
	}
	m.index = clampIndex(m.index, len(m.items))
	m.publishLocked()
}

// Current returns the current item, or false if the queue is empty.
func (m *Manager) Current() (media.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.items) == 0 {
		return media.Item{}, false
	}
	return m.items[m.index], true
}

// NextFor returns the item that follows the current one under the given
// repeat mode, or false when there is none.
func (m *Manager) NextFor(mode media.RepeatMode) (media.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.items) == 0 {
		return media.Item{}, false
	}
	switch mode {
	case media.RepeatOne:
		return m.items[m.index], true
	case media.RepeatAll:
		return m.items[(m.index+1)%len(m.items)], true
	default:
		if m.index+1 >= len(m.items) {
			return media.Item{}, false
		}
		return m.items[m.index+1], true
	}
}

// Previous returns the linear predecessor of the current item, or false when
// at the start (or empty).
func (m *Manager) Previous() (media.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.items) == 0 || m.index == 0 {
		return media.Item{}, false
	}
	return m.items[m.index-1], true
}

// IndexOf returns the position of the first item with the given media ID, or
// -1 if absent.
func (m *Manager) IndexOf(mediaID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, it := range m.items {
		if it.MediaID == mediaID {
			return i
		}
	}
	return -1
}

// IsLast reports whether the current index is the last queue position.
func (m *Manager) IsLast() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items) > 0 && m.index == len(m.items)-1
}

// IsShuffled reports whether a shuffle backup is present.
func (m *Manager) IsShuffled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backup != nil
}

// Items returns a copy of the queue contents.
func (m *Manager) Items() []media.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]media.Item, len(m.items))
	copy(result, m.items)
	return result
}

// BackupItems returns a copy of the pre-shuffle order, or nil when not
// shuffled.
func (m *Manager) BackupItems() []media.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backup == nil {
		return nil
	}
	result := make([]media.Item, len(m.backup))
	copy(result, m.backup)
	return result
}

// Index returns the current index.
func (m *Manager) Index() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index
}

// Len returns the number of items in the queue.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// publishLocked pushes the queue state to the observable holders.
// Must be called with the lock held.
func (m *Manager) publishLocked() {
	snapshot := make([]media.Item, len(m.items))
	copy(snapshot, m.items)
	m.itemsWatch.Set(snapshot)
	m.indexWatch.Set(m.index)

	var current media.Item
	if len(m.items) > 0 {
		current = m.items[m.index]
	}
	if m.currentWatch.Get().InstanceID != current.InstanceID {
		zlog.Debug().Msgf("queue: current item changed: media=%s index=%d len=%d",
			current.MediaID, m.index, len(m.items))
		m.currentWatch.Set(current)
	}
}

// clampIndex clamps i into [0, length-1], or 0 for an empty queue.
func clampIndex(i, length int) int {
	if length == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}

// indexOfInstance returns the position of the given instance tag, or -1.
func indexOfInstance(items []media.Item, instanceID string) int {
	for i, it := range items {
		if it.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// cryptoSeed derives a strong seed for the shuffle RNG, falling back to the
// wall clock when crypto/rand is unavailable.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
