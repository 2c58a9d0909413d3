package skip

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mostafaalagamy/playd/internal/app/queue"
	"github.com/mostafaalagamy/playd/internal/app/watch"
	"github.com/mostafaalagamy/playd/internal/domain/media"
	"github.com/mostafaalagamy/playd/internal/domain/segment"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	segs  map[string][]segment.Segment
	err   error

	// When set, Segments blocks until the channel closes.
	block chan struct{}
}

func (f *fakeSource) Segments(ctx context.Context, item media.Item) ([]segment.Segment, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	segs, err := f.segs[item.MediaID], f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return segs, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEngine struct {
	mu    sync.Mutex
	seeks []float64
}

func (f *fakeEngine) SeekTo(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeEngine) seeked() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message)
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type fakeSkipSettings struct {
	enabled       bool
	skipEnabled   bool
	notifications bool
	policies      map[segment.Category]Policy
	labels        map[segment.Category]string
	hideDelay     time.Duration
}

func (s fakeSkipSettings) Enabled() bool              { return s.enabled }
func (s fakeSkipSettings) SkipEnabled() bool          { return s.skipEnabled }
func (s fakeSkipSettings) NotificationsEnabled() bool { return s.notifications }
func (s fakeSkipSettings) ButtonHideDelay() time.Duration {
	if s.hideDelay == 0 {
		return 30 * time.Millisecond
	}
	return s.hideDelay
}
func (s fakeSkipSettings) PolicyFor(c segment.Category) Policy { return s.policies[c] }
func (s fakeSkipSettings) CategoryLabel(c segment.Category) string {
	return s.labels[c]
}

func trackedItem(mediaID string) media.Item {
	item := media.NewItem(mediaID)
	item.Extras = map[string]string{media.ExtraSegmentSource: mediaID}
	return item
}

func sponsorSegment(uuid string, start, end float64) segment.Segment {
	return segment.Segment{UUID: uuid, Category: segment.CategorySponsor, Start: start, End: end}
}

type coordFixture struct {
	coord    *Coordinator
	queue    *queue.Manager
	source   *fakeSource
	engine   *fakeEngine
	notifier *fakeNotifier
}

func newFixture(t *testing.T, settings Settings, source *fakeSource) *coordFixture {
	t.Helper()
	q := queue.NewManager()
	t.Cleanup(q.Close)

	engine := &fakeEngine{}
	notifier := &fakeNotifier{}
	pos := watch.NewValue(0.0)
	c := NewCoordinator(q, pos, source, engine, notifier, settings)
	return &coordFixture{coord: c, queue: q, source: source, engine: engine, notifier: notifier}
}

// load points the coordinator at the item and waits for its segment list.
func (f *coordFixture) load(t *testing.T, item media.Item) {
	t.Helper()
	f.coord.onItemChanged(item)
	require.Eventually(t, func() bool {
		f.coord.mu.Lock()
		defer f.coord.mu.Unlock()
		_, ok := f.coord.cache[item.MediaID]
		return ok
	}, time.Second, time.Millisecond)
}

func autoSettings() fakeSkipSettings {
	return fakeSkipSettings{
		enabled:       true,
		skipEnabled:   true,
		notifications: true,
		policies:      map[segment.Category]Policy{segment.CategorySponsor: PolicyAuto},
	}
}

func manualSettings() fakeSkipSettings {
	s := autoSettings()
	s.policies = map[segment.Category]Policy{segment.CategorySponsor: PolicyManual}
	return s
}

func TestCoordinator_AutoSkipsOnce(t *testing.T) {
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {sponsorSegment("s1", 10, 20)},
	}}
	f := newFixture(t, autoSettings(), source)
	f.load(t, trackedItem("a"))

	f.coord.onPosition(5)
	assert.Empty(t, f.engine.seeked())

	f.coord.onPosition(15)
	assert.Equal(t, []float64{20}, f.engine.seeked())
	assert.Equal(t, []string{"Skipped Sponsor"}, f.notifier.messages())
	assert.False(t, f.coord.UndoButtonWatch().Get())

	// Landing inside the same segment again does not skip twice.
	f.coord.onPosition(16)
	assert.Equal(t, []float64{20}, f.engine.seeked())
}

func TestCoordinator_ManualShowsButtonOnce(t *testing.T) {
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {sponsorSegment("s1", 10, 20)},
	}}
	f := newFixture(t, manualSettings(), source)
	f.load(t, trackedItem("a"))

	f.coord.onPosition(12)
	assert.True(t, f.coord.SkipButtonWatch().Get())
	assert.Empty(t, f.engine.seeked())

	// The button auto-hides after the configured delay.
	require.Eventually(t, func() bool {
		return !f.coord.SkipButtonWatch().Get()
	}, time.Second, time.Millisecond)

	// Still inside the segment, but the offer was already made.
	f.coord.onPosition(14)
	assert.False(t, f.coord.SkipButtonWatch().Get())
}

func TestCoordinator_ManualSkipAndUndo(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {seg}}}
	f := newFixture(t, manualSettings(), source)
	f.load(t, trackedItem("a"))

	f.coord.onPosition(12)
	require.True(t, f.coord.SkipButtonWatch().Get())

	f.coord.Skip(seg, true)
	assert.Equal(t, []float64{20}, f.engine.seeked())
	assert.False(t, f.coord.SkipButtonWatch().Get())
	assert.True(t, f.coord.UndoButtonWatch().Get())

	f.coord.Undo()
	assert.Equal(t, []float64{20, 10}, f.engine.seeked())
	assert.False(t, f.coord.UndoButtonWatch().Get())

	// Undo without a pending target is a no-op.
	f.coord.Undo()
	assert.Equal(t, []float64{20, 10}, f.engine.seeked())
}

func TestCoordinator_UndoWindowExpires(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {seg}}}
	f := newFixture(t, manualSettings(), source)
	f.load(t, trackedItem("a"))

	f.coord.Skip(seg, true)
	require.True(t, f.coord.UndoButtonWatch().Get())

	require.Eventually(t, func() bool {
		return !f.coord.UndoButtonWatch().Get()
	}, time.Second, time.Millisecond)

	f.coord.Undo()
	assert.Equal(t, []float64{20}, f.engine.seeked(), "expired undo target must not seek")
}

func TestCoordinator_NotificationLabelOverride(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {seg}}}
	settings := autoSettings()
	settings.labels = map[segment.Category]string{segment.CategorySponsor: "Werbung"}
	f := newFixture(t, settings, source)
	f.load(t, trackedItem("a"))

	f.coord.onPosition(15)
	assert.Equal(t, []string{"Skipped Werbung"}, f.notifier.messages())
}

func TestCoordinator_NotificationsDisabled(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {seg}}}
	settings := autoSettings()
	settings.notifications = false
	f := newFixture(t, settings, source)
	f.load(t, trackedItem("a"))

	f.coord.onPosition(15)
	assert.Equal(t, []float64{20}, f.engine.seeked())
	assert.Empty(t, f.notifier.messages())
}

func TestCoordinator_ItemChangeResetsSkippedSet(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {seg},
		"b": {},
	}}
	f := newFixture(t, autoSettings(), source)
	itemA := trackedItem("a")
	f.load(t, itemA)

	f.coord.onPosition(15)
	require.Equal(t, []float64{20}, f.engine.seeked())

	// Away and back: the per-item skipped set starts over.
	f.load(t, trackedItem("b"))
	f.coord.onItemChanged(itemA)

	f.coord.onPosition(15)
	assert.Equal(t, []float64{20, 20}, f.engine.seeked())
}

func TestCoordinator_ItemChangeClearsAffordances(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {seg}, "b": {}}}
	f := newFixture(t, manualSettings(), source)
	f.load(t, trackedItem("a"))

	f.coord.Skip(seg, true)
	require.True(t, f.coord.UndoButtonWatch().Get())

	f.load(t, trackedItem("b"))
	assert.False(t, f.coord.UndoButtonWatch().Get())
	assert.False(t, f.coord.SkipButtonWatch().Get())
	assert.Nil(t, f.coord.CurrentSegmentWatch().Get())

	f.coord.Undo()
	assert.Equal(t, []float64{20}, f.engine.seeked(), "undo target does not survive an item change")
}

func TestCoordinator_CachedItemSkipsRefetch(t *testing.T) {
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {sponsorSegment("s1", 10, 20)},
	}}
	f := newFixture(t, autoSettings(), source)
	item := trackedItem("a")
	f.load(t, item)
	require.Equal(t, 1, f.source.callCount())

	f.coord.onItemChanged(item)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.source.callCount())
	assert.Len(t, f.coord.SegmentsWatch().Get(), 1)
}

func TestCoordinator_StaleFetchNotPublished(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{
		segs: map[string][]segment.Segment{
			"a": {sponsorSegment("s1", 10, 20)},
			"b": {sponsorSegment("s2", 30, 40)},
		},
		block: block,
	}
	f := newFixture(t, autoSettings(), source)

	f.coord.onItemChanged(trackedItem("a"))
	require.Eventually(t, func() bool { return f.source.callCount() == 1 }, time.Second, time.Millisecond)

	// Move on before the fetch for "a" returns.
	itemB := trackedItem("b")
	f.coord.onItemChanged(itemB)
	close(block)
	f.load(t, itemB)

	published := f.coord.SegmentsWatch().Get()
	require.Len(t, published, 1)
	assert.Equal(t, "s2", published[0].UUID)

	// The stale result still lands in the cache for later reuse.
	require.Eventually(t, func() bool {
		f.coord.mu.Lock()
		defer f.coord.mu.Unlock()
		cached, ok := f.coord.cache["a"]
		return ok && len(cached) == 1 && cached[0].UUID == "s1"
	}, time.Second, time.Millisecond)

	// The published list is still the tracked item's.
	stillPublished := f.coord.SegmentsWatch().Get()
	require.Len(t, stillPublished, 1)
	assert.Equal(t, "s2", stillPublished[0].UUID)
}

func TestCoordinator_FetchFailureNotCached(t *testing.T) {
	source := &fakeSource{err: errors.New("segment service down")}
	f := newFixture(t, autoSettings(), source)

	item := trackedItem("a")
	f.coord.onItemChanged(item)
	require.Eventually(t, func() bool { return f.source.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	f.coord.mu.Lock()
	_, cached := f.coord.cache["a"]
	fetching := f.coord.fetching
	f.coord.mu.Unlock()
	assert.False(t, cached, "failed fetches are retried on the next item change")
	assert.Empty(t, fetching)

	// Retargeting the same media triggers a new attempt.
	f.coord.onItemChanged(item)
	require.Eventually(t, func() bool { return f.source.callCount() == 2 }, time.Second, time.Millisecond)
}

func TestCoordinator_NoSourceRefNoFetch(t *testing.T) {
	source := &fakeSource{}
	f := newFixture(t, autoSettings(), source)

	f.coord.onItemChanged(media.NewItem("a"))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.source.callCount())
}

func TestCoordinator_Disabled(t *testing.T) {
	settings := autoSettings()
	settings.enabled = false
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {sponsorSegment("s1", 10, 20)},
	}}
	f := newFixture(t, settings, source)

	f.coord.onItemChanged(trackedItem("a"))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.source.callCount())

	f.coord.onPosition(15)
	assert.Empty(t, f.engine.seeked())
	assert.Nil(t, f.coord.CurrentSegmentWatch().Get())
}

func TestCoordinator_SkipDisabledKeepsTracking(t *testing.T) {
	settings := autoSettings()
	settings.skipEnabled = false
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {sponsorSegment("s1", 10, 20)},
	}}
	f := newFixture(t, settings, source)
	f.load(t, trackedItem("a"))

	assert.Len(t, f.coord.SegmentsWatch().Get(), 1)

	f.coord.onPosition(15)
	assert.Empty(t, f.engine.seeked())
	assert.Nil(t, f.coord.CurrentSegmentWatch().Get())
}

func TestCoordinator_OverlappingSegmentsFirstMatchWins(t *testing.T) {
	first := sponsorSegment("s1", 10, 30)
	second := segment.Segment{UUID: "s2", Category: segment.CategoryIntro, Start: 15, End: 25}
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {first, second}}}

	settings := autoSettings()
	settings.policies = map[segment.Category]Policy{
		segment.CategorySponsor: PolicyIgnore,
		segment.CategoryIntro:   PolicyAuto,
	}
	f := newFixture(t, settings, source)
	f.load(t, trackedItem("a"))

	// Both segments contain the position; the first in list order is the
	// current segment, and its ignore policy means no seek.
	f.coord.onPosition(20)
	cur := f.coord.CurrentSegmentWatch().Get()
	require.NotNil(t, cur)
	assert.Equal(t, "s1", cur.UUID)
	assert.Empty(t, f.engine.seeked())
}

func TestCoordinator_CurrentSegmentTransitions(t *testing.T) {
	seg := sponsorSegment("s1", 10, 20)
	source := &fakeSource{segs: map[string][]segment.Segment{"a": {seg}}}
	settings := autoSettings()
	settings.policies = map[segment.Category]Policy{segment.CategorySponsor: PolicyIgnore}
	f := newFixture(t, settings, source)
	f.load(t, trackedItem("a"))

	f.coord.onPosition(5)
	assert.Nil(t, f.coord.CurrentSegmentWatch().Get())

	f.coord.onPosition(10)
	require.NotNil(t, f.coord.CurrentSegmentWatch().Get())

	f.coord.onPosition(20)
	require.NotNil(t, f.coord.CurrentSegmentWatch().Get(), "segment bounds are inclusive")

	f.coord.onPosition(21)
	assert.Nil(t, f.coord.CurrentSegmentWatch().Get())
}

func TestCoordinator_StartStop(t *testing.T) {
	source := &fakeSource{segs: map[string][]segment.Segment{
		"a": {sponsorSegment("s1", 10, 20)},
	}}
	q := queue.NewManager()
	defer q.Close()
	pos := watch.NewValue(0.0)
	engine := &fakeEngine{}
	c := NewCoordinator(q, pos, source, engine, &fakeNotifier{}, autoSettings())

	c.Start()
	q.SetItem(trackedItem("a"))
	require.Eventually(t, func() bool {
		return len(c.SegmentsWatch().Get()) == 1
	}, time.Second, time.Millisecond)

	pos.Set(15)
	require.Eventually(t, func() bool {
		return len(engine.seeked()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []float64{20}, engine.seeked())

	c.Stop()
}
