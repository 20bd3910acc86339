package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	got []Event
	err error
}

func (s *recordingSink) Publish(_ context.Context, ev Event) error {
	s.got = append(s.got, ev)
	return s.err
}

// blockingSink holds its first publish until release is closed.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	got     []string
}

func (s *blockingSink) Publish(_ context.Context, ev Event) error {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, ev.ID)
	return nil
}

func (s *blockingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestFoldMergeAndReplace(t *testing.T) {
	loading := Event{ID: "a", Name: "search", Props: Props{"query": "mars", "isSearching": true}, MessageID: "m1", Merge: Merge, Status: StatusLoading}
	progress := Event{ID: "a", Name: "search", Props: Props{"isSearching": false}, Merge: Merge, Status: StatusLoading}
	done := Event{ID: "a", Name: "search-results", Props: Props{"results": []string{"x"}}, MessageID: "m2", Merge: Replace, Status: StatusSuccess}

	v := Fold(nil, loading)
	v = Fold(&v, progress)
	assert.Equal(t, Props{"query": "mars", "isSearching": false}, v.Props)
	assert.Equal(t, "m1", v.MessageID)

	v = Fold(&v, done)
	assert.Equal(t, Props{"results": []string{"x"}}, v.Props)
	assert.Equal(t, "search-results", v.Name)
	assert.Equal(t, StatusSuccess, v.Status)
}

func TestReduceMatchesIncrementalFold(t *testing.T) {
	events := []Event{
		{ID: "a", Name: "search", Props: Props{"query": "q", "isSearching": true}, Merge: Merge, Status: StatusLoading},
		{ID: "b", Name: "stock-price", Props: Props{"ticker": "AAPL"}, Merge: Replace, Status: StatusSuccess},
		{ID: "a", Name: "search", Props: Props{"page": 2}, Merge: Merge, Status: StatusLoading},
		{ID: "a", Name: "search-results", Props: Props{"results": []any{}, "error": "boom"}, Merge: Replace, Status: StatusError},
	}

	ch := NewChannel(context.Background(), nil, nil)
	for _, ev := range events {
		ch.Push(ev)
		for id, want := range Reduce(ch.Events()) {
			got, ok := ch.View(id)
			require.True(t, ok)
			assert.Equal(t, want, got)
		}
	}

	final := Reduce(events)
	for id, want := range final {
		got, ok := Current(events, id)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, StatusError, final["a"].Status)
	assert.Equal(t, Props{"results": []any{}, "error": "boom"}, final["a"].Props)
}

func TestChannelRejectsBackwardTransitions(t *testing.T) {
	sink := &recordingSink{}
	ch := NewChannel(context.Background(), nil, sink)

	ch.Push(Event{ID: "a", Name: "search", Status: StatusLoading})
	ch.Push(Event{ID: "a", Name: "search-results", Merge: Replace, Status: StatusSuccess})
	ch.Push(Event{ID: "a", Name: "search", Status: StatusLoading})

	events := ch.Events()
	require.Len(t, events, 2)
	assert.Equal(t, StatusSuccess, events[1].Status)
	assert.Len(t, sink.got, 2)
}

func TestChannelSeededWithPriorEvents(t *testing.T) {
	prior := []Event{
		{ID: "abc", Name: "proposed-change", Merge: Replace, Status: StatusProposed},
		{ID: "abc", Name: "proposed-change", Merge: Merge, Status: StatusRejected},
	}
	ch := NewChannel(context.Background(), prior, nil)

	ch.Push(Event{ID: "abc", Name: "proposed-change", Merge: Replace, Status: StatusProposed})
	ch.Push(Event{ID: "def", Name: "proposed-change", Merge: Replace, Status: StatusProposed})
	ch.Push(Event{ID: "def", Name: "proposed-change", Merge: Replace, Status: StatusProposed})

	assert.Len(t, ch.Events(), 3)
	emitted := ch.Emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, "def", emitted[0].ID)
}

func TestChannelDefaultsAndSinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("redis down")}
	ch := NewChannel(context.Background(), nil, sink)

	ch.Push(Event{ID: "a", Name: "search"})

	events := ch.Events()
	require.Len(t, events, 1)
	assert.Equal(t, Merge, events[0].Merge)
	assert.Equal(t, StatusLoading, events[0].Status)
}

func TestNilChannelAndContext(t *testing.T) {
	var ch *Channel
	ch.Push(Event{ID: "a"})
	assert.Nil(t, ch.Events())
	assert.Nil(t, FromContext(context.Background()))

	real := NewChannel(context.Background(), nil, nil)
	ctx := NewContext(context.Background(), real)
	assert.Same(t, real, FromContext(ctx))
}

func TestSlowSinkDoesNotBlockLogAndKeepsOrder(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
	ch := NewChannel(context.Background(), nil, sink)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ch.Push(Event{ID: "a", Name: "search"})
	}()
	<-sink.started
	go func() {
		defer wg.Done()
		ch.Push(Event{ID: "b", Name: "search"})
	}()

	require.Eventually(t, func() bool { return len(ch.Events()) == 2 }, time.Second, 5*time.Millisecond)
	_, ok := ch.View("b")
	assert.True(t, ok)

	close(sink.release)
	wg.Wait()
	assert.Equal(t, []string{"a", "b"}, sink.ids())
}
