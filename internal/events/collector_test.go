package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/kafka"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, events ...kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func (f *fakePublisher) snapshot() []kafka.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Event(nil), f.events...)
}

func TestCollector_RoutesByStream(t *testing.T) {
	index, search := &fakePublisher{}, &fakePublisher{}
	c := NewCollector(index, search, 8)
	c.Start(context.Background())

	c.TrackIndex(IndexEvent{Type: TypeIndexRun, IndexPath: "/idx", Indexed: 2})
	c.TrackSearch(SearchEvent{IndexPath: "/idx", Query: "notes", TotalHits: 1})
	c.TrackSearch(SearchEvent{IndexPath: "/idx", Query: "nothing"})
	require.NoError(t, c.Close())

	require.Len(t, index.snapshot(), 1)
	got := search.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, TypeSearch, got[0].Value.(SearchEvent).Type)
	assert.Equal(t, string(TypeSearch), got[0].Type)
	assert.Equal(t, TypeZeroResult, got[1].Value.(SearchEvent).Type)
	assert.False(t, got[0].Value.(SearchEvent).Timestamp.IsZero())
	assert.True(t, index.closed)
	assert.True(t, search.closed)
}

func TestCollector_PublishErrorsAreSwallowed(t *testing.T) {
	index := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(index, nil, 4)
	c.Start(context.Background())

	c.TrackIndex(IndexEvent{IndexPath: "/idx"})
	c.TrackSearch(SearchEvent{IndexPath: "/idx"})
	require.NoError(t, c.Close())
	assert.Len(t, index.snapshot(), 1)
}

func TestCollector_DropsWhenFull(t *testing.T) {
	index := &fakePublisher{}
	c := NewCollector(index, nil, 1)

	// not started: the second event has nowhere to go
	c.TrackIndex(IndexEvent{IndexPath: "a"})
	c.TrackIndex(IndexEvent{IndexPath: "b"})
	assert.Len(t, c.eventCh, 1)
	require.NoError(t, c.Close())
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.TrackIndex(IndexEvent{})
	c.TrackSearch(SearchEvent{})
	assert.NoError(t, c.Close())
}
