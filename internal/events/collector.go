package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/kafka"
)

const DefaultBufferSize = 1024

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
	Close() error
}

type envelope struct {
	pub   Publisher
	event kafka.Event
}

// Collector queues events and publishes them from one background goroutine.
// A nil *Collector accepts and discards events.
type Collector struct {
	index   Publisher
	search  Publisher
	eventCh chan envelope
	logger  *slog.Logger
	started bool
	done    chan struct{}
}

// NewCollector publishes index and merge events through index and search
// events through search. Either may be nil to drop that stream.
func NewCollector(index, search Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Collector{
		index:   index,
		search:  search,
		eventCh: make(chan envelope, bufferSize),
		logger:  slog.Default().With("component", "event-collector"),
		done:    make(chan struct{}),
	}
}

// Start launches the publishing loop. It runs until Close, or until ctx is
// cancelled, in which case whatever is queued is published first.
func (c *Collector) Start(ctx context.Context) {
	c.started = true
	go func() {
		defer close(c.done)
		for {
			select {
			case env, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, env)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Debug("event collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) TrackIndex(e IndexEvent) {
	if c == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	c.track(c.index, kafka.Event{Key: e.IndexPath, Type: string(e.Type), Value: e})
}

func (c *Collector) TrackSearch(e SearchEvent) {
	if c == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Type == "" {
		e.Type = TypeSearch
		if e.TotalHits == 0 {
			e.Type = TypeZeroResult
		}
	}
	c.track(c.search, kafka.Event{Key: e.IndexPath, Type: string(e.Type), Value: e})
}

func (c *Collector) track(pub Publisher, event kafka.Event) {
	if pub == nil {
		return
	}
	select {
	case c.eventCh <- envelope{pub: pub, event: event}:
	default:
		c.logger.Warn("event dropped (buffer full)")
	}
}

// Close publishes everything queued, then closes the publishers.
func (c *Collector) Close() error {
	if c == nil {
		return nil
	}
	close(c.eventCh)
	if c.started {
		<-c.done
	}
	var firstErr error
	for _, pub := range []Publisher{c.index, c.search} {
		if pub == nil {
			continue
		}
		if err := pub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Collector) publish(ctx context.Context, env envelope) {
	if err := env.pub.Publish(ctx, env.event); err != nil {
		c.logger.Error("failed to publish event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case env, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, env)
		default:
			return
		}
	}
}
