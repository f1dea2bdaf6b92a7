// Package resilience guards calls to optional network backends (Redis,
// PostgreSQL) so an outage degrades vecta instead of slowing every request.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Do while calls are being refused.
var ErrOpen = errors.New("circuit open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the
	// breaker.
	Failures int
	// Cooldown is how long an open breaker refuses calls before letting a
	// single probe through.
	Cooldown time.Duration
}

const (
	DefaultFailures = 5
	DefaultCooldown = 30 * time.Second
)

// Breaker counts consecutive failures of one backend. Once open it refuses
// calls until the cooldown passes, then admits one probe whose outcome
// closes or reopens it.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = DefaultFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "breaker", "backend", name),
	}
}

// Do runs fn unless the breaker is refusing calls, in which case it returns
// an error matching ErrOpen without calling fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%s: %w, retrying in %s", b.name, ErrOpen, wait.Round(time.Second))
		}
		b.state = HalfOpen
		b.probing = true
		b.logger.Info("breaker half-open, probing")
	case HalfOpen:
		if b.probing {
			return fmt.Errorf("%s: %w, probe in flight", b.name, ErrOpen)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		if b.state != Closed {
			b.logger.Info("breaker closed")
		}
		b.state = Closed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Failures {
		if b.state != Open {
			b.logger.Warn("breaker opened", "consecutive_failures", b.failures, "error", err)
		}
		b.state = Open
		b.openedAt = b.now()
	}
}
