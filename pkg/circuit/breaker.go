package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker refuses a call without invoking the
// wrapped operation. Callers can treat it as "source skipped" rather than
// "source failed".
var ErrOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker guards a single external source. After threshold consecutive
// failures it opens and fails fast; once the cool-down elapses a single
// trial call is let through and its outcome alone decides the next state.
type Breaker struct {
	name      string
	threshold int
	timeout   time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

func NewBreaker(name string, threshold int, timeout time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		state:     StateClosed,
		now:       time.Now,
	}
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs op under the breaker. While open and within the cool-down it
// returns an error wrapping ErrOpen without invoking op. Every error kind
// returned by op counts as a failure.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := op(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("source %s: %w", b.name, ErrOpen)
		}
		b.probing = true
		return nil
	}
	if b.now().Sub(b.openedAt) < b.timeout {
		return fmt.Errorf("source %s: %w", b.name, ErrOpen)
	}
	// cool-down elapsed, let exactly one trial call through
	b.state = StateHalfOpen
	b.probing = true
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = StateClosed
		b.probing = false
		return
	}

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
