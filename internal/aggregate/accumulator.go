package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrGateTimeout indicates the completion gate's deadline elapsed before
	// the required number of handlers reported success.
	ErrGateTimeout = errors.New("completion gate timed out")

	// ErrGateFailed indicates enough handlers failed that the required
	// completion count can no longer be reached, regardless of time budget.
	ErrGateFailed = errors.New("completion gate unreachable")
)

// Accumulator is the shared aggregation state for one workflow invocation:
// an append-only fragment buffer plus completion counters. All mutation goes
// through its methods; waiters are notified on every state change so the
// gate never busy-polls.
type Accumulator struct {
	mu   sync.Mutex
	cond *sync.Cond

	fragments []string
	completed int
	failed    int
	expected  int
	failures  []error
}

// New returns an empty accumulator owned by a single workflow invocation.
func New() *Accumulator {
	a := &Accumulator{}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Append adds a text fragment to the buffer. Safe for concurrent writers;
// fragments are kept in arrival order.
func (a *Accumulator) Append(fragment string) {
	a.mu.Lock()
	a.fragments = append(a.fragments, fragment)
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Done records one successful handler completion. Each handler invocation
// must call it exactly once on success and never on failure.
func (a *Accumulator) Done() {
	a.mu.Lock()
	a.completed++
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Fail records a handler failure without touching the completion count.
func (a *Accumulator) Fail(err error) {
	a.mu.Lock()
	a.failed++
	if err != nil {
		a.failures = append(a.failures, err)
	}
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Expect tells the gate how many handler outcomes are in flight. With an
// expectation set, Wait can fail fast once too many handlers have failed for
// the required count to remain reachable.
func (a *Accumulator) Expect(n int) {
	a.mu.Lock()
	a.expected += n
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Completed returns the current completion count.
func (a *Accumulator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Fragments returns a copy of the buffer in append order.
func (a *Accumulator) Fragments() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.fragments))
	copy(out, a.fragments)
	return out
}

// String returns the concatenated buffer.
func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.fragments, "")
}

// Wait blocks until at least required handlers have reported Done, the
// context expires (ErrGateTimeout), or, once an expectation is set, so many
// handlers have failed that required is unreachable (ErrGateFailed). On
// success it returns the concatenated buffer and the completion count at the
// moment the gate opened.
func (a *Accumulator) Wait(ctx context.Context, required int) (string, int, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// Take the lock so the broadcast cannot slip between a
			// waiter's deadline check and its cond.Wait.
			a.mu.Lock()
			a.cond.Broadcast()
			a.mu.Unlock()
		case <-stop:
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		if a.completed >= required {
			return strings.Join(a.fragments, ""), a.completed, nil
		}
		if a.expected >= required && a.failed > a.expected-required {
			return "", a.completed, fmt.Errorf("%w: %d of %d handlers failed: %v",
				ErrGateFailed, a.failed, a.expected, errors.Join(a.failures...))
		}
		if err := ctx.Err(); err != nil {
			return "", a.completed, fmt.Errorf("%w after %d/%d completions: %v",
				ErrGateTimeout, a.completed, required, err)
		}
		a.cond.Wait()
	}
}
