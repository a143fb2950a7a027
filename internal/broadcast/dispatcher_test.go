package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingObserver struct {
	mu     sync.Mutex
	done   int
	failed int
	errs   []error
}

func (o *countingObserver) HandlerDone(string) {
	o.mu.Lock()
	o.done++
	o.mu.Unlock()
}

func (o *countingObserver) HandlerFailed(_ string, err error) {
	o.mu.Lock()
	o.failed++
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func (o *countingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done, o.failed
}

func TestPublishWithNoHandlersIsNoop(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	done := make(chan int)
	go func() {
		done <- d.Publish(context.Background(), "empty-topic", "input")
	}()

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("publish to an empty topic must not block")
	}
}

func TestPublishInvokesEveryRegisteredHandler(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var calls atomic.Int32
	handler := func(ctx context.Context, input string) error {
		calls.Add(1)
		return nil
	}
	// No deduplication: the same handler registered twice runs twice.
	d.Register("t", handler)
	d.Register("t", handler)
	d.Register("t", handler)

	n := d.Publish(context.Background(), "t", "x")
	d.Wait()

	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPublishPassesInputToEachHandler(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var mu sync.Mutex
	var seen []string
	for i := 0; i < 3; i++ {
		d.Register("t", func(ctx context.Context, input string) error {
			mu.Lock()
			seen = append(seen, input)
			mu.Unlock()
			return nil
		})
	}

	d.Publish(context.Background(), "t", "quantum annealing")
	d.Wait()

	require.Len(t, seen, 3)
	for _, s := range seen {
		assert.Equal(t, "quantum annealing", s)
	}
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	obs := &countingObserver{}
	d := NewDispatcher(zap.NewNop(), WithObserver(obs))

	d.Register("t", func(ctx context.Context, input string) error { return nil })
	d.Register("t", func(ctx context.Context, input string) error { return errors.New("boom") })
	d.Register("t", func(ctx context.Context, input string) error { return nil })

	d.Publish(context.Background(), "t", "x")
	d.Wait()

	done, failed := obs.counts()
	assert.Equal(t, 2, done, "siblings of a failed handler must still complete")
	assert.Equal(t, 1, failed)
}

func TestHandlerPanicReportsAsFailure(t *testing.T) {
	obs := &countingObserver{}
	d := NewDispatcher(zap.NewNop(), WithObserver(obs))

	d.Register("t", func(ctx context.Context, input string) error { panic("bad handler") })

	d.Publish(context.Background(), "t", "x")
	d.Wait()

	done, failed := obs.counts()
	assert.Equal(t, 0, done)
	require.Equal(t, 1, failed)
	assert.Contains(t, obs.errs[0].Error(), "bad handler")
}

func TestDispatchersDoNotShareTopics(t *testing.T) {
	// Two invocations using the same topic name must not see each other's
	// handlers.
	var first, second atomic.Int32

	d1 := NewDispatcher(zap.NewNop())
	d1.Register("shared-name", func(ctx context.Context, input string) error {
		first.Add(1)
		return nil
	})

	d2 := NewDispatcher(zap.NewNop())
	d2.Register("shared-name", func(ctx context.Context, input string) error {
		second.Add(1)
		return nil
	})

	d2.Publish(context.Background(), "shared-name", "x")
	d2.Wait()
	d1.Wait()

	assert.Equal(t, int32(0), first.Load(), "handlers must not leak across invocations")
	assert.Equal(t, int32(1), second.Load())
}

func TestHandlersSeeRepeatedPublishes(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var calls atomic.Int32
	d.Register("t", func(ctx context.Context, input string) error {
		calls.Add(1)
		return nil
	})

	launched := 0
	for _, kw := range []string{"a", "b", "c"} {
		launched += d.Publish(context.Background(), "t", kw)
	}
	d.Wait()

	assert.Equal(t, 3, launched)
	assert.Equal(t, int32(3), calls.Load())
}
