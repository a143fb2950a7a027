package broadcast

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/praxos/paperscout/internal/metrics"
)

// Handler is a unit of work bound to a topic. It receives the published
// input and reports its outcome through its error return; its only other
// observable effect should be mutation of the accumulator it closes over.
type Handler func(ctx context.Context, input string) error

// Observer receives per-handler outcomes from a publish. Implementations
// must be safe for concurrent calls.
type Observer interface {
	HandlerDone(topic string)
	HandlerFailed(topic string, err error)
}

// Dispatcher is a topic registry scoped to a single workflow invocation.
// Registering against a fresh dispatcher per run keeps handlers from one
// invocation from leaking into the next.
type Dispatcher struct {
	logger   *zap.Logger
	observer Observer

	mu     sync.Mutex
	topics map[string][]Handler
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver routes handler outcomes to o. Without an observer, outcomes
// are only logged.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher returns an empty per-invocation dispatcher.
func NewDispatcher(logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		logger: logger,
		topics: make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register appends h to the ordered handler list for topic, creating the
// topic on first use. No deduplication: registering the same handler twice
// runs it twice per publish.
func (d *Dispatcher) Register(topic string, h Handler) {
	d.mu.Lock()
	d.topics[topic] = append(d.topics[topic], h)
	d.mu.Unlock()
}

// Handlers returns the number of handlers currently registered for topic.
func (d *Dispatcher) Handlers(topic string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.topics[topic])
}

// Publish launches every handler registered for topic in its own goroutine,
// passing input to each, and returns the number launched. Publishing to a
// topic with no handlers is a no-op. No ordering is guaranteed between
// handlers of the same publish; coordination must rely on the accumulator's
// counters only. Handler failures are isolated: each is logged, reported to
// the observer, and never aborts sibling handlers.
func (d *Dispatcher) Publish(ctx context.Context, topic, input string) int {
	d.mu.Lock()
	handlers := make([]Handler, len(d.topics[topic]))
	copy(handlers, d.topics[topic])
	d.mu.Unlock()

	for _, h := range handlers {
		d.wg.Add(1)
		go d.run(ctx, topic, input, h)
	}
	if len(handlers) > 0 {
		d.logger.Debug("published",
			zap.String("topic", topic),
			zap.Int("handlers", len(handlers)),
		)
	}
	return len(handlers)
}

func (d *Dispatcher) run(ctx context.Context, topic, input string, h Handler) {
	defer d.wg.Done()
	err := invoke(ctx, topic, input, h)
	if err != nil {
		d.logger.Warn("handler failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
		metrics.HandlerFailures.WithLabelValues(topic).Inc()
		if d.observer != nil {
			d.observer.HandlerFailed(topic, err)
		}
		return
	}
	metrics.HandlersCompleted.WithLabelValues(topic).Inc()
	if d.observer != nil {
		d.observer.HandlerDone(topic)
	}
}

// invoke converts a handler panic into an error so one misbehaving handler
// cannot wedge the completion gate.
func invoke(ctx context.Context, topic, input string, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic on topic %q: %v", topic, r)
		}
	}()
	return h(ctx, input)
}

// Wait blocks until all handlers launched by prior Publish calls have
// returned. Used for shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
