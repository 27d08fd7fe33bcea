package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sensekit-server/internal/calibration"

	"github.com/cenkalti/backoff/v4"
)

type OverflowPolicy string

const (
	// OverflowBlock makes Dispatch wait for room in the queue, pushing
	// backpressure up to the transport.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropNewest rejects the incoming reading and counts it as lost.
	OverflowDropNewest OverflowPolicy = "drop_newest"
)

func ParseOverflowPolicy(value string) (OverflowPolicy, error) {
	switch OverflowPolicy(value) {
	case "", OverflowBlock:
		return OverflowBlock, nil
	case OverflowDropNewest:
		return OverflowDropNewest, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", value)
	}
}

type DispatcherOpts struct {
	QueueSize int
	Workers   int
	Policy    OverflowPolicy
	// RetryAttempts is the number of retries after a failed sink write.
	RetryAttempts int
	RetryInterval time.Duration
}

func DefaultDispatcherOpts() DispatcherOpts {
	return DispatcherOpts{
		QueueSize:     1024,
		Workers:       4,
		Policy:        OverflowBlock,
		RetryAttempts: 3,
		RetryInterval: 200 * time.Millisecond,
	}
}

// NamedSink labels a sink in logs and metrics.
type NamedSink struct {
	Name string
	Sink ReadingSink
}

// Dispatcher decouples sink writes from message receipt. Readings are queued
// on a bounded channel and handed to every sink by a fixed pool of workers.
type Dispatcher struct {
	opts    DispatcherOpts
	metrics *Metrics
	sinks   []NamedSink
	queue   chan calibration.Reading

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	workers   sync.WaitGroup
	lifetime  context.Context
	abort     context.CancelFunc
}

func NewDispatcher(opts DispatcherOpts, metrics *Metrics, sinks ...NamedSink) (*Dispatcher, error) {
	if opts.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", opts.QueueSize)
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", opts.Workers)
	}
	if opts.RetryAttempts < 0 {
		return nil, fmt.Errorf("retry attempts must not be negative, got %d", opts.RetryAttempts)
	}
	if len(sinks) == 0 {
		return nil, errors.New("dispatcher needs at least one sink")
	}
	policy, err := ParseOverflowPolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	opts.Policy = policy

	lifetime, abort := context.WithCancel(context.Background())
	d := &Dispatcher{
		opts:     opts,
		metrics:  metrics,
		sinks:    sinks,
		queue:    make(chan calibration.Reading, opts.QueueSize),
		lifetime: lifetime,
		abort:    abort,
	}

	if err := metrics.ObserveQueueDepth(d.Len); err != nil {
		abort()
		return nil, fmt.Errorf("registering queue depth gauge: %w", err)
	}

	return d, nil
}

// Start launches the worker pool. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.workers.Add(1)
			go d.work()
		}
	})
}

func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Dispatch queues one reading. Under OverflowBlock it waits until there is
// room or ctx is done; under OverflowDropNewest a full queue fails fast with
// ErrQueueFull.
func (d *Dispatcher) Dispatch(ctx context.Context, reading calibration.Reading) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	if d.opts.Policy == OverflowDropNewest {
		select {
		case d.queue <- reading:
		default:
			d.metrics.readingDropped(ctx)
			return ErrQueueFull
		}
	} else {
		select {
		case d.queue <- reading:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.metrics.readingDispatched(ctx)
	return nil
}

// Close stops accepting readings and waits for the queue to drain. If ctx
// ends first, pending retries are aborted, whatever is left in the queue is
// dropped and ErrDrainTimeout is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.Start()

	drained := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.abort()
		return nil
	case <-ctx.Done():
		left := len(d.queue)
		d.abort()
		return fmt.Errorf("%w: %d readings still queued", ErrDrainTimeout, left)
	}
}

func (d *Dispatcher) work() {
	defer d.workers.Done()

	for reading := range d.queue {
		if d.lifetime.Err() != nil {
			d.metrics.readingDropped(context.Background())
			continue
		}
		d.deliver(reading)
	}
}

func (d *Dispatcher) deliver(reading calibration.Reading) {
	for _, sink := range d.sinks {
		err := backoff.Retry(func() error {
			return sink.Sink.Store(d.lifetime, reading)
		}, d.retryPolicy())
		if err != nil {
			d.metrics.sinkFailed(d.lifetime, sink.Name)
			slog.Error("reading not stored",
				slog.String("sink", sink.Name),
				slog.String("device_id", reading.DeviceID),
				slog.String("sensor", string(reading.Sensor)),
				slog.Any("error", fmt.Errorf("%w: %w", ErrSinkWrite, err)))
			continue
		}
		d.metrics.readingStored(d.lifetime, sink.Name)
	}
}

func (d *Dispatcher) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.RetryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.opts.RetryAttempts)), d.lifetime)
}
