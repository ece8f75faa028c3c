package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"aidr-hq/bastion/pkg/telemetry/metrics"
)

// Delivery results recorded per sink.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Options configures an Emitter.
type Options struct {
	// QueueSize bounds buffered events. Default: 1000
	QueueSize int

	// Workers delivering events. Default: 2
	Workers int

	// DeliverTimeout bounds one delivery to one sink. Default: 10s
	DeliverTimeout time.Duration
}

// Emitter queues events and delivers them to every sink.
type Emitter struct {
	sinks   []Sink
	queue   chan *Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	// closeMu orders sends against close(done): every accepted event is
	// queued before the workers start their final drain.
	closeMu sync.RWMutex
	closed  bool
	timeout time.Duration
	dropped atomic.Int64
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewEmitter starts the delivery workers. The collector may be nil.
func NewEmitter(opts Options, collector *metrics.Collector, logger *slog.Logger, sinks ...Sink) *Emitter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Emitter{
		sinks:   sinks,
		queue:   make(chan *Event, opts.QueueSize),
		done:    make(chan struct{}),
		timeout: opts.DeliverTimeout,
		metrics: collector,
		logger:  logger.With("component", "notify"),
	}

	for i := 0; i < opts.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	e.logger.Info("notification emitter started",
		"sinks", names,
		"queue_size", opts.QueueSize,
		"workers", opts.Workers,
	)
	return e
}

// Emit queues ev and returns immediately. It reports false when the event
// was dropped because the queue is full or the emitter is closed.
func (e *Emitter) Emit(ev *Event) bool {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()

	if e.closed {
		e.drop(ev, "emitter closed")
		return false
	}

	select {
	case e.queue <- ev:
		return true
	default:
		e.drop(ev, "queue full")
		return false
	}
}

func (e *Emitter) drop(ev *Event, reason string) {
	e.dropped.Add(1)
	e.metrics.RecordNotifyDropped()
	e.logger.Warn("notification dropped", "task_id", ev.TaskID, "reason", reason)
}

// Dropped returns the number of dropped events.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.queue:
			e.deliver(ev)
		case <-e.done:
			for {
				select {
				case ev := <-e.queue:
					e.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		err := s.Deliver(ctx, ev)
		cancel()

		if err != nil {
			e.metrics.RecordNotify(s.Name(), ResultFailed)
			e.logger.Error("notification delivery failed",
				"sink", s.Name(),
				"task_id", ev.TaskID,
				"error", err,
			)
			continue
		}
		e.metrics.RecordNotify(s.Name(), ResultDelivered)
		e.logger.Debug("notification delivered", "sink", s.Name(), "task_id", ev.TaskID)
	}
}

// Close stops accepting events, drains the queue and closes every sink.
// Draining stops early when ctx expires.
func (e *Emitter) Close(ctx context.Context) error {
	e.once.Do(func() {
		e.closeMu.Lock()
		e.closed = true
		close(e.done)
		e.closeMu.Unlock()
	})

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()

	var errs []error
	select {
	case <-drained:
	case <-ctx.Done():
		errs = append(errs, errors.New("notification queue not drained before shutdown"))
	}

	for _, s := range e.sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	e.logger.Info("notification emitter stopped", "dropped", e.dropped.Load())
	return errors.Join(errs...)
}
