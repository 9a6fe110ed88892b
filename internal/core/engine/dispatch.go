package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
)

// ErrQueueClosed is delivered to items that were not dispatched before Close.
var ErrQueueClosed = errors.New("dispatch queue closed")

// DefaultCallTimeout bounds a single upstream call.
const DefaultCallTimeout = 15 * time.Second

// Invoker performs a single upstream call.
type Invoker interface {
	Invoke(ctx context.Context, req core.UpstreamRequest) (*core.UpstreamResponse, error)
}

// Item is a pending upstream call. OnComplete fires exactly once, from the
// drain goroutine, before the next item is considered.
type Item struct {
	Request    core.UpstreamRequest
	OnComplete func(*core.UpstreamResponse, error)
}

// QueueOptions configures a DispatchQueue.
type QueueOptions struct {
	Clock       clockwork.Clock
	CallTimeout time.Duration
}

// DispatchQueue serializes every upstream call through a single FIFO so at
// most one call is in flight and the limiter's ring matches reality.
type DispatchQueue struct {
	limiter     *RateLimiter
	client      Invoker
	clock       clockwork.Clock
	callTimeout time.Duration

	mu       sync.Mutex
	items    []Item
	draining bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatchQueue returns an idle queue. The queue owns no goroutine until
// the first Enqueue.
func NewDispatchQueue(limiter *RateLimiter, client Invoker, opts QueueOptions) *DispatchQueue {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DispatchQueue{
		limiter:     limiter,
		client:      client,
		clock:       clock,
		callTimeout: timeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue appends an item and starts draining if the queue was idle.
func (q *DispatchQueue) Enqueue(item Item) error {
	if item.OnComplete == nil {
		item.OnComplete = func(*core.UpstreamResponse, error) {}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	depth := len(q.items)
	start := !q.draining
	if start {
		q.draining = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	metrics.SetQueueDepth(depth)
	if start {
		go q.drain()
	}
	return nil
}

// Do enqueues req and waits for its result. If ctx ends first the call still
// dispatches in turn and its result is discarded.
func (q *DispatchQueue) Do(ctx context.Context, req core.UpstreamRequest) (*core.UpstreamResponse, error) {
	type result struct {
		resp *core.UpstreamResponse
		err  error
	}

	done := make(chan result, 1)
	err := q.Enqueue(Item{
		Request: req,
		OnComplete: func(resp *core.UpstreamResponse, err error) {
			done <- result{resp: resp, err: err}
		},
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of undispatched items.
func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *DispatchQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops intake, fails undispatched items with ErrQueueClosed and waits
// for the drain goroutine to exit.
func (q *DispatchQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *DispatchQueue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			metrics.SetQueueDepth(0)
			return
		}
		item := q.items[0]
		q.items[0] = Item{}
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()

		metrics.SetQueueDepth(depth)
		q.dispatch(item)
	}
}

func (q *DispatchQueue) dispatch(item Item) {
	if q.ctx.Err() != nil {
		item.OnComplete(nil, ErrQueueClosed)
		return
	}

	if wait := q.limiter.TimeUntilNextAllowedCall(); wait > 0 {
		observability.Debug("Dispatch waiting for quota",
			zap.String("endpoint", item.Request.Label),
			zap.Duration("wait", wait))
		metrics.RecordQueueWait(wait)

		timer := q.clock.NewTimer(wait)
		select {
		case <-timer.Chan():
		case <-q.ctx.Done():
			timer.Stop()
			item.OnComplete(nil, ErrQueueClosed)
			return
		}
	}

	start := q.clock.Now()
	q.limiter.RecordCall(start)

	ctx, cancel := context.WithTimeout(q.ctx, q.callTimeout)
	resp, err := q.client.Invoke(ctx, item.Request)
	cancel()

	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		var transportErr *core.TransportError
		if !errors.As(err, &transportErr) {
			err = &core.TransportError{Op: item.Request.Label, Err: err}
		}
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	} else if code := core.StatusCodeOf(err); code != 0 {
		status = code
	}
	metrics.RecordUpstreamCall(item.Request.Label, status, q.clock.Since(start))

	var statusErr *core.StatusError
	if errors.As(err, &statusErr) && core.IsRateLimited(err) {
		if recErr := q.limiter.Record429(q.ctx, statusErr.RetryAfter); recErr != nil {
			observability.Warn("Failed to persist upstream backoff", zap.Error(recErr))
		}
	}

	item.OnComplete(resp, err)
}
