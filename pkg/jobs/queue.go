package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the buffer has no free slot.
var ErrQueueFull = errors.New("queue full")

// ErrNotRunning is returned by Enqueue before Start or once Shutdown begins.
var ErrNotRunning = errors.New("queue not running")

// Handler processes one payload.
type Handler[T any] func(context.Context, T) error

// DropFunc observes payloads abandoned after the last attempt failed or left
// unprocessed at shutdown.
type DropFunc[T any] func(payload T, attempts int, err error)

// Config tunes a worker pool.
type Config[T any] struct {
	Workers    int
	BufferSize int
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// RetryDelay grows linearly with the attempt number.
	RetryDelay time.Duration
	Logger     *zap.Logger
	OnDrop     DropFunc[T]
}

// Queue is an in-memory worker pool. Enqueue never blocks the caller and
// failed payloads are retried by the same worker before being dropped.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config[T]

	items   chan T
	mu      sync.RWMutex
	ctx     context.Context
	stop    context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
	pending sync.WaitGroup
}

// New builds a queue; call Start before enqueueing.
func New[T any](name string, handler Handler[T], cfg Config[T]) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		items:   make(chan T, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.stop = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Shutdown stops intake and lets the workers drain the buffer until ctx is done,
// then cancels them. Payloads still unprocessed at that point go to OnDrop.
func (q *Queue[T]) Shutdown(ctx context.Context) {
	q.mu.Lock()
	running, stop := q.ctx, q.stop
	q.closed = true
	q.mu.Unlock()
	if stop == nil {
		return
	}

	drained := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-running.Done():
	case <-ctx.Done():
		q.cfg.Logger.Warn("queue drain timed out", zap.String("queue", q.name), zap.Int("buffered", len(q.items)))
	}
	stop()
	q.wg.Wait()

	abandoned := 0
drain:
	for {
		select {
		case payload := <-q.items:
			abandoned++
			q.drop(payload, 0, ErrNotRunning)
			q.pending.Done()
		default:
			break drain
		}
	}
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name), zap.Int("abandoned", abandoned))
}

// Enqueue hands payload to the pool, failing fast when the buffer is full.
func (q *Queue[T]) Enqueue(payload T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.ctx == nil || q.closed || q.ctx.Err() != nil {
		return fmt.Errorf("queue %s: %w", q.name, ErrNotRunning)
	}

	q.pending.Add(1)
	select {
	case q.items <- payload:
		return nil
	default:
		q.pending.Done()
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case payload := <-q.items:
			q.process(payload)
			q.pending.Done()
		}
	}
}

func (q *Queue[T]) process(payload T) {
	var err error
	attempts := 0
	for attempts <= q.cfg.MaxRetries {
		if attempts > 0 {
			q.cfg.Logger.Warn("retrying job", zap.String("queue", q.name), zap.Int("attempt", attempts+1), zap.Error(err))
			timer := time.NewTimer(time.Duration(attempts) * q.cfg.RetryDelay)
			select {
			case <-q.ctx.Done():
				timer.Stop()
				q.drop(payload, attempts, q.ctx.Err())
				return
			case <-timer.C:
			}
		}
		attempts++
		if err = q.handler(q.ctx, payload); err == nil {
			return
		}
	}

	q.cfg.Logger.Error("job dropped", zap.String("queue", q.name), zap.Int("attempts", attempts), zap.Error(err))
	q.drop(payload, attempts, err)
}

func (q *Queue[T]) drop(payload T, attempts int, err error) {
	if q.cfg.OnDrop != nil {
		q.cfg.OnDrop(payload, attempts, err)
	}
}
