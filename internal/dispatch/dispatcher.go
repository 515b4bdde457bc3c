package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Handler consumes one item on the dispatcher goroutine.
type Handler[T any] func(ctx context.Context, item T)

// Dispatcher asynchronously forwards items to a single handler goroutine.
// A nil *Dispatcher is valid and drops everything.
type Dispatcher[T any] struct {
	cfg       Config
	handle    Handler[T]
	ch        chan T
	stop      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once

	// mu is held shared for every send so Close can wait out senders
	// before the handler drains.
	mu     sync.RWMutex
	closed bool
}

// New starts a dispatcher. It returns nil when cfg.Enabled is false.
func New[T any](cfg Config, handle Handler[T]) *Dispatcher[T] {
	if !cfg.Enabled || handle == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher[T]{
		cfg:    cfg,
		handle: handle,
		ch:     make(chan T, cfg.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()

	for {
		select {
		case item := <-d.ch:
			d.handle(context.Background(), item)
		case <-d.done:
			for {
				select {
				case item := <-d.ch:
					d.handle(context.Background(), item)
				default:
					return
				}
			}
		}
	}
}

// Enqueue hands item to the handler goroutine. With DropIfFull it never
// blocks and counts the drop instead; otherwise it waits for room, ctx or
// Close. It reports whether the item was queued. Every queued item is
// handled before Close returns.
func (d *Dispatcher[T]) Enqueue(ctx context.Context, item T) bool {
	if d == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- item:
			return true
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- item:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.stop:
		return false
	}
}

// Close stops accepting items, drains the buffer and waits for the handler.
func (d *Dispatcher[T]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		// Release blocked senders, then wait for in-flight sends.
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of items that were not queued.
func (d *Dispatcher[T]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
