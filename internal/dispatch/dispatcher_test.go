package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := New(Config{Enabled: false}, func(context.Context, int) {})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	if d.Enqueue(context.Background(), 1) {
		t.Fatal("nil dispatcher must not accept items")
	}
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestCloseDrainsBufferedItems(t *testing.T) {
	var mu sync.Mutex
	var got []int
	d := New(Config{Enabled: true, BufferSize: 16}, func(_ context.Context, v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		if !d.Enqueue(context.Background(), i) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("handled %d items, want 10", len(got))
	}
	if d.Enqueue(context.Background(), 99) {
		t.Fatal("closed dispatcher accepted an item")
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d := New(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, func(context.Context, int) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	defer d.Close()

	d.Enqueue(context.Background(), 1)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler did not start")
	}

	d.Enqueue(context.Background(), 2) // fills the buffer
	for i := 0; i < 5; i++ {
		if d.Enqueue(context.Background(), 3) {
			t.Fatal("expected enqueue to drop while full")
		}
	}
	if d.Dropped() != 5 {
		t.Fatalf("dropped = %d, want 5", d.Dropped())
	}
	close(release)
}

func TestBlockingEnqueueHonoursContext(t *testing.T) {
	release := make(chan struct{})
	d := New(Config{Enabled: true, BufferSize: 1}, func(context.Context, int) { <-release })
	defer func() {
		close(release)
		d.Close()
	}()

	d.Enqueue(context.Background(), 1)
	// The handler may or may not have taken item 1 yet; fill until blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	accepted := 0
	for i := 0; i < 3; i++ {
		if d.Enqueue(ctx, 2) {
			accepted++
		}
	}
	if accepted > 1 {
		t.Fatalf("accepted %d items past a full buffer", accepted)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected context expiry to count as a drop")
	}
}

func TestEveryAcceptedItemIsHandledWhenCloseRaces(t *testing.T) {
	for round := 0; round < 50; round++ {
		var handled atomic.Int64
		d := New(Config{Enabled: true, BufferSize: 4}, func(context.Context, int) {
			handled.Add(1)
		})

		var accepted atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 100; i++ {
					if d.Enqueue(context.Background(), i) {
						accepted.Add(1)
					}
				}
			}()
		}
		close(start)
		d.Close()
		wg.Wait()

		if handled.Load() != accepted.Load() {
			t.Fatalf("round %d: accepted %d items but handled %d", round, accepted.Load(), handled.Load())
		}
		if d.Dropped() != 0 {
			t.Fatalf("round %d: dropped = %d, want 0", round, d.Dropped())
		}
	}
}

func TestCloseReleasesBlockedEnqueue(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	d := New(Config{Enabled: true, BufferSize: 1}, func(_ context.Context, v int) {
		if v == 1 {
			close(started)
			<-release
		}
	})

	d.Enqueue(context.Background(), 1)
	<-started
	d.Enqueue(context.Background(), 2) // fills the buffer

	result := make(chan bool, 1)
	go func() { result <- d.Enqueue(context.Background(), 3) }()

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case ok := <-result:
		if ok {
			t.Fatal("blocked enqueue succeeded after close")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not release the blocked enqueue")
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close did not return")
	}
}
