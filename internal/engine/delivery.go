package engine

import (
	"context"
	"sync"

	"github.com/srg/basket/internal/groutine"
)

// DefaultDeliveryQueueSize is the per-tag sink queue capacity when
// Config.DeliveryQueueSize is zero
const DefaultDeliveryQueueSize = 64

// delivery runs one session's sink I/O on its own worker, in submission
// order. A slow sink only holds up the tag it is writing for.
type delivery struct {
	ctx   context.Context
	queue chan func()
}

// startDelivery starts the worker. It stops when ctx is done; wg tracks it
// until the call in progress returns.
func startDelivery(ctx context.Context, name string, size int, wg *sync.WaitGroup, onPanic func(*groutine.PanicError)) *delivery {
	d := &delivery{ctx: ctx, queue: make(chan func(), size)}
	wg.Add(1)
	groutine.GoSafe(ctx, name, func(ctx context.Context) {
		defer wg.Done()
		d.run(ctx)
	}, onPanic)
	return d
}

func (d *delivery) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.queue:
			fn()
		}
	}
}

// submit blocks while the queue is full. Work submitted after the session
// ended is discarded.
func (d *delivery) submit(fn func()) {
	select {
	case d.queue <- fn:
	case <-d.ctx.Done():
	}
}
