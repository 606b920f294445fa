package proximity

import (
	"sync"
	"time"
)

// DefaultPollInterval is the re-sampling interval while a tag is polled
const DefaultPollInterval = 1000 * time.Millisecond

// Timer is a repeating timer owned by exactly one Monitor.
// Stop reports whether this call is the one that stopped it; later calls are no-ops.
type Timer interface {
	Stop() bool
}

// TimerFactory arms a repeating timer that fires every interval
type TimerFactory func(interval time.Duration) Timer

// Ticker is the real Timer. It calls fire on every tick from its own
// goroutine until stopped. A tick racing with Stop may still be delivered;
// receivers guard on their own state.
type Ticker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewTicker starts a Ticker
func NewTicker(interval time.Duration, fire func()) *Ticker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := &Ticker{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go t.loop(fire)
	return t
}

func (t *Ticker) loop(fire func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			fire()
		}
	}
}

// Stop cancels the ticker
func (t *Ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}

// TickerFactory returns a TimerFactory whose timers call fire on every tick
func TickerFactory(fire func()) TimerFactory {
	return func(interval time.Duration) Timer {
		return NewTicker(interval, fire)
	}
}
