// Package stream forwards payloads from a tag's rx endpoint to sinks.
package stream

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/bootstrap"
)

// Chunk is one notification payload as received from the tag
type Chunk struct {
	Device  string
	Address string
	Seq     uint64
	Time    time.Time
	Data    []byte
}

// Text returns the payload decoded as UTF-8 text
func (c Chunk) Text() string {
	return string(c.Data)
}

// Sink receives chunks in receipt order
type Sink interface {
	Write(chunk Chunk) error
	Close() error
}

// GoalReporter is implemented by sinks that also publish proximity
// confirmations.
type GoalReporter interface {
	ReportGoal(device, address string, rssi int) error
}

// Executor runs a delivery. The engine supplies one that queues work on the
// tag's own delivery worker, in receipt order.
type Executor func(fn func())

// Option configures a Consumer
type Option func(*Consumer)

// WithExecutor routes deliveries through exec instead of the notifying
// goroutine.
func WithExecutor(exec Executor) Option {
	return func(c *Consumer) { c.exec = exec }
}

// WithClock overrides the receipt timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

// Consumer subscribes to a channel's rx endpoint and hands every chunk to
// its sink. It has no buffering of its own.
type Consumer struct {
	device  string
	address string
	sink    Sink
	logger  *logrus.Logger
	exec    Executor
	now     func() time.Time

	seq       atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewConsumer creates a Consumer delivering to sink
func NewConsumer(device, address string, sink Sink, logger *logrus.Logger, opts ...Option) *Consumer {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Consumer{
		device:  device,
		address: address,
		sink:    sink,
		logger:  logger,
		exec:    func(fn func()) { fn() },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach registers the rx listener. It satisfies bootstrap.Attacher and runs
// before notifications are turned on.
func (c *Consumer) Attach(ch *bootstrap.Channel) {
	ch.RX().OnData(c.receive)
}

func (c *Consumer) receive(data []byte) {
	chunk := Chunk{
		Device:  c.device,
		Address: c.address,
		Seq:     c.seq.Add(1),
		Time:    c.now(),
		Data:    append([]byte(nil), data...),
	}
	c.exec(func() { c.deliver(chunk) })
}

func (c *Consumer) deliver(chunk Chunk) {
	if err := c.sink.Write(chunk); err != nil {
		c.failed.Add(1)
		c.logger.WithFields(logrus.Fields{
			"name":    chunk.Device,
			"address": chunk.Address,
			"seq":     chunk.Seq,
		}).WithError(err).Warn("Failed to deliver data")
		return
	}
	c.delivered.Add(1)
}

// Stats returns how many chunks were delivered and how many the sink refused
func (c *Consumer) Stats() (delivered, failed uint64) {
	return c.delivered.Load(), c.failed.Load()
}

var _ bootstrap.Attacher = (*Consumer)(nil)
