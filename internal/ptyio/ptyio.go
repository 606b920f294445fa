// Package ptyio exposes an outbound byte stream on a pseudo-terminal.
//
// Writes never block: bytes are queued in a ring buffer and drained to the
// PTY master by a background writer. A serial tool attached to the slave
// path (TTYName) sees the stream as if it came from a UART.
//
//	p, err := ptyio.Open(ptyio.Options{BufferSize: 64 * 1024, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//	fmt.Println("attach to", p.TTYName())
//	p.Write([]byte("hello\n"))
package ptyio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/srg/basket/internal/groutine"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	// DefaultBufferSize is the queue capacity when Options.BufferSize is zero
	DefaultBufferSize = 64 * 1024

	// DefaultPollTimeout bounds how long the writer waits before rechecking
	// for shutdown.
	DefaultPollTimeout = 50 * time.Millisecond
)

// Options configures Open
type Options struct {
	BufferSize  int
	PollTimeout time.Duration
	Logger      *logrus.Logger
}

// Stats are runtime counters for monitoring
type Stats struct {
	QueueLen     int
	QueueCap     int
	DroppedBytes uint64
	WrittenBytes uint64
}

// PTY is a pseudo-terminal pair whose master side is fed from a ring buffer
type PTY struct {
	logger      *logrus.Logger
	master      *os.File
	masterFd    int
	slave       *os.File
	ttyName     string
	queue       *ringbuffer.RingBuffer
	wakeup      chan struct{}
	pollTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

// Open creates the PTY pair and starts the background writer
func Open(opts Options) (*PTY, error) {
	master, slave, masterFd, err := createPTY()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	poll := opts.PollTimeout
	if poll <= 0 {
		poll = DefaultPollTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &PTY{
		logger:      logger,
		master:      master,
		masterFd:    masterFd,
		slave:       slave, // held open so the slave path stays valid
		ttyName:     slave.Name(),
		queue:       ringbuffer.New(size),
		wakeup:      make(chan struct{}, 1),
		pollTimeout: poll,
		ctx:         ctx,
		cancel:      cancel,
	}

	p.wg.Add(1)
	groutine.Go(ctx, "pty-write-loop", func(ctx context.Context) {
		defer p.wg.Done()
		p.writeLoop(ctx, masterFd)
	})

	return p, nil
}

// TTYName returns the slave device path, e.g. /dev/pts/5
func (p *PTY) TTYName() string {
	return p.ttyName
}

// Write queues data for the slave. It never blocks; when the queue is full
// the excess is dropped and n reports what was queued.
func (p *PTY) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, os.ErrClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	// A short write means the queue is full; the error only repeats that.
	n, _ := p.queue.Write(data)
	if n < len(data) {
		dropped := len(data) - n
		p.dropped.Add(uint64(dropped))
		p.logger.WithFields(logrus.Fields{
			"tty":     p.ttyName,
			"dropped": dropped,
			"queued":  n,
		}).Warn("PTY queue overflow")
	}

	select {
	case p.wakeup <- struct{}{}:
	default:
	}
	return n, nil
}

// writeLoop gets the master descriptor from Open. Calling Fd here would race
// with Close and switch the file back to blocking mode.
func (p *PTY) writeLoop(ctx context.Context, fd int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("PTY write loop panicked (recovered): %v", r)
		}
	}()

	master := p.master
	pollFd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	buf := make([]byte, 4096)

	for {
		if p.queue.IsEmpty() {
			select {
			case <-ctx.Done():
				return
			case <-p.wakeup:
			case <-time.After(p.pollTimeout):
				continue
			}
		}

		n, err := p.queue.Read(buf)
		if n == 0 || errors.Is(err, ringbuffer.ErrIsEmpty) {
			continue
		}

		for offset := 0; offset < n; {
			if ctx.Err() != nil {
				return
			}
			w, err := master.Write(buf[offset:n])
			if w > 0 {
				offset += w
				p.written.Add(uint64(w))
			}
			if err == nil {
				continue
			}
			switch {
			case errors.Is(err, syscall.EINTR):
			case errors.Is(err, syscall.EAGAIN):
				// No reader drains the slave yet; wait until writable.
				if _, perr := unix.Poll(pollFd, int(p.pollTimeout.Milliseconds())); perr != nil && !errors.Is(perr, syscall.EINTR) {
					p.logger.Warnf("PTY poll error: %v", perr)
				}
			case errors.Is(err, syscall.EBADF), errors.Is(err, os.ErrClosed):
				return
			default:
				p.logger.WithError(err).WithField("tty", p.ttyName).Error("PTY write loop stopped")
				return
			}
		}
	}
}

// Stats returns instantaneous counters
func (p *PTY) Stats() Stats {
	return Stats{
		QueueLen:     p.queue.Length(),
		QueueCap:     p.queue.Capacity(),
		DroppedBytes: p.dropped.Load(),
		WrittenBytes: p.written.Load(),
	}
}

// Close stops the writer and releases both ends of the pair. It is safe to
// call more than once.
func (p *PTY) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()

	var errs []error
	if err := p.master.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close PTY master: %w", err))
	}
	if err := p.slave.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close PTY slave: %w", err))
	}

	done := make(chan struct{})
	groutine.Go(context.Background(), "pty-wait-close", func(ctx context.Context) {
		p.wg.Wait()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(p.pollTimeout*3 + time.Second):
		p.logger.WithField("tty", p.ttyName).Error("PTY writer did not stop in time")
	}

	return errors.Join(errs...)
}

// createPTY opens a pair, puts the slave in raw mode and makes the master
// non-blocking. The master descriptor is read once, before SetNonblock.
func createPTY() (*os.File, *os.File, int, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("failed to create PTY (check permissions and available PTY devices): %w", err)
	}

	cleanup := func(step string, cause error) error {
		return errors.Join(
			fmt.Errorf("failed to set PTY %s %s: %w", slave.Name(), step, cause),
			master.Close(),
			slave.Close(),
		)
	}

	masterFd := int(master.Fd())
	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		return nil, nil, -1, cleanup("to raw mode", err)
	}
	if err := syscall.SetNonblock(masterFd, true); err != nil {
		return nil, nil, -1, cleanup("master non-blocking", err)
	}
	return master, slave, masterFd, nil
}
