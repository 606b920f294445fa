package ptyio

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openOrSkip(t *testing.T, opts Options) *PTY {
	t.Helper()
	p, err := Open(opts)
	if err != nil {
		t.Skipf("PTY not available: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPTY_WriteReachesSlave(t *testing.T) {
	p := openOrSkip(t, Options{})
	require.NotEmpty(t, p.TTYName())

	slave, err := os.OpenFile(p.TTYName(), os.O_RDONLY, 0)
	require.NoError(t, err)
	defer slave.Close()

	n, err := p.Write([]byte("Data: hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 12)
		if _, err := io.ReadFull(slave, buf); err == nil {
			got <- buf
		}
	}()

	select {
	case data := <-got:
		assert.Equal(t, "Data: hello\n", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("slave never received the data")
	}

	assert.Eventually(t, func() bool { return p.Stats().WrittenBytes == 12 }, time.Second, 5*time.Millisecond)
}

func TestPTY_OverflowDropsExcess(t *testing.T) {
	p := openOrSkip(t, Options{BufferSize: 8, PollTimeout: 10 * time.Millisecond})

	n, err := p.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 8)
	assert.Equal(t, uint64(16-n), p.Stats().DroppedBytes)
	assert.Equal(t, 8, p.Stats().QueueCap)
}

func TestPTY_CloseIsIdempotent(t *testing.T) {
	p, err := Open(Options{PollTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Skipf("PTY not available: %v", err)
	}

	_ = p.Close()
	assert.NoError(t, p.Close())

	_, err = p.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestPTY_MasterStaysNonBlocking(t *testing.T) {
	p := openOrSkip(t, Options{PollTimeout: 10 * time.Millisecond})

	_, err := p.Write([]byte("wake the writer\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return p.Stats().QueueLen == 0 }, time.Second, 5*time.Millisecond)

	flags, err := unix.FcntlInt(uintptr(p.masterFd), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK, "master MUST stay non-blocking once the writer runs")
}

func TestPTY_CloseWhileWriting(t *testing.T) {
	p, err := Open(Options{BufferSize: 64, PollTimeout: 5 * time.Millisecond})
	if err != nil {
		t.Skipf("PTY not available: %v", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = p.Write([]byte("0123456789"))
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, p.Close())
	close(stop)
	<-done

	_, err = p.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
