package stream

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/ptyio"
)

// PTYSink mirrors the raw stream onto a pseudo-terminal
type PTYSink struct {
	pty    *ptyio.PTY
	logger *logrus.Logger
}

// NewPTYSink opens a PTY with a queue of bufferSize bytes
func NewPTYSink(bufferSize int, logger *logrus.Logger) (*PTYSink, error) {
	if logger == nil {
		logger = logrus.New()
	}
	p, err := ptyio.Open(ptyio.Options{BufferSize: bufferSize, Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.WithField("tty", p.TTYName()).Info("Data stream available on PTY")
	return &PTYSink{pty: p, logger: logger}, nil
}

// TTYName returns the path serial tools should open
func (s *PTYSink) TTYName() string {
	return s.pty.TTYName()
}

func (s *PTYSink) Write(chunk Chunk) error {
	n, err := s.pty.Write(chunk.Data)
	if err != nil {
		return fmt.Errorf("pty %s: %w", s.pty.TTYName(), err)
	}
	if n < len(chunk.Data) {
		return fmt.Errorf("pty %s: queue full, dropped %d bytes", s.pty.TTYName(), len(chunk.Data)-n)
	}
	return nil
}

func (s *PTYSink) Close() error {
	return s.pty.Close()
}

var _ Sink = (*PTYSink)(nil)
