package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Default gateway settings
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second

	defaultBreakerFailures uint32 = 3
	defaultBreakerTimeout         = 10 * time.Second
)

// ErrGatewayUnavailable is returned while the reconnect breaker is open
var ErrGatewayUnavailable = errors.New("gateway unavailable")

// TCPConfig configures the gateway sink
type TCPConfig struct {
	Address      string
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// BreakerFailures is the number of consecutive failed dials before
	// reconnect attempts are suspended for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Dialer opens the gateway connection (can be overridden in tests)
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// TCPSink writes chunks to a TCP gateway. The connection is opened lazily
// and re-opened on the next write after a failure.
type TCPSink struct {
	cfg     TCPConfig
	dial    Dialer
	breaker *gobreaker.CircuitBreaker[net.Conn]
	logger  *logrus.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPSink creates the sink and makes one connection attempt. A failed
// attempt is not an error; the next Write retries.
func NewTCPSink(cfg TCPConfig, logger *logrus.Logger) *TCPSink {
	return NewTCPSinkWithDialer(cfg, (&net.Dialer{}).DialContext, logger)
}

// NewTCPSinkWithDialer is NewTCPSink with a custom dialer
func NewTCPSinkWithDialer(cfg TCPConfig, dial Dialer, logger *logrus.Logger) *TCPSink {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}

	s := &TCPSink{cfg: cfg, dial: dial, logger: logger}
	s.breaker = gobreaker.NewCircuitBreaker[net.Conn](gobreaker.Settings{
		Name:        "gateway:" + cfg.Address,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Gateway breaker state change")
		},
	})

	s.mu.Lock()
	if _, err := s.connectLocked(); err != nil {
		logger.WithError(err).WithField("address", cfg.Address).Warn("Gateway not reachable yet")
	}
	s.mu.Unlock()
	return s
}

// Write sends the chunk payload followed by a newline
func (s *TCPSink) Write(chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.connectLocked()
	if err != nil {
		return err
	}

	line := chunk.Data
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append([]byte(nil), line...), '\n')
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.dropLocked()
		return fmt.Errorf("gateway %s: set deadline: %w", s.cfg.Address, err)
	}
	if _, err := conn.Write(line); err != nil {
		s.dropLocked()
		return fmt.Errorf("gateway %s: write: %w", s.cfg.Address, err)
	}
	return nil
}

// Connected reports whether a gateway connection is currently open
func (s *TCPSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *TCPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *TCPSink) connectLocked() (net.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := s.breaker.Execute(func() (net.Conn, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
		defer cancel()
		return s.dial(ctx, "tcp", s.cfg.Address)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("gateway %s: %w: %w", s.cfg.Address, ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("gateway %s: connect: %w", s.cfg.Address, err)
	}

	s.logger.WithField("address", s.cfg.Address).Info("Connected to gateway")
	s.conn = conn
	return conn, nil
}

func (s *TCPSink) dropLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

var _ Sink = (*TCPSink)(nil)
