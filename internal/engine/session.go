package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/srg/basket/internal/bootstrap"
	"github.com/srg/basket/internal/device"
	"github.com/srg/basket/internal/proximity"
	"github.com/srg/basket/internal/stream"
)

// Phase is the pipeline stage a session is in
type Phase int32

const (
	PhaseConnecting Phase = iota
	PhaseMonitoring
	PhaseBootstrapping
	PhaseStreaming
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseMonitoring:
		return "monitoring"
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseStreaming:
		return "streaming"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionInfo is a point-in-time view of one tracked tag
type SessionInfo struct {
	ID      string
	Name    string
	Address string
	Phase   Phase
	Since   time.Time
}

// session is one device chain. Everything except phase is owned by the
// engine loop.
type session struct {
	id      string
	name    string
	address string
	adv     device.Advertisement
	since   time.Time

	ctx    context.Context
	cancel context.CancelFunc

	peripheral device.Peripheral
	monitor    *proximity.Monitor
	consumer   *stream.Consumer
	delivery   *delivery
	channel    *bootstrap.Channel

	// sampling is set while an RSSI read is in flight
	sampling bool

	phase atomic.Int32
}

func newSession(parent context.Context, adv device.Advertisement) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:      ulid.Make().String(),
		name:    adv.LocalName(),
		address: adv.Addr(),
		adv:     adv,
		since:   time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.setPhase(PhaseConnecting)
	return s
}

func (s *session) ref() ref {
	return ref{address: s.address, id: s.id}
}

func (s *session) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

func (s *session) getPhase() Phase {
	return Phase(s.phase.Load())
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:      s.id,
		Name:    s.name,
		Address: s.address,
		Phase:   s.getPhase(),
		Since:   s.since,
	}
}
