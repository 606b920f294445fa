package engine

import (
	"github.com/srg/basket/internal/bootstrap"
	"github.com/srg/basket/internal/device"
)

// ref names the session an event belongs to. Sessions are keyed by address;
// the id tells a live session apart from an earlier one at the same address,
// so results of torn down sessions are dropped.
type ref struct {
	address string
	id      string
}

type event interface {
	target() ref
}

// advEvent is a sighting that passed the name filter
type advEvent struct {
	adv device.Advertisement
}

type connectedEvent struct {
	ref
	peripheral device.Peripheral
	err        error
}

type tickEvent struct {
	ref
}

type sampleEvent struct {
	ref
	rssi int
	err  error
}

type bootstrappedEvent struct {
	ref
	channel *bootstrap.Channel
	err     error
}

type batteryEvent struct {
	ref
	level int
	err   error
}

type disconnectedEvent struct {
	ref
}

// failedEvent reports a worker or delivery that panicked
type failedEvent struct {
	ref
	op  string
	err error
}

func (e advEvent) target() ref { return ref{address: e.adv.Addr()} }
func (r ref) target() ref      { return r }
