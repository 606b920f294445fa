package proximity

import (
	"time"

	"github.com/sirupsen/logrus"
)

// GoalState is the lifecycle state of a Monitor
type GoalState int

const (
	// Searching is entered on connection, before the first check.
	Searching GoalState = iota
	// Polling is entered when the first check did not confirm the goal.
	Polling
	// Confirmed is terminal.
	Confirmed
)

func (s GoalState) String() string {
	switch s {
	case Searching:
		return "searching"
	case Polling:
		return "polling"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Observation is the outcome of feeding one reading to a Monitor
type Observation struct {
	Reading Reading
	Band    Band
	Goal    bool
	State   GoalState

	// Confirmed is set only on the call that moved the monitor to Confirmed.
	Confirmed bool

	// Ignored is set when the reading arrived in a state that does not
	// accept samples and therefore had no effect.
	Ignored bool
}

// Monitor is the per-device proximity state machine.
//
// A Monitor is driven from a single goroutine (the engine loop) and is not
// safe for concurrent use. The state only moves forward:
// Searching -> Polling -> Confirmed, or Searching -> Confirmed.
type Monitor struct {
	name     string
	interval time.Duration
	timers   TimerFactory
	logger   *logrus.Logger

	state   GoalState
	started bool
	closed  bool
	timer   Timer
}

// NewMonitor creates a Monitor in the Searching state. timers arms the poll
// timer on entry to Polling; a nil factory arms nothing.
func NewMonitor(name string, interval time.Duration, timers TimerFactory, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timers == nil {
		timers = func(time.Duration) Timer { return nopTimer{} }
	}
	return &Monitor{
		name:     name,
		interval: interval,
		timers:   timers,
		logger:   logger,
		state:    Searching,
	}
}

// State returns the current goal state
func (m *Monitor) State() GoalState {
	return m.state
}

// Polling reports whether a timer tick should request a fresh sample
func (m *Monitor) Polling() bool {
	return m.state == Polling && !m.closed
}

// Interval returns the poll interval
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start performs the immediate check on entry. A non-goal reading moves the
// monitor to Polling and arms the poll timer.
func (m *Monitor) Start(r Reading) Observation {
	if m.started || m.closed {
		return m.ignore(r)
	}
	m.started = true

	obs := m.classify(r)
	if obs.Goal {
		m.state = Confirmed
		obs.Confirmed = true
	} else {
		m.state = Polling
		m.timer = m.timers(m.interval)
		m.logger.WithFields(logrus.Fields{
			"name":     m.name,
			"interval": m.interval,
		}).Debug("Tag not in basket yet, polling signal strength")
	}
	obs.State = m.state
	return obs
}

// Observe feeds a fresh sample taken on a timer tick. Samples are only
// accepted while Polling; a goal reading cancels the poll timer and moves
// the monitor to Confirmed.
func (m *Monitor) Observe(r Reading) Observation {
	if !m.Polling() {
		return m.ignore(r)
	}

	obs := m.classify(r)
	if obs.Goal {
		m.stopTimer()
		m.state = Confirmed
		obs.Confirmed = true
	}
	obs.State = m.state
	return obs
}

// Close releases the poll timer on device teardown. The goal state is kept.
func (m *Monitor) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimer()
}

func (m *Monitor) classify(r Reading) Observation {
	band, goal := Classify(r)
	m.logger.WithFields(logrus.Fields{
		"name":      m.name,
		"rssi":      int(r),
		"band":      band.String(),
		"in_basket": goal,
	}).Info("Tag signal strength")
	return Observation{Reading: r, Band: band, Goal: goal}
}

func (m *Monitor) ignore(r Reading) Observation {
	band, goal := Classify(r)
	m.logger.WithFields(logrus.Fields{
		"name":  m.name,
		"rssi":  int(r),
		"state": m.state.String(),
	}).Debug("Ignoring signal strength sample")
	return Observation{Reading: r, Band: band, Goal: goal, State: m.state, Ignored: true}
}

func (m *Monitor) stopTimer() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
}

type nopTimer struct{}

func (nopTimer) Stop() bool { return false }
