package proximity

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// fakeTimer records how often it was armed and stopped
type fakeTimer struct {
	stops    int
	released bool
}

func (t *fakeTimer) Stop() bool {
	t.stops++
	if t.released {
		return false
	}
	t.released = true
	return true
}

type MonitorTestSuite struct {
	suite.Suite

	logger    *logrus.Logger
	timers    []*fakeTimer
	intervals []time.Duration
	monitor   *Monitor
}

func (s *MonitorTestSuite) SetupTest() {
	s.logger = logrus.New()
	s.logger.SetOutput(io.Discard)
	s.timers = nil
	s.intervals = nil
	s.monitor = NewMonitor("IoT Frisbee #3", DefaultPollInterval, s.factory, s.logger)
}

func (s *MonitorTestSuite) factory(interval time.Duration) Timer {
	t := &fakeTimer{}
	s.timers = append(s.timers, t)
	s.intervals = append(s.intervals, interval)
	return t
}

func (s *MonitorTestSuite) TestStart_ConfirmsImmediatelyOnGoal() {
	obs := s.monitor.Start(-40)

	s.True(obs.Goal)
	s.True(obs.Confirmed)
	s.Equal(Excellent, obs.Band)
	s.Equal(Confirmed, s.monitor.State())
	s.Empty(s.timers, "no timer MUST be armed when the first check confirms")
}

func (s *MonitorTestSuite) TestStart_ArmsTimerWhenNotGoal() {
	obs := s.monitor.Start(-90)

	s.False(obs.Goal)
	s.False(obs.Confirmed)
	s.Equal(VeryLow, obs.Band)
	s.Equal(Polling, s.monitor.State())
	s.True(s.monitor.Polling())
	s.Require().Len(s.timers, 1)
	s.Equal(time.Second, s.intervals[0])
}

func (s *MonitorTestSuite) TestStart_OnlyOnce() {
	s.monitor.Start(-90)
	obs := s.monitor.Start(-40)

	s.True(obs.Ignored)
	s.Equal(Polling, s.monitor.State())
	s.Len(s.timers, 1)
}

func (s *MonitorTestSuite) TestEndToEndSequence() {
	// GOAL: initial -90 enters Polling, then ticks sample [-90, -75, -55, -40]
	first := s.monitor.Start(-90)
	s.Equal(Polling, first.State)

	readings := []Reading{-90, -75, -55, -40}
	wantBands := []Band{VeryLow, Low, VeryGood, Excellent}
	wantStates := []GoalState{Polling, Polling, Polling, Confirmed}

	for i, r := range readings {
		obs := s.monitor.Observe(r)

		s.Equal(wantBands[i], obs.Band, "band of sample %d", i)
		s.Equal(i == len(readings)-1, obs.Goal, "goal of sample %d", i)
		s.Equal(i == len(readings)-1, obs.Confirmed, "confirmation of sample %d", i)
		s.Equal(wantStates[i], obs.State, "state after sample %d", i)
		s.False(obs.Ignored)
	}

	s.Require().Len(s.timers, 1)
	s.Equal(1, s.timers[0].stops, "timer MUST be cancelled exactly once")
}

func (s *MonitorTestSuite) TestConfirmedIsTerminal() {
	s.monitor.Start(-90)
	s.True(s.monitor.Observe(-45).Confirmed)

	for _, r := range []Reading{-45, -90, 0, -10} {
		obs := s.monitor.Observe(r)

		s.True(obs.Ignored)
		s.False(obs.Confirmed, "later samples MUST NOT re-trigger hand-off")
		s.Equal(Confirmed, s.monitor.State())
	}

	s.False(s.monitor.Polling())
	s.Equal(1, s.timers[0].stops)
}

func (s *MonitorTestSuite) TestObserve_BeforeStartIsIgnored() {
	obs := s.monitor.Observe(-40)

	s.True(obs.Ignored)
	s.Equal(Searching, s.monitor.State())
}

func (s *MonitorTestSuite) TestClose_ReleasesTimerOnce() {
	s.monitor.Start(-75)
	s.monitor.Close()
	s.monitor.Close()

	s.Equal(1, s.timers[0].stops)
	s.False(s.monitor.Polling())
	s.Equal(Polling, s.monitor.State(), "close MUST NOT rewrite the goal state")

	obs := s.monitor.Observe(-30)
	s.True(obs.Ignored, "samples after teardown MUST be no-ops")
}

func (s *MonitorTestSuite) TestClose_AfterConfirmedDoesNotStopAgain() {
	s.monitor.Start(-90)
	s.monitor.Observe(-20)
	s.monitor.Close()

	s.Equal(1, s.timers[0].stops)
	s.Equal(Confirmed, s.monitor.State())
}

func (s *MonitorTestSuite) TestNoAttemptLimit() {
	s.monitor.Start(-90)
	for i := 0; i < 1000; i++ {
		s.monitor.Observe(-85)
	}

	s.Equal(Polling, s.monitor.State())
	s.Equal(0, s.timers[0].stops)
}

func (s *MonitorTestSuite) TestDefaults() {
	m := NewMonitor("tag", 0, nil, nil)

	s.Equal(DefaultPollInterval, m.Interval())
	obs := m.Start(-90)
	s.Equal(Polling, obs.State)
	m.Close()
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func TestGoalState_String(t *testing.T) {
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "polling", Polling.String())
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "unknown", GoalState(9).String())
}
