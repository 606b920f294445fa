package stream

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogSink writes every chunk to the log as "Data: <text>"
type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(chunk Chunk) error {
	s.logger.WithFields(logrus.Fields{
		"name":    chunk.Device,
		"address": chunk.Address,
		"seq":     chunk.Seq,
	}).Infof("Data: %s", strings.TrimRight(chunk.Text(), "\r\n"))
	return nil
}

func (s *LogSink) Close() error { return nil }

// MultiSink fans each chunk out to every sink. A failing sink does not stop
// delivery to the rest; the errors are joined.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(chunk Chunk) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReportGoal forwards to every sink that publishes goal events
func (m *MultiSink) ReportGoal(device, address string, rssi int) error {
	var errs []error
	for _, s := range m.sinks {
		if gr, ok := s.(GoalReporter); ok {
			if err := gr.ReportGoal(device, address, rssi); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink         = (*LogSink)(nil)
	_ Sink         = (*MultiSink)(nil)
	_ GoalReporter = (*MultiSink)(nil)
)
