// Package engine runs the basket pipeline: discovery, proximity monitoring,
// channel bootstrap and data streaming, one chain per tag.
//
// All session state lives on a single event loop goroutine. Blocking
// transport calls run in named worker goroutines that post their results
// back to the loop, and sink I/O runs on a per-tag delivery worker, so one
// slow or failing tag never holds up another.
//
// A tag whose pipeline failed or whose channel was unavailable is released
// for good; later sightings are ignored. A tag that disconnected is picked
// up again on its next sighting.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/bootstrap"
	"github.com/srg/basket/internal/device"
	"github.com/srg/basket/internal/discovery"
	"github.com/srg/basket/internal/groutine"
	"github.com/srg/basket/internal/proximity"
	"github.com/srg/basket/internal/stream"
)

// DefaultQueueSize is the event queue capacity when Config.QueueSize is zero
const DefaultQueueSize = 256

var (
	// ErrAlreadyStarted is returned by a second call to Run
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrScanStopped is wrapped when the scanner returns while the engine
	// is still running.
	ErrScanStopped = errors.New("scanner stopped unexpectedly")
)

// Config holds the pipeline parameters
type Config struct {
	NamePrefix   string
	PollInterval time.Duration
	Endpoints    bootstrap.Endpoints

	// ReadBattery reads the battery level once the channel is active
	ReadBattery bool

	// OpTimeout bounds RSSI reads, discovery and battery reads. Zero means
	// no bound beyond the transport's own.
	OpTimeout time.Duration

	QueueSize int

	// DeliveryQueueSize bounds the chunks waiting for the sink per tag
	DeliveryQueueSize int
}

// TimerSource builds the poll timer factory for one session. fire is called
// on every tick.
type TimerSource func(fire func()) proximity.TimerFactory

// Option configures an Engine
type Option func(*Engine)

// WithTimerSource replaces the wall-clock poll timers
func WithTimerSource(src TimerSource) Option {
	return func(e *Engine) { e.timers = src }
}

// Stats are lifetime counters
type Stats struct {
	Sessions    uint64
	Goals       uint64
	Channels    uint64
	Unavailable uint64
	Failures    uint64
	Disconnects uint64
}

// Engine tracks tags from discovery to streaming
type Engine struct {
	cfg       Config
	scanner   device.Scanner
	connector device.Connector
	sink      stream.Sink
	logger    *logrus.Logger

	filter *discovery.Filter
	boot   *bootstrap.Bootstrapper
	timers TimerSource

	sessions *hashmap.Map[string, *session]
	// released maps retired addresses to the reason they were let go
	released   *hashmap.Map[string, string]
	events     chan event
	done       chan struct{}
	started    atomic.Bool
	releases   sync.WaitGroup
	deliveries sync.WaitGroup

	sessionCount     atomic.Uint64
	goalCount        atomic.Uint64
	channelCount     atomic.Uint64
	unavailableCount atomic.Uint64
	failureCount     atomic.Uint64
	disconnectCount  atomic.Uint64
}

// New creates an Engine. Data chunks and goal confirmations go to sink;
// a sink that implements stream.GoalReporter is told about every goal.
func New(cfg Config, scanner device.Scanner, connector device.Connector, sink stream.Sink, logger *logrus.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = discovery.DefaultNamePrefix
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = proximity.DefaultPollInterval
	}
	if cfg.Endpoints == (bootstrap.Endpoints{}) {
		cfg.Endpoints = bootstrap.DefaultEndpoints()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.DeliveryQueueSize <= 0 {
		cfg.DeliveryQueueSize = DefaultDeliveryQueueSize
	}
	if sink == nil {
		sink = stream.NewLogSink(logger)
	}

	e := &Engine{
		cfg:       cfg,
		scanner:   scanner,
		connector: connector,
		sink:      sink,
		logger:    logger,
		filter:    discovery.NewFilter(cfg.NamePrefix, logger),
		boot:      bootstrap.New(cfg.Endpoints, logger),
		timers:    proximity.TickerFactory,
		sessions:  hashmap.New[string, *session](),
		released:  hashmap.New[string, string](),
		events:    make(chan event, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run scans and drives every session until ctx is cancelled or the scanner
// fails. Cancellation is a clean stop and returns nil. Every session is torn
// down and its peripheral released before Run returns. An Engine runs once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(e.done)

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()
	defer e.shutdown()

	scanErr := make(chan error, 1)
	groutine.GoSafe(scanCtx, "engine-scan", func(ctx context.Context) {
		scanErr <- e.scanner.Scan(ctx, true, e.onAdvertisement)
	}, func(perr *groutine.PanicError) {
		scanErr <- perr
	})

	e.logger.WithFields(logrus.Fields{
		"prefix":   e.cfg.NamePrefix,
		"interval": e.cfg.PollInterval,
	}).Info("Scanning for tags")

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("Engine stopping: context cancelled")
			return nil
		case err := <-scanErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = ErrScanStopped
			}
			return fmt.Errorf("scan: %w", err)
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

// Sessions returns a snapshot of the tracked tags. Safe to call from any
// goroutine.
func (e *Engine) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, e.sessions.Len())
	e.sessions.Range(func(_ string, s *session) bool {
		out = append(out, s.info())
		return true
	})
	return out
}

// Stats returns the lifetime counters
func (e *Engine) Stats() Stats {
	return Stats{
		Sessions:    e.sessionCount.Load(),
		Goals:       e.goalCount.Load(),
		Channels:    e.channelCount.Load(),
		Unavailable: e.unavailableCount.Load(),
		Failures:    e.failureCount.Load(),
		Disconnects: e.disconnectCount.Load(),
	}
}

// onAdvertisement runs on the scan goroutine. Tracked and released
// addresses are skipped before filtering so repeat sightings stay cheap.
func (e *Engine) onAdvertisement(adv device.Advertisement) {
	if e.ignored(adv.Addr()) {
		return
	}
	if !e.filter.Accept(adv) {
		return
	}
	e.post(advEvent{adv: adv})
}

// post queues ev for the loop. It reports false once the engine has stopped.
func (e *Engine) post(ev event) bool {
	select {
	case e.events <- ev:
		return true
	case <-e.done:
		return false
	}
}

func (e *Engine) dispatch(ev event) {
	if adv, ok := ev.(advEvent); ok {
		e.handleAdvertisement(adv.adv)
		return
	}

	s := e.lookup(ev.target())
	if s == nil {
		e.dropStale(ev)
		return
	}

	switch ev := ev.(type) {
	case connectedEvent:
		e.handleConnected(s, ev)
	case tickEvent:
		e.handleTick(s)
	case sampleEvent:
		e.handleSample(s, ev)
	case bootstrappedEvent:
		e.handleBootstrapped(s, ev)
	case batteryEvent:
		e.handleBattery(s, ev)
	case disconnectedEvent:
		e.handleDisconnected(s)
	case failedEvent:
		e.fail(s, device.TransportFailure(ev.op, ev.err))
	}
}

func (e *Engine) lookup(r ref) *session {
	s, ok := e.sessions.Get(r.address)
	if !ok || s.id != r.id {
		return nil
	}
	return s
}

// dropStale discards an event of a session that is gone. A connection that
// completed after teardown is released here.
func (e *Engine) dropStale(ev event) {
	if c, ok := ev.(connectedEvent); ok && c.peripheral != nil {
		e.release(c.peripheral)
	}
	e.logger.WithFields(logrus.Fields{
		"address": ev.target().address,
		"session": ev.target().id,
		"event":   fmt.Sprintf("%T", ev),
	}).Debug("Dropping event of closed session")
}

func (e *Engine) handleAdvertisement(adv device.Advertisement) {
	if e.ignored(adv.Addr()) {
		return
	}

	s := newSession(context.Background(), adv)
	e.sessions.Set(s.address, s)
	e.sessionCount.Add(1)

	e.logger.WithFields(logrus.Fields{
		"name":    s.name,
		"address": s.address,
		"rssi":    adv.RSSI(),
		"session": s.id,
	}).Info("Tag discovered, connecting")

	e.spawn(s, "connect", func(ctx context.Context) event {
		p, err := e.connector.Connect(ctx, adv)
		return connectedEvent{ref: s.ref(), peripheral: p, err: err}
	})
}

func (e *Engine) handleConnected(s *session, ev connectedEvent) {
	if ev.err != nil {
		e.fail(s, device.TransportFailure("connect", ev.err))
		return
	}

	s.peripheral = ev.peripheral
	e.watchDisconnect(s)

	r := s.ref()
	s.monitor = proximity.NewMonitor(s.name, e.cfg.PollInterval, e.timers(func() {
		e.post(tickEvent{ref: r})
	}), e.logger)
	s.setPhase(PhaseMonitoring)

	e.logger.WithFields(logrus.Fields{
		"name":    s.name,
		"address": s.address,
	}).Info("Tag connected")

	if obs := s.monitor.Start(proximity.Reading(s.peripheral.RSSI())); obs.Confirmed {
		e.confirm(s, obs)
	}
}

func (e *Engine) handleTick(s *session) {
	if s.monitor == nil || !s.monitor.Polling() || s.sampling {
		return
	}
	s.sampling = true

	p := s.peripheral
	e.spawn(s, "rssi", func(ctx context.Context) event {
		ctx, cancel := e.opContext(ctx)
		defer cancel()
		rssi, err := p.ReadRSSI(ctx)
		return sampleEvent{ref: s.ref(), rssi: rssi, err: err}
	})
}

func (e *Engine) handleSample(s *session, ev sampleEvent) {
	s.sampling = false
	if ev.err != nil {
		e.fail(s, device.TransportFailure("read rssi", ev.err))
		return
	}
	if obs := s.monitor.Observe(proximity.Reading(ev.rssi)); obs.Confirmed {
		e.confirm(s, obs)
	}
}

// confirm runs once per session, on the transition to Confirmed
func (e *Engine) confirm(s *session, obs proximity.Observation) {
	e.goalCount.Add(1)
	e.logger.WithFields(logrus.Fields{
		"name":    s.name,
		"address": s.address,
		"rssi":    int(obs.Reading),
		"band":    obs.Band.String(),
	}).Info("Tag is in the basket")

	s.setPhase(PhaseBootstrapping)
	r := s.ref()
	s.delivery = startDelivery(s.ctx, "deliver-"+s.address, e.cfg.DeliveryQueueSize, &e.deliveries, func(perr *groutine.PanicError) {
		e.post(failedEvent{ref: r, op: "deliver", err: perr})
	})

	if gr, ok := e.sink.(stream.GoalReporter); ok {
		name, address, rssi := s.name, s.address, int(obs.Reading)
		s.delivery.submit(func() {
			if err := gr.ReportGoal(name, address, rssi); err != nil {
				e.logger.WithField("address", address).WithError(err).Warn("Failed to report goal")
			}
		})
	}

	s.consumer = stream.NewConsumer(s.name, s.address, e.sink, e.logger, stream.WithExecutor(s.delivery.submit))

	p, consumer := s.peripheral, s.consumer
	e.spawn(s, "bootstrap", func(ctx context.Context) event {
		ctx, cancel := e.opContext(ctx)
		defer cancel()
		ch, err := e.boot.Activate(ctx, p, consumer)
		return bootstrappedEvent{ref: r, channel: ch, err: err}
	})
}

func (e *Engine) handleBootstrapped(s *session, ev bootstrappedEvent) {
	if ev.err != nil {
		if errors.Is(ev.err, bootstrap.ErrChannelUnavailable) {
			e.unavailableCount.Add(1)
			e.logger.WithFields(logrus.Fields{
				"name":    s.name,
				"address": s.address,
			}).WithError(ev.err).Warn("Communication channel unavailable, releasing tag")
			e.retire(s, "channel unavailable")
			return
		}
		e.fail(s, ev.err)
		return
	}

	s.channel = ev.channel
	s.setPhase(PhaseStreaming)
	e.channelCount.Add(1)
	e.logger.WithFields(logrus.Fields{
		"name":    s.name,
		"address": s.address,
	}).Info("Streaming tag data")

	if !e.cfg.ReadBattery {
		return
	}
	ch := s.channel
	e.spawn(s, "battery", func(ctx context.Context) event {
		ctx, cancel := e.opContext(ctx)
		defer cancel()
		level, err := bootstrap.ReadBattery(ctx, ch)
		return batteryEvent{ref: s.ref(), level: level, err: err}
	})
}

// handleBattery only logs; the stream is already up and a failed battery
// read does not end it.
func (e *Engine) handleBattery(s *session, ev batteryEvent) {
	fields := logrus.Fields{
		"name":    s.name,
		"address": s.address,
	}
	if ev.err != nil {
		e.logger.WithFields(fields).WithError(ev.err).Warn("Failed to read battery level")
		return
	}
	fields["battery"] = ev.level
	e.logger.WithFields(fields).Info("Battery level")
}

func (e *Engine) handleDisconnected(s *session) {
	e.disconnectCount.Add(1)
	e.logger.WithFields(logrus.Fields{
		"name":    s.name,
		"address": s.address,
		"phase":   s.getPhase().String(),
	}).Warn("Tag disconnected")
	e.teardown(s)
}

// fail ends one session. Other sessions and the scan are unaffected.
func (e *Engine) fail(s *session, err error) {
	e.failureCount.Add(1)
	e.logger.WithFields(logrus.Fields{
		"name":    s.name,
		"address": s.address,
		"phase":   s.getPhase().String(),
	}).WithError(err).Error("Tag pipeline failed")
	e.retire(s, "failed")
}

// retire tears s down and ignores its address from then on
func (e *Engine) retire(s *session, reason string) {
	e.released.Set(s.address, reason)
	e.teardown(s)
}

func (e *Engine) ignored(address string) bool {
	if _, tracked := e.sessions.Get(address); tracked {
		return true
	}
	_, released := e.released.Get(address)
	return released
}

// teardown cancels the session's workers, releases its timer and
// disconnects the peripheral. Unless the address was retired, a later
// sighting starts over.
func (e *Engine) teardown(s *session) {
	if cur, ok := e.sessions.Get(s.address); ok && cur.id == s.id {
		e.sessions.Del(s.address)
	}
	s.cancel()
	if s.monitor != nil {
		s.monitor.Close()
	}
	if s.peripheral != nil {
		e.release(s.peripheral)
		s.peripheral = nil
	}
	s.setPhase(PhaseClosed)

	e.logger.WithFields(logrus.Fields{
		"address": s.address,
		"session": s.id,
	}).Debug("Session closed")
}

// release disconnects p off the loop. shutdown waits for pending releases.
func (e *Engine) release(p device.Peripheral) {
	e.releases.Add(1)
	groutine.Go(context.Background(), "disconnect-"+p.Address(), func(ctx context.Context) {
		defer e.releases.Done()
		if err := p.Disconnect(); err != nil && !errors.Is(err, device.ErrNotConnected) {
			e.logger.WithField("address", p.Address()).WithError(err).Debug("Disconnect failed")
		}
	})
}

func (e *Engine) shutdown() {
	var open []*session
	e.sessions.Range(func(_ string, s *session) bool {
		open = append(open, s)
		return true
	})
	for _, s := range open {
		e.teardown(s)
	}
	e.releases.Wait()
	e.deliveries.Wait()
	if len(open) > 0 {
		e.logger.WithField("sessions", len(open)).Info("Released all tags")
	}
}

// spawn runs fn on a worker bound to the session context and posts its
// result. A panic in fn fails the session instead of the process.
func (e *Engine) spawn(s *session, op string, fn func(ctx context.Context) event) {
	r := s.ref()
	groutine.GoSafe(s.ctx, op+"-"+s.address, func(ctx context.Context) {
		ev := fn(ctx)
		if !e.post(ev) {
			if c, ok := ev.(connectedEvent); ok && c.peripheral != nil {
				_ = c.peripheral.Disconnect()
			}
		}
	}, func(perr *groutine.PanicError) {
		e.post(failedEvent{ref: r, op: op, err: perr})
	})
}

func (e *Engine) watchDisconnect(s *session) {
	lost := s.peripheral.Disconnected()
	if lost == nil {
		return
	}
	r := s.ref()
	groutine.Go(s.ctx, "disconnect-watch-"+s.address, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-lost:
			e.post(disconnectedEvent{ref: r})
		}
	})
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.OpTimeout)
}
