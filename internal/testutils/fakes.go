package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/basket/internal/device"
)

// FakeAdvertisement is a static device.Advertisement
type FakeAdvertisement struct {
	Name        string
	Address     string
	Signal      int
	ServiceIDs  []string
	ManufData   []byte
	TxPower     int
	CanConnect  bool
}

func (a *FakeAdvertisement) LocalName() string        { return a.Name }
func (a *FakeAdvertisement) Addr() string             { return a.Address }
func (a *FakeAdvertisement) RSSI() int                { return a.Signal }
func (a *FakeAdvertisement) Services() []string       { return a.ServiceIDs }
func (a *FakeAdvertisement) ManufacturerData() []byte { return a.ManufData }
func (a *FakeAdvertisement) TxPowerLevel() int        { return a.TxPower }
func (a *FakeAdvertisement) Connectable() bool        { return a.CanConnect }

// FakeEndpoint is an in-memory device.Endpoint. Emit simulates an incoming
// notification.
type FakeEndpoint struct {
	uuid    string
	service string

	mu        sync.Mutex
	value     []byte
	readErr   error
	notifyErr error
	notifying bool
	notifyLog []bool
	listener  func([]byte)
}

// NewFakeEndpoint creates an endpoint with a readable value
func NewFakeEndpoint(service, uuid string, value []byte) *FakeEndpoint {
	return &FakeEndpoint{
		uuid:    device.NormalizeUUID(uuid),
		service: device.NormalizeUUID(service),
		value:   value,
	}
}

func (e *FakeEndpoint) UUID() string    { return e.uuid }
func (e *FakeEndpoint) Service() string { return e.service }

func (e *FakeEndpoint) Notify(ctx context.Context, enable bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifyLog = append(e.notifyLog, enable)
	if e.notifyErr != nil {
		return e.notifyErr
	}
	e.notifying = enable
	return nil
}

func (e *FakeEndpoint) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readErr != nil {
		return nil, e.readErr
	}
	return append([]byte(nil), e.value...), nil
}

func (e *FakeEndpoint) OnData(listener func([]byte)) {
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()
}

// Emit delivers data to the registered listener when notifications are on.
// It reports whether the payload was delivered.
func (e *FakeEndpoint) Emit(data []byte) bool {
	e.mu.Lock()
	l, on := e.listener, e.notifying
	e.mu.Unlock()
	if l == nil || !on {
		return false
	}
	l(data)
	return true
}

// FailNotify makes Notify return err
func (e *FakeEndpoint) FailNotify(err error) *FakeEndpoint {
	e.mu.Lock()
	e.notifyErr = err
	e.mu.Unlock()
	return e
}

// FailRead makes Read return err
func (e *FakeEndpoint) FailRead(err error) *FakeEndpoint {
	e.mu.Lock()
	e.readErr = err
	e.mu.Unlock()
	return e
}

// Notifying reports whether notifications are currently enabled
func (e *FakeEndpoint) Notifying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notifying
}

// NotifyCalls returns the enable flags passed to Notify in order
func (e *FakeEndpoint) NotifyCalls() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bool(nil), e.notifyLog...)
}

// HasListener reports whether OnData was called with a listener
func (e *FakeEndpoint) HasListener() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener != nil
}

// FakePeripheral is a scripted device.Peripheral. ReadRSSI walks the scripted
// readings and repeats the last one once they run out.
type FakePeripheral struct {
	name    string
	address string

	mu           sync.Mutex
	rssi         int
	script       []int
	reads        int
	rssiErr      error
	endpoints    []device.Endpoint
	discoverErr  error
	discoveries  int
	disconnects  int
	disconnected chan struct{}
	dropOnce     sync.Once
	rssiHook     func(call int)
}

// NewFakePeripheral creates a connected peripheral with an initial signal
func NewFakePeripheral(name, address string, rssi int) *FakePeripheral {
	return &FakePeripheral{
		name:         name,
		address:      address,
		rssi:         rssi,
		disconnected: make(chan struct{}),
	}
}

// WithRSSISequence scripts the values returned by ReadRSSI
func (p *FakePeripheral) WithRSSISequence(readings ...int) *FakePeripheral {
	p.mu.Lock()
	p.script = append([]int(nil), readings...)
	p.mu.Unlock()
	return p
}

// WithEndpoints sets the result of DiscoverEndpoints
func (p *FakePeripheral) WithEndpoints(endpoints ...device.Endpoint) *FakePeripheral {
	p.mu.Lock()
	p.endpoints = endpoints
	p.mu.Unlock()
	return p
}

// FailRSSI makes every ReadRSSI return err
func (p *FakePeripheral) FailRSSI(err error) *FakePeripheral {
	p.mu.Lock()
	p.rssiErr = err
	p.mu.Unlock()
	return p
}

// FailDiscovery makes DiscoverEndpoints return err
func (p *FakePeripheral) FailDiscovery(err error) *FakePeripheral {
	p.mu.Lock()
	p.discoverErr = err
	p.mu.Unlock()
	return p
}

// OnReadRSSI registers a hook invoked with the 1-based call number
func (p *FakePeripheral) OnReadRSSI(hook func(call int)) *FakePeripheral {
	p.mu.Lock()
	p.rssiHook = hook
	p.mu.Unlock()
	return p
}

func (p *FakePeripheral) Name() string    { return p.name }
func (p *FakePeripheral) Address() string { return p.address }

func (p *FakePeripheral) RSSI() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rssi
}

func (p *FakePeripheral) ReadRSSI(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.reads++
	call, hook := p.reads, p.rssiHook
	if p.rssiErr != nil {
		err := p.rssiErr
		p.mu.Unlock()
		return 0, err
	}
	if len(p.script) > 0 {
		idx := call - 1
		if idx >= len(p.script) {
			idx = len(p.script) - 1
		}
		p.rssi = p.script[idx]
	}
	rssi := p.rssi
	p.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return rssi, nil
}

func (p *FakePeripheral) DiscoverEndpoints(ctx context.Context) ([]device.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discoveries++
	if p.discoverErr != nil {
		return nil, p.discoverErr
	}
	return append([]device.Endpoint(nil), p.endpoints...), nil
}

func (p *FakePeripheral) Disconnected() <-chan struct{} {
	return p.disconnected
}

func (p *FakePeripheral) Disconnect() error {
	p.mu.Lock()
	p.disconnects++
	p.mu.Unlock()
	p.Drop()
	return nil
}

// Drop simulates the link being lost
func (p *FakePeripheral) Drop() {
	p.dropOnce.Do(func() { close(p.disconnected) })
}

// RSSIReads returns how many times ReadRSSI was called
func (p *FakePeripheral) RSSIReads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// Discoveries returns how many times DiscoverEndpoints was called
func (p *FakePeripheral) Discoveries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoveries
}

// Disconnects returns how many times Disconnect was called
func (p *FakePeripheral) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// FakeScanner replays advertisements and then blocks until ctx is done
type FakeScanner struct {
	mu      sync.Mutex
	ads     []device.Advertisement
	err     error
	calls   int
	started chan struct{}
}

// NewFakeScanner creates a scanner replaying ads
func NewFakeScanner(ads ...device.Advertisement) *FakeScanner {
	return &FakeScanner{ads: ads, started: make(chan struct{})}
}

// Fail makes Scan return err immediately
func (s *FakeScanner) Fail(err error) *FakeScanner {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return s
}

// Started is closed once the first Scan call replayed its advertisements
func (s *FakeScanner) Started() <-chan struct{} {
	return s.started
}

func (s *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	ads, err := s.ads, s.err
	s.mu.Unlock()

	if err != nil {
		if first {
			close(s.started)
		}
		return err
	}
	for _, adv := range ads {
		handler(adv)
	}
	if first {
		close(s.started)
	}
	<-ctx.Done()
	return nil
}

// ErrUnknownPeer is returned by FakeConnector for unregistered addresses
var ErrUnknownPeer = errors.New("unknown peer")

// FakeConnector hands out registered peripherals by address
type FakeConnector struct {
	mu       sync.Mutex
	peers    map[string]*FakePeripheral
	failures map[string]error
	dials    map[string]int
}

// NewFakeConnector creates a connector serving peers
func NewFakeConnector(peers ...*FakePeripheral) *FakeConnector {
	c := &FakeConnector{
		peers:    make(map[string]*FakePeripheral),
		failures: make(map[string]error),
		dials:    make(map[string]int),
	}
	for _, p := range peers {
		c.peers[p.Address()] = p
	}
	return c
}

// FailFor makes connecting to address return err
func (c *FakeConnector) FailFor(address string, err error) *FakeConnector {
	c.mu.Lock()
	c.failures[address] = err
	c.mu.Unlock()
	return c
}

func (c *FakeConnector) Connect(ctx context.Context, adv device.Advertisement) (device.Peripheral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dials[adv.Addr()]++
	if err, ok := c.failures[adv.Addr()]; ok {
		return nil, err
	}
	p, ok := c.peers[adv.Addr()]
	if !ok {
		return nil, ErrUnknownPeer
	}
	return p, nil
}

// Dials returns how many times address was dialed
func (c *FakeConnector) Dials(address string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials[address]
}

var (
	_ device.Advertisement = (*FakeAdvertisement)(nil)
	_ device.Endpoint      = (*FakeEndpoint)(nil)
	_ device.Peripheral    = (*FakePeripheral)(nil)
	_ device.Scanner       = (*FakeScanner)(nil)
	_ device.Connector     = (*FakeConnector)(nil)
)
