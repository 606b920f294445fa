package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
)

// BLEPeripheral is a connected go-ble client seen through device.Peripheral
type BLEPeripheral struct {
	name    string
	address string
	client  Client
	logger  *logrus.Logger

	mu   sync.RWMutex
	rssi int

	disconnected   <-chan struct{}
	disconnectOnce sync.Once
	disconnectErr  error
}

func newPeripheral(name, address string, rssi int, client Client, logger *logrus.Logger) *BLEPeripheral {
	p := &BLEPeripheral{
		name:    name,
		address: address,
		client:  client,
		logger:  logger,
		rssi:    rssi,
	}
	// Not every platform client reports link loss; a nil channel never fires.
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		p.disconnected = dc.Disconnected()
	}
	return p
}

func (p *BLEPeripheral) Name() string    { return p.name }
func (p *BLEPeripheral) Address() string { return p.address }

func (p *BLEPeripheral) RSSI() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rssi
}

// ReadRSSI samples the link. go-ble's call does not take a context, so the
// read runs aside and ctx only bounds how long the caller waits.
func (p *BLEPeripheral) ReadRSSI(ctx context.Context) (int, error) {
	rssi, err := call(ctx, func() (int, error) {
		return p.client.ReadRSSI(), nil
	})
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.rssi = rssi
	p.mu.Unlock()
	return rssi, nil
}

// DiscoverEndpoints runs a forced full profile discovery and flattens every
// service's characteristics into endpoints.
func (p *BLEPeripheral) DiscoverEndpoints(ctx context.Context) ([]device.Endpoint, error) {
	profile, err := call(ctx, func() (*ble.Profile, error) {
		return p.client.DiscoverProfile(true)
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	var endpoints []device.Endpoint
	for _, svc := range profile.Services {
		svcUUID := device.NormalizeUUID(svc.UUID.String())
		for _, char := range svc.Characteristics {
			endpoints = append(endpoints, newEndpoint(svcUUID, char, p.client))
		}
	}

	p.logger.WithFields(logrus.Fields{
		"name":      p.name,
		"services":  len(profile.Services),
		"endpoints": len(endpoints),
	}).Debug("Discovered profile")

	return endpoints, nil
}

func (p *BLEPeripheral) Disconnected() <-chan struct{} {
	return p.disconnected
}

// Disconnect cancels the connection once; later calls return the first result
func (p *BLEPeripheral) Disconnect() error {
	p.disconnectOnce.Do(func() {
		p.disconnectErr = NormalizeError(p.client.CancelConnection())
	})
	return p.disconnectErr
}

// call runs fn on its own goroutine and waits for it or ctx
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, NormalizeError(r.err)
	case <-ctx.Done():
		var zero T
		return zero, NormalizeError(ctx.Err())
	}
}

var _ device.Peripheral = (*BLEPeripheral)(nil)
