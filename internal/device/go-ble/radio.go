package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Radio is the subset of ble.Device the transport uses
type Radio interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, addr ble.Addr) (Client, error)
}

// Client is the subset of ble.Client the transport uses.
// Disconnect notification is probed separately with a type assertion since
// not every platform client reports it.
type Client interface {
	ReadRSSI() int
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// bleRadio adapts ble.Device to Radio
type bleRadio struct {
	dev ble.Device
}

func (r *bleRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return r.dev.Scan(ctx, allowDup, h)
}

func (r *bleRadio) Dial(ctx context.Context, addr ble.Addr) (Client, error) {
	client, err := r.dev.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DeviceFactory opens the host BLE adapter (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking as goble.DeviceFactory
var DeviceFactory = func() (Radio, error) {
	dev, err := newPlatformDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &bleRadio{dev: dev}, nil
}
