// Package mocks provides testify mocks for the go-ble surface the transport uses.
package mocks

import (
	"context"

	"github.com/go-ble/ble"
	goble "github.com/srg/basket/internal/device/go-ble"
	"github.com/stretchr/testify/mock"
)

// MockAddr mocks ble.Addr
type MockAddr struct {
	mock.Mock
}

func (m *MockAddr) String() string {
	return m.Called().String(0)
}

// MockAdvertisement mocks ble.Advertisement
type MockAdvertisement struct {
	mock.Mock
}

// Fields the transport never reads answer with empty values and no expectation.
func (m *MockAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (m *MockAdvertisement) OverflowService() []ble.UUID    { return nil }
func (m *MockAdvertisement) SolicitedService() []ble.UUID   { return nil }

func (m *MockAdvertisement) LocalName() string { return m.Called().String(0) }
func (m *MockAdvertisement) RSSI() int         { return m.Called().Int(0) }
func (m *MockAdvertisement) TxPowerLevel() int { return m.Called().Int(0) }
func (m *MockAdvertisement) Connectable() bool { return m.Called().Bool(0) }

func (m *MockAdvertisement) ManufacturerData() []byte {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]byte)
	}
	return nil
}

func (m *MockAdvertisement) Services() []ble.UUID {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

func (m *MockAdvertisement) Addr() ble.Addr {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(ble.Addr)
	}
	return nil
}

// MockRadio mocks goble.Radio
type MockRadio struct {
	mock.Mock
}

// Scan calls the mocked Scan. Advertisements set with Return's second
// argument are delivered to h before returning.
func (m *MockRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	if ads, ok := args.Get(1).([]ble.Advertisement); ok {
		for _, adv := range ads {
			h(adv)
		}
	}
	return args.Error(0)
}

func (m *MockRadio) Dial(ctx context.Context, addr ble.Addr) (goble.Client, error) {
	args := m.Called(ctx, addr)
	if v := args.Get(0); v != nil {
		return v.(goble.Client), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockClient mocks goble.Client including disconnect notification
type MockClient struct {
	mock.Mock

	// Handlers captures Subscribe handlers keyed by characteristic UUID
	Handlers map[string]ble.NotificationHandler
	// Done is returned from Disconnected
	Done chan struct{}
}

// NewMockClient creates a client with an open disconnect channel
func NewMockClient() *MockClient {
	return &MockClient{
		Handlers: make(map[string]ble.NotificationHandler),
		Done:     make(chan struct{}),
	}
}

func (m *MockClient) ReadRSSI() int {
	return m.Called().Int(0)
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	if v := args.Get(0); v != nil {
		return v.(*ble.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	args := m.Called(c, ind, h)
	if args.Error(0) == nil {
		m.Handlers[c.UUID.String()] = h
	}
	return args.Error(0)
}

func (m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *MockClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	return m.Done
}

var (
	_ ble.Advertisement = (*MockAdvertisement)(nil)
	_ goble.Radio       = (*MockRadio)(nil)
	_ goble.Client      = (*MockClient)(nil)
	_ ble.Addr          = (*MockAddr)(nil)
)
