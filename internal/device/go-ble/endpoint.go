package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/basket/internal/device"
)

// BLEEndpoint is a discovered GATT characteristic seen as device.Endpoint
type BLEEndpoint struct {
	uuid    string
	service string
	char    *ble.Characteristic
	client  Client

	mu       sync.RWMutex
	listener func([]byte)
}

func newEndpoint(service string, char *ble.Characteristic, client Client) *BLEEndpoint {
	return &BLEEndpoint{
		uuid:    device.NormalizeUUID(char.UUID.String()),
		service: service,
		char:    char,
		client:  client,
	}
}

func (e *BLEEndpoint) UUID() string    { return e.uuid }
func (e *BLEEndpoint) Service() string { return e.service }

// Notify subscribes to or unsubscribes from value updates. Indications are
// used only when the characteristic does not offer notifications.
func (e *BLEEndpoint) Notify(ctx context.Context, enable bool) error {
	canNotify := e.char.Property&ble.CharNotify != 0
	canIndicate := e.char.Property&ble.CharIndicate != 0
	if !canNotify && !canIndicate {
		return fmt.Errorf("endpoint %q notifications: %w", e.uuid, device.ErrUnsupported)
	}
	ind := !canNotify

	_, err := call(ctx, func() (struct{}, error) {
		if enable {
			return struct{}{}, e.client.Subscribe(e.char, ind, e.dispatch)
		}
		return struct{}{}, e.client.Unsubscribe(e.char, ind)
	})
	return err
}

func (e *BLEEndpoint) Read(ctx context.Context) ([]byte, error) {
	return call(ctx, func() ([]byte, error) {
		return e.client.ReadCharacteristic(e.char)
	})
}

func (e *BLEEndpoint) OnData(listener func([]byte)) {
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()
}

func (e *BLEEndpoint) dispatch(data []byte) {
	e.mu.RLock()
	l := e.listener
	e.mu.RUnlock()
	if l != nil {
		l(data)
	}
}

var _ device.Endpoint = (*BLEEndpoint)(nil)
