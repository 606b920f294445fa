package goble

import (
	"context"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
)

// DefaultConnectTimeout bounds a single Dial
const DefaultConnectTimeout = 10 * time.Second

// Transport shares one host adapter between scanning and connecting.
// It implements both device.Scanner and device.Connector.
type Transport struct {
	mu             sync.Mutex
	radio          Radio
	connectTimeout time.Duration
	logger         *logrus.Logger
}

// NewTransport opens the host adapter through DeviceFactory
func NewTransport(connectTimeout time.Duration, logger *logrus.Logger) (*Transport, error) {
	radio, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return NewTransportWithRadio(radio, connectTimeout, logger), nil
}

// NewTransportWithRadio builds a Transport on an already open radio
func NewTransportWithRadio(radio Radio, connectTimeout time.Duration, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Transport{radio: radio, connectTimeout: connectTimeout, logger: logger}
}

// Scan converts go-ble advertisements to device.Advertisement and blocks
// until ctx is done. Cancellation is a normal stop and returns nil.
func (t *Transport) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}

	err := t.radio.Scan(ctx, allowDup, bleHandler)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return NormalizeError(err)
}

var _ device.Scanner = (*Transport)(nil)
