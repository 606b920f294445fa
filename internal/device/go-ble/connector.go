package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
)

// Connect dials the peer behind adv. Dials are serialized since most host
// stacks allow one pending connection at a time.
func (t *Transport) Connect(ctx context.Context, adv device.Advertisement) (device.Peripheral, error) {
	var addr ble.Addr
	if ba, ok := adv.(*BLEAdvertisement); ok {
		addr = ba.bleAddr()
	} else {
		addr = ble.NewAddr(adv.Addr())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	t.logger.WithFields(logrus.Fields{
		"name":    adv.LocalName(),
		"address": adv.Addr(),
		"timeout": t.connectTimeout,
	}).Debug("Dialing device")

	client, err := t.radio.Dial(dialCtx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", adv.Addr(), NormalizeError(err))
	}

	return newPeripheral(adv.LocalName(), adv.Addr(), adv.RSSI(), client, t.logger), nil
}

var _ device.Connector = (*Transport)(nil)
