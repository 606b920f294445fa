package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/basket/internal/device"
)

// advertisement is the part of ble.Advertisement the scanner reads
type advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []ble.UUID
	TxPowerLevel() int
	Connectable() bool
	RSSI() int
	Addr() ble.Addr
}

// BLEAdvertisement exposes a go-ble advertisement as device.Advertisement.
// The platform address is retained so Dial can target the exact peer.
type BLEAdvertisement struct {
	adv advertisement
}

// NewBLEAdvertisement wraps adv
func NewBLEAdvertisement(adv advertisement) *BLEAdvertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) TxPowerLevel() int        { return a.adv.TxPowerLevel() }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }

func (a *BLEAdvertisement) Addr() string {
	if addr := a.adv.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Services returns advertised service UUIDs in normalized form
func (a *BLEAdvertisement) Services() []string {
	uuids := a.adv.Services()
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = device.NormalizeUUID(u.String())
	}
	return result
}

// bleAddr returns the address to dial
func (a *BLEAdvertisement) bleAddr() ble.Addr {
	if addr := a.adv.Addr(); addr != nil {
		return addr
	}
	return ble.NewAddr("")
}

var _ device.Advertisement = (*BLEAdvertisement)(nil)
