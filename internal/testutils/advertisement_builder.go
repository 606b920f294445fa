package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/basket/internal/testutils/mocks"
)

// AdvertisementBuilder builds advertisements for tests. Build produces a
// go-ble mock for transport tests, BuildFake a plain device-level value.
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	services    []string
	manufData   []byte
	txPower     int
	connectable bool
}

// NewAdvertisementBuilder starts with a connectable advertisement and the
// "unavailable" tx power level.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{connectable: true, txPower: 127}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithServices adds service UUIDs in short or full form
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = append(b.services, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.manufData = data
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.txPower = power
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	return b
}

// FromJSON fills the builder from a JSON object. Absent keys keep their
// current values. Panics on invalid JSON since it only sets up test data.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Name             *string  `json:"name"`
		Address          *string  `json:"address"`
		RSSI             *int     `json:"rssi"`
		Services         []string `json:"services"`
		ManufacturerData []byte   `json:"manufacturerData"`
		TxPower          *int     `json:"txPower"`
		Connectable      *bool    `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	if data.Name != nil {
		b.name = *data.Name
	}
	if data.Address != nil {
		b.address = *data.Address
	}
	if data.RSSI != nil {
		b.rssi = *data.RSSI
	}
	if data.Services != nil {
		b.services = data.Services
	}
	if data.ManufacturerData != nil {
		b.manufData = data.ManufacturerData
	}
	if data.TxPower != nil {
		b.txPower = *data.TxPower
	}
	if data.Connectable != nil {
		b.connectable = *data.Connectable
	}
	return b
}

// Build creates a go-ble advertisement mock. Expectations are optional so a
// test only pays for the fields the code under test reads.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	services := make([]ble.UUID, 0, len(b.services))
	for _, s := range b.services {
		services = append(services, ble.MustParse(s))
	}

	addr := &mocks.MockAddr{}
	addr.On("String").Return(b.address).Maybe()

	adv := &mocks.MockAdvertisement{}
	adv.On("LocalName").Return(b.name).Maybe()
	adv.On("Addr").Return(addr).Maybe()
	adv.On("RSSI").Return(b.rssi).Maybe()
	adv.On("Services").Return(services).Maybe()
	adv.On("ManufacturerData").Return(b.manufData).Maybe()
	adv.On("TxPowerLevel").Return(b.txPower).Maybe()
	adv.On("Connectable").Return(b.connectable).Maybe()
	return adv
}

// BuildFake creates a device-level advertisement
func (b *AdvertisementBuilder) BuildFake() *FakeAdvertisement {
	return &FakeAdvertisement{
		Name:       b.name,
		Address:    b.address,
		Signal:     b.rssi,
		ServiceIDs: append([]string(nil), b.services...),
		ManufData:  b.manufData,
		TxPower:    b.txPower,
		CanConnect: b.connectable,
	}
}
