package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/basket/internal/device"
)

// EndpointSpec describes one characteristic in a JSON peripheral layout
type EndpointSpec struct {
	Service    string `json:"service"`
	UUID       string `json:"uuid"`
	Properties string `json:"properties"`
	Value      []byte `json:"value"`
}

// PeripheralBuilder builds FakePeripheral instances and matching go-ble
// profiles from one description.
type PeripheralBuilder struct {
	name      string
	address   string
	rssi      []int
	endpoints []EndpointSpec
}

// NewPeripheralBuilder creates an empty builder
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{}
}

func (b *PeripheralBuilder) WithName(name string) *PeripheralBuilder {
	b.name = name
	return b
}

func (b *PeripheralBuilder) WithAddress(addr string) *PeripheralBuilder {
	b.address = addr
	return b
}

// WithRSSI sets the RSSI script. The first value is also the advertised
// signal.
func (b *PeripheralBuilder) WithRSSI(readings ...int) *PeripheralBuilder {
	b.rssi = append([]int(nil), readings...)
	return b
}

// WithEndpoint adds a characteristic under service
func (b *PeripheralBuilder) WithEndpoint(service, uuid, properties string, value ...byte) *PeripheralBuilder {
	b.endpoints = append(b.endpoints, EndpointSpec{
		Service:    service,
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// WithBasketProfile adds the battery and UART endpoints the tag firmware
// exposes.
func (b *PeripheralBuilder) WithBasketProfile(battery byte) *PeripheralBuilder {
	return b.
		WithEndpoint("180f", device.BatteryLevelUUID, "read,notify", battery).
		WithEndpoint(device.UARTServiceUUID, device.UARTRxUUID, "notify").
		WithEndpoint(device.UARTServiceUUID, device.UARTTxUUID, "write")
}

// FromJSON loads a layout such as
//
//	{"name": "IoT Frisbee #1", "address": "AA", "rssi": [-90, -40],
//	 "endpoints": [{"service": "180f", "uuid": "2a19", "properties": "read", "value": [80]}]}
//
// Panics on invalid JSON since it only sets up test data.
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	var data struct {
		Name      string         `json:"name"`
		Address   string         `json:"address"`
		RSSI      []int          `json:"rssi"`
		Endpoints []EndpointSpec `json:"endpoints"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}
	b.name = data.Name
	b.address = data.Address
	b.rssi = data.RSSI
	b.endpoints = append(b.endpoints, data.Endpoints...)
	return b
}

// Advertisement returns the advertisement this peripheral would produce
func (b *PeripheralBuilder) Advertisement() *FakeAdvertisement {
	return NewAdvertisementBuilder().
		WithName(b.name).
		WithAddress(b.address).
		WithRSSI(b.firstRSSI()).
		BuildFake()
}

// Build creates the fake peripheral and returns its endpoints keyed by
// normalized UUID.
func (b *PeripheralBuilder) Build() (*FakePeripheral, map[string]*FakeEndpoint) {
	p := NewFakePeripheral(b.name, b.address, b.firstRSSI())
	if len(b.rssi) > 0 {
		p.WithRSSISequence(b.rssi...)
	}

	byUUID := make(map[string]*FakeEndpoint, len(b.endpoints))
	endpoints := make([]device.Endpoint, 0, len(b.endpoints))
	for _, spec := range b.endpoints {
		ep := NewFakeEndpoint(spec.Service, spec.UUID, spec.Value)
		byUUID[ep.UUID()] = ep
		endpoints = append(endpoints, ep)
	}
	p.WithEndpoints(endpoints...)
	return p, byUUID
}

// BuildProfile creates the go-ble profile matching the configured endpoints
func (b *PeripheralBuilder) BuildProfile() *ble.Profile {
	profile := &ble.Profile{}
	services := make(map[string]*ble.Service)
	for _, spec := range b.endpoints {
		svc, ok := services[spec.Service]
		if !ok {
			svc = &ble.Service{UUID: ble.MustParse(spec.Service)}
			services[spec.Service] = svc
			profile.Services = append(profile.Services, svc)
		}
		svc.Characteristics = append(svc.Characteristics, &ble.Characteristic{
			UUID:     ble.MustParse(spec.UUID),
			Property: parseProperties(spec.Properties),
			Value:    spec.Value,
		})
	}
	return profile
}

func (b *PeripheralBuilder) firstRSSI() int {
	if len(b.rssi) > 0 {
		return b.rssi[0]
	}
	return 0
}

func parseProperties(s string) ble.Property {
	var p ble.Property
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "read":
			p |= ble.CharRead
		case "write":
			p |= ble.CharWrite
		case "notify":
			p |= ble.CharNotify
		case "indicate":
			p |= ble.CharIndicate
		}
	}
	return p
}
