package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrEmptyBatteryLevel is returned when the battery endpoint reads no bytes
var ErrEmptyBatteryLevel = errors.New("battery level is empty")

// Endpoint roles of a basket tag
const (
	RoleBattery = "battery"
	RoleRX      = "rx"
	RoleTX      = "tx"
)

// Endpoints are the identifiers the bootstrapper requires
type Endpoints struct {
	Battery string
	RX      string
	TX      string
}

// DefaultEndpoints are the identifiers of the frisbee firmware
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Battery: device.BatteryLevelUUID,
		RX:      device.UARTRxUUID,
		TX:      device.UARTTxUUID,
	}
}

// Attacher receives the channel before notifications are enabled, so no
// early payload can be lost.
type Attacher interface {
	Attach(ch *Channel)
}

// AttacherFunc adapts a function to Attacher
type AttacherFunc func(ch *Channel)

func (f AttacherFunc) Attach(ch *Channel) { f(ch) }

// Bootstrapper turns a connected peripheral into an active Channel
type Bootstrapper struct {
	required *orderedmap.OrderedMap[string, string]
	logger   *logrus.Logger
}

// New creates a Bootstrapper for the given endpoint identifiers
func New(endpoints Endpoints, logger *logrus.Logger) *Bootstrapper {
	if logger == nil {
		logger = logrus.New()
	}

	// Roles are checked in insertion order, so a ChannelUnavailableError
	// always lists missing endpoints as battery, rx, tx whatever order the
	// tag reports them in.
	required := orderedmap.New[string, string]()
	required.Set(RoleBattery, device.NormalizeUUID(endpoints.Battery))
	required.Set(RoleRX, device.NormalizeUUID(endpoints.RX))
	required.Set(RoleTX, device.NormalizeUUID(endpoints.TX))

	return &Bootstrapper{required: required, logger: logger}
}

// Activate discovers every endpoint of p and validates the required set.
// When one is missing it returns a *ChannelUnavailableError and next is not
// called. Otherwise the channel is handed to next and rx notifications are
// enabled.
func (b *Bootstrapper) Activate(ctx context.Context, p device.Peripheral, next Attacher) (*Channel, error) {
	endpoints, err := p.DiscoverEndpoints(ctx)
	if err != nil {
		return nil, device.TransportFailure("discover endpoints", err)
	}

	found := make(map[string]device.Endpoint, b.required.Len())
	var missing []string
	for pair := b.required.Oldest(); pair != nil; pair = pair.Next() {
		ep := match(endpoints, pair.Value)
		if ep == nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", pair.Key, pair.Value))
			continue
		}
		found[pair.Key] = ep
	}

	if len(missing) > 0 {
		return nil, &ChannelUnavailableError{Device: p.Name(), Missing: missing}
	}

	ch := &Channel{
		battery: found[RoleBattery],
		rx:      found[RoleRX],
		tx:      found[RoleTX],
	}

	next.Attach(ch)

	if err := ch.rx.Notify(ctx, true); err != nil {
		return nil, device.TransportFailure("enable rx notifications", err)
	}

	b.logger.WithFields(logrus.Fields{
		"name":    p.Name(),
		"address": p.Address(),
		"rx":      ch.rx.UUID(),
	}).Info("Communication channel active")

	return ch, nil
}

func match(endpoints []device.Endpoint, uuid string) device.Endpoint {
	for _, ep := range endpoints {
		if device.SameUUID(ep.UUID(), uuid) {
			return ep
		}
	}
	return nil
}

// ReadBattery reads the battery level once and returns it as a percentage
func ReadBattery(ctx context.Context, ch *Channel) (int, error) {
	value, err := ch.battery.Read(ctx)
	if err != nil {
		return 0, device.TransportFailure("read battery level", err)
	}
	if len(value) == 0 {
		return 0, ErrEmptyBatteryLevel
	}
	return int(value[0]), nil
}
