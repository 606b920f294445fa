package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "endpoint"
	UUIDs    []string // One or more UUIDs
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %s not found", e.Resource, strings.Join(quoteAll(e.UUIDs), ", "))
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff, Msg: "bluetooth is turned off"}
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")

	// ErrTransport marks a failure surfaced by the wireless stack during
	// connect, discover, read or subscribe. It is terminal for the device
	// pipeline that hit it.
	ErrTransport = errors.New("transport failure")
)

// TransportFailure wraps err so that errors.Is(err, ErrTransport) holds while
// the original cause stays reachable.
func TransportFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Scanner represents a BLE device capable of scanning for advertisements.
// Scan blocks until ctx is cancelled or the adapter fails.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Advertisement is a single advertising record seen during a scan
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Services() []string
	ManufacturerData() []byte
	TxPowerLevel() int
	Connectable() bool
}

// Connector opens a connection to an advertised peripheral
type Connector interface {
	Connect(ctx context.Context, adv Advertisement) (Peripheral, error)
}

// Peripheral is a connected BLE peer
type Peripheral interface {
	Name() string
	Address() string

	// RSSI returns the most recent signal strength sample in dBm.
	RSSI() int

	// ReadRSSI requests a fresh signal strength sample from the link.
	ReadRSSI(ctx context.Context) (int, error)

	// DiscoverEndpoints performs unfiltered service and characteristic
	// discovery and returns every characteristic found.
	DiscoverEndpoints(ctx context.Context) ([]Endpoint, error)

	// Disconnected is closed when the transport reports the link lost.
	Disconnected() <-chan struct{}

	Disconnect() error
}

// Endpoint is an addressable data point (GATT characteristic) on a peripheral
type Endpoint interface {
	UUID() string
	Service() string

	// Notify enables or disables notifications for the endpoint.
	Notify(ctx context.Context, enable bool) error

	Read(ctx context.Context) ([]byte, error)

	// OnData registers the listener for notification payloads. The slice is
	// only valid during the call.
	OnData(listener func(data []byte))
}
