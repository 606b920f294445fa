package main

import (
	"errors"
	"strings"

	"github.com/srg/basket/internal/bootstrap"
	"github.com/srg/basket/internal/device"
	"github.com/srg/basket/internal/stream"
)

// Command-level errors
var (
	// ErrNoSink is returned when every data sink has been switched off
	ErrNoSink = errors.New("no data sink enabled")

	// ErrInvalidReading is returned by classify for a non-integer argument
	ErrInvalidReading = errors.New("invalid RSSI reading")
)

// FormatUserError turns known errors into a one-line hint. Unknown errors
// are printed as they are.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, device.ErrUnsupported):
		return "Bluetooth LE is not supported on this platform: " + err.Error()
	case errors.Is(err, device.ErrTimeout):
		return "The operation timed out. Move closer to the tag and try again."
	case errors.Is(err, stream.ErrGatewayUnavailable):
		return "The TCP gateway is unreachable: " + err.Error()
	case errors.Is(err, bootstrap.ErrChannelUnavailable):
		return "The tag does not expose the battery and UART endpoints: " + err.Error()
	case errors.Is(err, ErrNoSink):
		return "No data sink enabled. Keep the log sink or set --tcp, --mqtt or --pty."
	}

	// Joined validation errors are one per line; keep them on one.
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}
