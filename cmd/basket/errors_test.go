package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/basket/internal/bootstrap"
	"github.com/srg/basket/internal/device"
	"github.com/srg/basket/internal/stream"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "bluetooth off through wrapping",
			err:  fmt.Errorf("scan: %w", device.ErrBluetoothOff),
			want: "Bluetooth is turned off. Turn it on and try again.",
		},
		{
			name: "timeout",
			err:  device.TransportFailure("read rssi", device.ErrTimeout),
			want: "The operation timed out. Move closer to the tag and try again.",
		},
		{
			name: "no sink",
			err:  ErrNoSink,
			want: "No data sink enabled. Keep the log sink or set --tcp, --mqtt or --pty.",
		},
		{
			name: "channel unavailable",
			err:  &bootstrap.ChannelUnavailableError{Device: "IoT Frisbee #1", Missing: []string{"tx (6e400002b5a3f393e0a9e50e24dcca9e)"}},
			want: "The tag does not expose the battery and UART endpoints: communication channel unavailable: IoT Frisbee #1: missing tx (6e400002b5a3f393e0a9e50e24dcca9e)",
		},
		{
			name: "gateway",
			err:  fmt.Errorf("gateway g:1: %w", stream.ErrGatewayUnavailable),
			want: "The TCP gateway is unreachable: gateway g:1: gateway unavailable",
		},
		{
			name: "joined validation errors stay on one line",
			err:  fmt.Errorf("invalid configuration: %w", errors.Join(errors.New("a"), errors.New("b"))),
			want: "invalid configuration: a; b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}
