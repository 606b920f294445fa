// Package bootstrap validates a connected tag's endpoints and activates the
// data channel once proximity is confirmed.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/basket/internal/device"
)

// ErrChannelUnavailable matches every *ChannelUnavailableError
var ErrChannelUnavailable = errors.New("communication channel unavailable")

// ChannelUnavailableError names the required endpoints a peripheral lacks
type ChannelUnavailableError struct {
	Device  string
	Missing []string
}

func (e *ChannelUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: missing %s", ErrChannelUnavailable, e.Device, strings.Join(e.Missing, ", "))
}

func (e *ChannelUnavailableError) Is(target error) bool {
	return target == ErrChannelUnavailable
}

// Channel is the validated endpoint triple of a tag. It is only constructed
// when all three endpoints are present and never changes afterwards.
type Channel struct {
	battery device.Endpoint
	rx      device.Endpoint
	tx      device.Endpoint
}

func (c *Channel) Battery() device.Endpoint { return c.battery }
func (c *Channel) RX() device.Endpoint      { return c.rx }
func (c *Channel) TX() device.Endpoint      { return c.tx }
