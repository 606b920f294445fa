// Package discovery decides which advertised devices are basket tags.
package discovery

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
)

// DefaultNamePrefix is the advertised local name of the frisbee firmware
const DefaultNamePrefix = "IoT Frisbee"

// Filter accepts advertisements whose local name starts with a fixed prefix.
// The match is exact and case-sensitive. Filter keeps no state between calls.
type Filter struct {
	prefix string
	logger *logrus.Logger
}

// NewFilter creates a Filter for prefix
func NewFilter(prefix string, logger *logrus.Logger) *Filter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Filter{prefix: prefix, logger: logger}
}

// Prefix returns the configured name prefix
func (f *Filter) Prefix() string {
	return f.prefix
}

// Match reports whether an advertised name belongs to a tag
func (f *Filter) Match(name string) bool {
	return strings.HasPrefix(name, f.prefix)
}

// Accept reports whether adv belongs to a tag. Rejections produce only
// debug-level discovery telemetry.
func (f *Filter) Accept(adv device.Advertisement) bool {
	ok := f.Match(adv.LocalName())
	f.logger.WithFields(logrus.Fields{
		"name":     adv.LocalName(),
		"address":  adv.Addr(),
		"rssi":     adv.RSSI(),
		"accepted": ok,
	}).Debug("Discovered device")
	return ok
}
