// Package scanner runs a bounded discovery pass and reports the tags it
// saw together with their proximity band. It backs the scan command; the
// engine does its own continuous scanning.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/device"
	"github.com/srg/basket/internal/discovery"
	"github.com/srg/basket/internal/proximity"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// Sighting is the latest view of one advertising tag
type Sighting struct {
	Name        string
	Address     string
	RSSI        int
	Band        proximity.Band
	InBasket    bool
	Services    []string
	Connectable bool
	Seen        int
	LastSeen    time.Time
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration   time.Duration
	NamePrefix string
	AllowList  []string
	BlockList  []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:   10 * time.Second,
		NamePrefix: discovery.DefaultNamePrefix,
	}
}

// Scanner collects sightings from a device.Scanner
type Scanner struct {
	source  device.Scanner
	devices *hashmap.Map[string, *Sighting]
	filter  *discovery.Filter
	opts    *ScanOptions
	logger  *logrus.Logger
	now     func() time.Time
}

// NewScanner creates a scanner reading from source
func NewScanner(source device.Scanner, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Scan listens for opts.Duration and returns the matching tags, strongest
// signal first. Cancelling ctx ends the pass early and still returns what
// was seen.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]Sighting, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	s.devices = hashmap.New[string, *Sighting]()
	s.filter = discovery.NewFilter(opts.NamePrefix, s.logger)
	s.opts = opts
	defer func() { s.opts = nil }()

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"prefix":   opts.NamePrefix,
	}).Info("Starting tag scan...")
	progressCallback("Scanning")

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	err := s.source.Scan(scanCtx, true, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("Tag scan completed")
	progressCallback("Processing results")

	return s.snapshot(), nil
}

// handleAdvertisement updates an existing sighting or adds a new one. The
// transport calls it from a single goroutine.
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	addr := adv.Addr()

	sighting, existing := s.devices.Get(addr)
	if !existing {
		if !s.shouldInclude(adv) {
			return
		}
		sighting, existing = s.devices.GetOrInsert(addr, &Sighting{
			Name:    adv.LocalName(),
			Address: addr,
		})
	}

	sighting.RSSI = adv.RSSI()
	sighting.Band, sighting.InBasket = proximity.Classify(proximity.Reading(sighting.RSSI))
	sighting.Services = adv.Services()
	sighting.Connectable = adv.Connectable()
	sighting.Seen++
	sighting.LastSeen = s.now()
	if name := adv.LocalName(); name != "" {
		sighting.Name = name
	}

	if !existing {
		s.logger.WithFields(logrus.Fields{
			"name":    sighting.Name,
			"address": addr,
			"rssi":    sighting.RSSI,
			"band":    sighting.Band.String(),
		}).Info("Discovered new tag")
	}
}

// shouldInclude applies the name prefix and the allow/block lists
func (s *Scanner) shouldInclude(adv device.Advertisement) bool {
	addr := adv.Addr()
	if slices.Contains(s.opts.BlockList, addr) {
		return false
	}
	if len(s.opts.AllowList) > 0 && !slices.Contains(s.opts.AllowList, addr) {
		return false
	}
	return s.filter.Accept(adv)
}

func (s *Scanner) snapshot() []Sighting {
	out := make([]Sighting, 0, s.devices.Len())
	s.devices.Range(func(_ string, v *Sighting) bool {
		out = append(out, *v)
		return true
	})
	slices.SortFunc(out, func(a, b Sighting) int {
		if a.RSSI != b.RSSI {
			return b.RSSI - a.RSSI
		}
		if a.Address < b.Address {
			return -1
		}
		if a.Address > b.Address {
			return 1
		}
		return 0
	})
	return out
}
