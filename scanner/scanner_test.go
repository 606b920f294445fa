package scanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/srg/basket/internal/device"
	"github.com/srg/basket/internal/proximity"
	"github.com/srg/basket/internal/testutils"
	"github.com/srg/basket/scanner"
	"github.com/stretchr/testify/require"
	suitelib "github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	suitelib.Suite

	helper *testutils.TestHelper
	near   device.Advertisement
	nearer device.Advertisement
	far    device.Advertisement
	other  device.Advertisement
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())

	suite.near = testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("IoT Frisbee #1").
		WithRSSI(-62).
		WithServices("6e400001-b5a3-f393-e0a9-e50e24dcca9e").
		BuildFake()
	// Same tag seen again, closer.
	suite.nearer = testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("").
		WithRSSI(-45).
		BuildFake()
	suite.far = testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:02").
		WithName("IoT Frisbee #2").
		WithRSSI(-85).
		BuildFake()
	suite.other = testutils.NewAdvertisementBuilder().
		WithAddress("11:22:33:44:55:66").
		WithName("Other Device").
		WithRSSI(-30).
		BuildFake()
}

func (suite *ScannerTestSuite) scan(opts *scanner.ScanOptions, ads ...device.Advertisement) ([]scanner.Sighting, []string, error) {
	var phases []string
	s := scanner.NewScanner(testutils.NewFakeScanner(ads...), suite.helper.Logger)
	result, err := s.Scan(context.Background(), opts, func(phase string) {
		phases = append(phases, phase)
	})
	return result, phases, err
}

func (suite *ScannerTestSuite) options() *scanner.ScanOptions {
	opts := scanner.DefaultScanOptions()
	opts.Duration = 20 * time.Millisecond
	return opts
}

func (suite *ScannerTestSuite) TestScan_ReportsMatchingTagsStrongestFirst() {
	result, phases, err := suite.scan(suite.options(), suite.far, suite.near, suite.other, suite.nearer)

	suite.Require().NoError(err)
	suite.Require().Len(result, 2)
	suite.Equal([]string{"Scanning", "Processing results"}, phases)

	first := result[0]
	suite.Equal("AA:BB:CC:DD:EE:01", first.Address)
	suite.Equal("IoT Frisbee #1", first.Name, "an empty name in a later sighting MUST NOT erase the known one")
	suite.Equal(-45, first.RSSI)
	suite.Equal(proximity.Excellent, first.Band)
	suite.True(first.InBasket)
	suite.Equal(2, first.Seen)

	second := result[1]
	suite.Equal("AA:BB:CC:DD:EE:02", second.Address)
	suite.Equal(proximity.VeryLow, second.Band)
	suite.False(second.InBasket)
	suite.Equal(1, second.Seen)
}

func (suite *ScannerTestSuite) TestScan_BlockAndAllowLists() {
	suite.Run("block list", func() {
		opts := suite.options()
		opts.BlockList = []string{"AA:BB:CC:DD:EE:01"}

		result, _, err := suite.scan(opts, suite.near, suite.far)
		suite.Require().NoError(err)
		suite.Require().Len(result, 1)
		suite.Equal("AA:BB:CC:DD:EE:02", result[0].Address)
	})

	suite.Run("allow list", func() {
		opts := suite.options()
		opts.AllowList = []string{"AA:BB:CC:DD:EE:01"}

		result, _, err := suite.scan(opts, suite.near, suite.far)
		suite.Require().NoError(err)
		suite.Require().Len(result, 1)
		suite.Equal("AA:BB:CC:DD:EE:01", result[0].Address)
	})
}

func (suite *ScannerTestSuite) TestScan_CustomPrefix() {
	opts := suite.options()
	opts.NamePrefix = "Other"

	result, _, err := suite.scan(opts, suite.near, suite.other)
	suite.Require().NoError(err)
	suite.Require().Len(result, 1)
	suite.Equal("Other Device", result[0].Name)
}

func (suite *ScannerTestSuite) TestScan_TransportFailure() {
	s := scanner.NewScanner(testutils.NewFakeScanner().Fail(device.ErrBluetoothOff), suite.helper.Logger)

	result, err := s.Scan(context.Background(), suite.options(), nil)

	suite.Nil(result)
	suite.ErrorIs(err, device.ErrBluetoothOff)
	suite.Contains(err.Error(), "scan failed")
}

func (suite *ScannerTestSuite) TestScan_CancelReturnsPartialResult() {
	fake := testutils.NewFakeScanner(suite.near)
	s := scanner.NewScanner(fake, suite.helper.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	opts := suite.options()
	opts.Duration = time.Minute

	go func() {
		<-fake.Started()
		cancel()
	}()

	result, err := s.Scan(ctx, opts, nil)
	suite.Require().NoError(err)
	suite.Len(result, 1)
}

func TestScannerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerTestSuite))
}

func TestDefaultScanOptions(t *testing.T) {
	opts := scanner.DefaultScanOptions()
	require.Equal(t, 10*time.Second, opts.Duration)
	require.Equal(t, "IoT Frisbee", opts.NamePrefix)
}
