// Package device defines the Bluetooth Low Energy transport surface consumed
// by the basket pipeline.
//
// The package only describes capabilities; the go-ble subpackage implements
// them on top of github.com/go-ble/ble and internal/testutils provides test
// doubles. The capability set is intentionally small:
//   - Scanning for advertisements
//   - Connecting to an advertised peripheral
//   - Sampling the signal strength of a connected peripheral
//   - Unfiltered endpoint (characteristic) discovery
//   - Endpoint read and notify
package device
