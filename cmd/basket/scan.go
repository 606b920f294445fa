package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	goble "github.com/srg/basket/internal/device/go-ble"
	"github.com/srg/basket/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby tags and their proximity band",
	Long: `Scan for tags for a fixed duration and print each one with its latest
signal strength, proximity band and whether it counts as in the basket.
Nothing is connected to.`,
	Example: `  basket scan
  basket scan -d 5s --format json
  basket scan --prefix "IoT" --block AA:BB:CC:DD:EE:FF`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show tags with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide tags with these addresses")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}
	if scanDuration <= 0 {
		return fmt.Errorf("invalid duration %s: must be positive", scanDuration)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	transport, err := goble.NewTransport(cfg.ConnectTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to open BLE adapter: %w", err)
	}
	s := scanner.NewScanner(transport, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for tags", "Scanning", scanDuration, "Processing results")
	progress.Start()
	defer progress.Stop()

	sightings, err := s.Scan(ctx, &scanner.ScanOptions{
		Duration:   scanDuration,
		NamePrefix: cfg.NamePrefix,
		AllowList:  scanAllowList,
		BlockList:  scanBlockList,
	}, progress.Callback())
	if err != nil {
		return err
	}
	progress.Stop()

	if scanFormat == "json" {
		return displaySightingsJSON(cmd.OutOrStdout(), sightings)
	}
	return displaySightingsTable(cmd.OutOrStdout(), sightings, time.Now())
}

func displaySightingsTable(out io.Writer, sightings []scanner.Sighting, now time.Time) error {
	if len(sightings) == 0 {
		fmt.Fprintln(out, "No tags discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSEEN\tLAST SEEN\tIN BASKET\tBAND")

	for _, s := range sightings {
		name := s.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		lastSeen := now.Sub(s.LastSeen).Truncate(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%d\t%s ago\t%s\t%s\n",
			name, s.Address, s.RSSI, s.Seen, lastSeen, yesNo(s.InBasket), colorBand(s.Band))
	}

	return w.Flush()
}

type sightingJSON struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	RSSI        int       `json:"rssi"`
	Band        string    `json:"band"`
	InBasket    bool      `json:"in_basket"`
	Services    []string  `json:"services,omitempty"`
	Connectable bool      `json:"connectable"`
	Seen        int       `json:"seen"`
	LastSeen    time.Time `json:"last_seen"`
}

func displaySightingsJSON(out io.Writer, sightings []scanner.Sighting) error {
	list := make([]sightingJSON, 0, len(sightings))
	for _, s := range sightings {
		list = append(list, sightingJSON{
			Name:        s.Name,
			Address:     s.Address,
			RSSI:        s.RSSI,
			Band:        s.Band.String(),
			InBasket:    s.InBasket,
			Services:    s.Services,
			Connectable: s.Connectable,
			Seen:        s.Seen,
			LastSeen:    s.LastSeen,
		})
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}
