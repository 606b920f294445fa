package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/basket/internal/bootstrap"
	goble "github.com/srg/basket/internal/device/go-ble"
	"github.com/srg/basket/internal/engine"
	"github.com/srg/basket/internal/stream"
	"github.com/srg/basket/pkg/config"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track tags and stream their data",
	Long: `Scan continuously for tags whose advertised name starts with the
configured prefix. Each tag is polled for signal strength until it is in
the basket (RSSI in [-50, 0) dBm); then its UART channel is opened and
every notification is forwarded to the enabled sinks.

Sinks:
  log   (default) one "Data: ..." log line per chunk; --no-log disables it
  tcp   --tcp host:port, one line per chunk to the basket gateway
  mqtt  --mqtt tcp://broker:1883, JSON chunks and goal events
  pty   --pty, exposes the stream on a pseudo-terminal

Press Ctrl+C to stop; every connected tag is released before exit.`,
	Example: `  basket run
  basket run --prefix "IoT Frisbee" --interval 500ms
  basket run --tcp gateway.local:18000 --no-log
  basket run --config basket.yaml --mqtt tcp://localhost:1883`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("interval", time.Second, "Signal strength poll interval")
	runCmd.Flags().Duration("connect-timeout", 10*time.Second, "Connection timeout per tag")
	runCmd.Flags().Bool("battery", true, "Read the battery level once the channel is open")
	runCmd.Flags().Bool("no-log", false, "Do not log tag data")
	runCmd.Flags().String("tcp", "", "Forward tag data to the TCP gateway at host:port")
	runCmd.Flags().String("mqtt", "", "Publish tag data to the MQTT broker URL")
	runCmd.Flags().String("mqtt-topic", "basket", "MQTT topic root")
	runCmd.Flags().Bool("pty", false, "Expose tag data on a pseudo-terminal")
}

func runRun(cmd *cobra.Command, _ []string) error {
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

	sink, err := buildSink(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close sinks")
		}
	}()

	transport, err := goble.NewTransport(cfg.ConnectTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to open BLE adapter: %w", err)
	}

	eng := engine.New(engine.Config{
		NamePrefix:   cfg.NamePrefix,
		PollInterval: cfg.PollInterval,
		Endpoints: bootstrap.Endpoints{
			Battery: cfg.Endpoints.Battery,
			RX:      cfg.Endpoints.RX,
			TX:      cfg.Endpoints.TX,
		},
		ReadBattery: cfg.ReadBattery,
		OpTimeout:   cfg.OpTimeout,
	}, transport, transport, sink, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = eng.Run(ctx)
	printSummary(cmd, eng.Stats())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildSink assembles the enabled sinks into one
func buildSink(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger) (stream.Sink, error) {
	var sinks []stream.Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if !cfg.Sinks.Log.Disabled {
		sinks = append(sinks, stream.NewLogSink(logger))
	}

	if cfg.Sinks.TCP.Address != "" {
		sinks = append(sinks, stream.NewTCPSink(stream.TCPConfig{
			Address:         cfg.Sinks.TCP.Address,
			DialTimeout:     cfg.Sinks.TCP.DialTimeout,
			WriteTimeout:    cfg.Sinks.TCP.WriteTimeout,
			BreakerFailures: cfg.Sinks.TCP.BreakerFailures,
			BreakerTimeout:  cfg.Sinks.TCP.BreakerTimeout,
		}, logger))
	}

	if cfg.Sinks.MQTT.Broker != "" {
		mq, err := stream.NewMQTTSink(stream.MQTTConfig{
			Broker:   cfg.Sinks.MQTT.Broker,
			ClientID: cfg.Sinks.MQTT.ClientID,
			Topic:    cfg.Sinks.MQTT.Topic,
			QoS:      cfg.Sinks.MQTT.QoS,
			Timeout:  cfg.Sinks.MQTT.Timeout,
		}, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		sinks = append(sinks, mq)
	}

	if cfg.Sinks.PTY.Enabled {
		p, err := stream.NewPTYSink(cfg.Sinks.PTY.BufferSize, logger)
		if err != nil {
			closeAll()
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tag data available on %s\n", p.TTYName())
		sinks = append(sinks, p)
	}

	switch len(sinks) {
	case 0:
		return nil, ErrNoSink
	case 1:
		return sinks[0], nil
	default:
		return stream.NewMultiSink(sinks...), nil
	}
}

func printSummary(cmd *cobra.Command, st engine.Stats) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"\nTags seen: %d, in basket: %d, streamed: %d, unavailable: %d, failed: %d, disconnected: %d\n",
		st.Sessions, st.Goals, st.Channels, st.Unavailable, st.Failures, st.Disconnects)
}
