package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/basket/pkg/config"
)

// loadConfig reads --config and applies flags the user set explicitly on
// top of it. Flags left at their defaults, or not defined by the command,
// never override the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("prefix") {
		cfg.NamePrefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("interval") {
		cfg.PollInterval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout")
	}
	if flags.Changed("battery") {
		cfg.ReadBattery, _ = flags.GetBool("battery")
	}
	if flags.Changed("no-log") {
		cfg.Sinks.Log.Disabled, _ = flags.GetBool("no-log")
	}
	if flags.Changed("tcp") {
		cfg.Sinks.TCP.Address, _ = flags.GetString("tcp")
	}
	if flags.Changed("mqtt") {
		cfg.Sinks.MQTT.Broker, _ = flags.GetString("mqtt")
	}
	if flags.Changed("mqtt-topic") {
		cfg.Sinks.MQTT.Topic, _ = flags.GetString("mqtt-topic")
	}
	if flags.Changed("pty") {
		cfg.Sinks.PTY.Enabled, _ = flags.GetBool("pty")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
