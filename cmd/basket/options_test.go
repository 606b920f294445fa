package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/basket/internal/stream"
	"github.com/srg/basket/internal/testutils"
	"github.com/srg/basket/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRunLikeCommand mirrors the flags of run so tests do not touch the
// package-level command.
func newRunLikeCommand(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("prefix", "", "")
	cmd.Flags().Duration("interval", time.Second, "")
	cmd.Flags().Bool("battery", true, "")
	cmd.Flags().Bool("no-log", false, "")
	cmd.Flags().String("tcp", "", "")
	if err := cmd.ParseFlags(args); err != nil {
		panic(err)
	}
	return cmd
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig(newRunLikeCommand())
		require.NoError(t, err)
		assert.Equal(t, config.DefaultConfig(), cfg)
	})

	t.Run("explicit flags override the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "basket.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name_prefix: Disc\npoll_interval: 2s\n"), 0o600))

		cfg, err := loadConfig(newRunLikeCommand("--config", path, "--interval", "250ms", "--no-log"))
		require.NoError(t, err)
		assert.Equal(t, "Disc", cfg.NamePrefix, "unset flags MUST keep the file value")
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
		assert.True(t, cfg.Sinks.Log.Disabled)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		_, err := loadConfig(newRunLikeCommand("--interval", "0s"))
		assert.ErrorContains(t, err, "invalid configuration: poll_interval must be positive")
	})
}

func TestConfigureLogger(t *testing.T) {
	cfg := config.DefaultConfig()

	logger, err := configureLogger(newRunLikeCommand(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "info", logger.GetLevel().String())

	logger, err = configureLogger(newRunLikeCommand("--verbose"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())

	logger, err = configureLogger(newRunLikeCommand("--verbose", "--log-level", "warn"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "warning", logger.GetLevel().String(), "--log-level MUST take precedence over --verbose")

	_, err = configureLogger(newRunLikeCommand("--log-level", "loud"), cfg)
	assert.ErrorContains(t, err, "invalid log level: loud")
}

func TestBuildSink(t *testing.T) {
	logger := testutils.DiscardLogger()
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	t.Run("log sink by default", func(t *testing.T) {
		sink, err := buildSink(cmd, config.DefaultConfig(), logger)
		require.NoError(t, err)
		assert.IsType(t, &stream.LogSink{}, sink)
	})

	t.Run("nothing enabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Sinks.Log.Disabled = true

		_, err := buildSink(cmd, cfg, logger)
		assert.ErrorIs(t, err, ErrNoSink)
	})

	t.Run("log and tcp fan out", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		cfg := config.DefaultConfig()
		cfg.Sinks.TCP.Address = ln.Addr().String()

		sink, err := buildSink(cmd, cfg, logger)
		require.NoError(t, err)
		assert.IsType(t, &stream.MultiSink{}, sink)
		assert.NoError(t, sink.Close())
	})
}
