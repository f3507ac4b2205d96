// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Runtime configuration (flags, then config file, then defaults)
	cfg = defaultRuntimeConfig()

	configPath string

	logger = logrus.StandardLogger()
)

var rootCmd = &cobra.Command{
	Use:   "signalbox",
	Short: "Z21 command station client",
	Long: `Signalbox - A CLI tool for driving and monitoring Z21 model railway command stations.

Provides commands for track power, locomotive and turnout control, CV
programming, raw frame logging, capture/replay and an interactive throttle.

Connection modes:
  UDP:       --host 192.168.0.111[:21105]
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also be read from a TOML file (--config or SIGNALBOX_CONFIG).
Flags given on the command line take precedence over the file.

For WebSocket authentication, the password is read from the SIGNALBOX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

func init() {
	// UDP connection flags
	rootCmd.PersistentFlags().StringVarP(&cfg.Host, "host", "H", "", "Command station address (host[:port], UDP)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&cfg.SerialPort, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&cfg.Baud, "baud", "b", cfg.Baud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&cfg.URL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&cfg.Username, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// General flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
}

// initRuntime applies the config file and sets up logging before any command runs
func initRuntime(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("SIGNALBOX_CONFIG")
	}
	if path != "" {
		if err := loadConfigFile(path, &cfg, cmd.Flags().Changed); err != nil {
			return err
		}
	}

	level := cfg.LogLevel
	if !cmd.Flags().Changed("log-level") {
		if env := os.Getenv("SIGNALBOX_LOG_LEVEL"); env != "" {
			level = env
		}
	}
	return setupLogging(logger, level)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
