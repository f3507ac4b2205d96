// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/signalbox/pkg/z21"
)

// runtimeConfig holds connection and command defaults
type runtimeConfig struct {
	Host           string
	SerialPort     string
	Baud           int
	URL            string
	Username       string
	NoSSLVerify    bool
	LogLevel       string
	BroadcastFlags uint32
	DefaultLoco    uint16
	DefaultSteps   z21.SpeedSteps
	Timeout        time.Duration // zero: each command's own default
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Baud:           115200,
		LogLevel:       "warn",
		BroadcastFlags: z21.BroadcastDrivingSwitching,
		DefaultLoco:    3,
		DefaultSteps:   z21.Steps128,
	}
}

// signalbox config.toml key mapping
type fileConfig struct {
	Host           string `toml:"host"`
	SerialPort     string `toml:"serial_port"`
	Baud           int    `toml:"baud"`
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	NoSSLVerify    bool   `toml:"no_ssl_verify"`
	LogLevel       string `toml:"log_level"`
	BroadcastFlags uint32 `toml:"broadcast_flags"`
	DefaultLoco    int    `toml:"default_loco"`
	DefaultSteps   int    `toml:"default_steps"`
	Timeout        string `toml:"timeout"`
}

// loadConfigFile overlays the TOML file at path onto cfg. Keys whose
// command-line flag was set (flagChanged returns true) are left alone.
func loadConfigFile(path string, cfg *runtimeConfig, flagChanged func(name string) bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logger.Warnf("config %s: ignoring unknown keys %v", path, undecoded)
	}

	// file key -> overriding flag
	use := func(key, flag string) bool {
		return meta.IsDefined(key) && (flag == "" || !flagChanged(flag))
	}

	// A transport flag replaces the file's host, serial_port and url together
	transportFlag := flagChanged("host") || flagChanged("port") || flagChanged("url")
	useTransport := func(key string) bool {
		return meta.IsDefined(key) && !transportFlag
	}

	if useTransport("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if useTransport("serial_port") {
		cfg.SerialPort = strings.TrimSpace(raw.SerialPort)
	}
	if use("baud", "baud") {
		if raw.Baud <= 0 {
			return fmt.Errorf("load config: baud must be positive, got %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}
	if useTransport("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if use("username", "username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if use("no_ssl_verify", "no-ssl-verify") {
		cfg.NoSSLVerify = raw.NoSSLVerify
	}
	if use("log_level", "log-level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if use("broadcast_flags", "") {
		cfg.BroadcastFlags = raw.BroadcastFlags
	}
	if use("default_loco", "") {
		if raw.DefaultLoco < 1 || raw.DefaultLoco > maxLocoAddress {
			return fmt.Errorf("load config: default_loco must be 1-%d, got %d", maxLocoAddress, raw.DefaultLoco)
		}
		cfg.DefaultLoco = uint16(raw.DefaultLoco)
	}
	if use("default_steps", "") {
		steps, err := z21.ParseSpeedSteps(raw.DefaultSteps)
		if err != nil {
			return fmt.Errorf("load config: default_steps: %w", err)
		}
		cfg.DefaultSteps = steps
	}
	if use("timeout", "") {
		timeout, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("load config: timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("load config: timeout must be positive, got %s", timeout)
		}
		cfg.Timeout = timeout
	}

	logger.Debugf("loaded config %s", path)
	return nil
}
