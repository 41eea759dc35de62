// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/config"
	"github.com/Thermoquad/itekstat/pkg/itek"
	"github.com/Thermoquad/itekstat/pkg/logging"
)

// Version is reported by --version and stamped into exported containers
const Version = "1.0.0"

var (
	// Global flags
	configPath string
	logLevel   string
	cardMapStr string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Loaded at startup
	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "itekstat",
	Short: "Itek EMG frame analyzer",
	Long: `itekstat - A CLI tool for decoding and analyzing Itek EMG amplifier captures.

Captures (.itf) are streams of fixed-size 400 byte frames. itekstat locates
valid frames in corrupted or misaligned data, decodes the 128 channels and
rebuilds the logical frame sequence from the 8-bit record counter so dropped
frames appear as explicit gaps. A companion .itf.ita file supplies per-card
gain, filter and on/off settings.

Offline commands read capture files. Live commands read from the amplifier
link:
  Serial:    --port /dev/ttyUSB0 [--baud 921600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the ITEKSTAT_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.itekstat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "Log level. "+logging.HelpLevels)
	rootCmd.PersistentFlags().StringVar(&cardMapStr, "card-map", config.DefaultCardMap, "Card to channel block order (16 comma separated card numbers)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultSerialBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadSettings reads the config file and applies it to every flag the user
// did not set, then installs the logger
func loadSettings(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("log-level") {
		logLevel = cfg.LogLevel
	}
	if !flags.Changed("card-map") {
		cardMapStr = cfg.CardMap
	}
	if !flags.Changed("port") && cfg.Serial.Port != "" {
		portName = cfg.Serial.Port
	}
	if !flags.Changed("baud") && cfg.Serial.Baud != 0 {
		baudRate = cfg.Serial.Baud
	}
	if !flags.Changed("url") && cfg.WebSocket.URL != "" {
		wsURL = cfg.WebSocket.URL
	}
	if !flags.Changed("username") && cfg.WebSocket.Username != "" {
		wsUsername = cfg.WebSocket.Username
	}
	if !flags.Changed("no-ssl-verify") && cfg.WebSocket.NoSSLVerify {
		wsNoSSLVerify = true
	}

	logger, err = logging.Init(os.Stderr, logLevel)
	return err
}

// cardOrder parses the --card-map value
func cardOrder() ([]int, error) {
	order, err := itek.ParseCardOrder(cardMapStr)
	if err != nil {
		return nil, err
	}
	if _, err := itek.ChannelMap(order); err != nil {
		return nil, err
	}
	return order, nil
}

// newDecoder returns a decoder logging through the command logger
func newDecoder() *itek.Decoder {
	d := itek.NewDecoder()
	d.Logger = logger
	return d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
