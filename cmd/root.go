// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Configuration files
	radioConfigPath string
	mqttConfigPath  string

	// Serial link flags
	portName string
	baudRate int

	// WebSocket link flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "rfbridge",
	Short: "nRF24 to MQTT bridge",
	Long: `rfbridge - Bridges nRF24L01 radio pipes and an MQTT broker.

Frames received on a reading pipe are published under the pipe's topic; a
"[sub] " prefix selects a subtopic. Messages on the writing topic are sent
over the writing pipe.

The transceiver is driven through a radio coprocessor:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Link flags override the link section of the radio configuration. For
WebSocket authentication, the password is read from the RFBRIDGE_LINK_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&radioConfigPath, "radio-config", "/etc/rfbridge/radio.yaml", "Radio configuration file")
	flags.StringVar(&mqttConfigPath, "mqtt-config", "/etc/rfbridge/mqtt.yaml", "MQTT configuration file")

	// Serial link flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port of the radio coprocessor")
	flags.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket link flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL of the radio coprocessor (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	addLoggingFlags(flags)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
