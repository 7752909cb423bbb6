// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rfbridge/pkg/config"
)

var (
	linkTestTimeout int
	linkTestCount   int
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Ping the radio coprocessor",
	Long: `Send PING requests to the radio coprocessor and wait for PONG.

The coprocessor answers with its uptime. This is useful for verifying:
  - the serial port or WebSocket connection is established
  - HTTP Basic authentication works
  - the coprocessor firmware is processing requests

The link settings come from --radio-config when it exists, overridden by the
link flags.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runLinkTest,
}

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestTimeout, "timeout", 1000, "Timeout in milliseconds for each ping")
	linkTestCmd.Flags().IntVar(&linkTestCount, "count", 3, "Number of pings to send")
}

// loadLink returns the link settings of the radio file, or the defaults
// when the file does not exist, with the link flags applied.
func loadLink(cmd *cobra.Command) (config.Link, error) {
	cfg, err := config.LoadRadio(radioConfigPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return config.Link{}, err
		}
		defaults := config.DefaultRadio()
		cfg = &defaults
	}
	return linkSettings(cmd, cfg.Link), nil
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	defer closeLogging()

	link, err := loadLink(cmd)
	if err != nil {
		return err
	}

	timeout := time.Duration(linkTestTimeout) * time.Millisecond
	client, connInfo, err := openLink(link, timeout, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	fmt.Printf("rfbridge - Link Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s per ping\n", timeout)
	fmt.Printf("Count: %d pings\n\n", linkTestCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= linkTestCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, linkTestCount)

		result, err := client.Ping()
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("PONG, uptime=%s, rtt=%v\n",
				formatUptime(uint64(result.Uptime.Milliseconds())),
				result.RTT.Round(time.Microsecond))
			successCount++
		}

		if i < linkTestCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		linkTestCount, successCount, float64(failCount)/float64(linkTestCount)*100)

	if failCount > 0 {
		closeLogging()
		os.Exit(1)
	}
	return nil
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	var parts []string
	add := func(n uint64, unit string) {
		switch {
		case n == 1:
			parts = append(parts, "1 "+unit)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	add(days, "day")
	add(hours, "hour")
	add(minutes, "minute")
	add(seconds, "second")

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}
