// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rfbridge/pkg/bridge"
	"github.com/Thermoquad/rfbridge/pkg/config"
	"github.com/Thermoquad/rfbridge/pkg/indicator"
	"github.com/Thermoquad/rfbridge/pkg/rf24link"
)

var (
	monitorSimulate bool
	monitorEchoPipe uint8
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI showing bridge traffic without MQTT",
	Long: `Run the bridge loop in a terminal UI instead of connecting to a broker.

Every received frame is decoded and shown with the topic it would be
published on. Text typed into the input line is queued for the writing pipe
exactly like a message on the writing topic.

With --simulate no hardware is needed: an in-memory coprocessor stands in for
the radio and echoes every transmitted frame back on --echo-pipe.

Logs go to --log-file when set and are discarded otherwise.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorSimulate, "simulate", false, "Use a simulated coprocessor instead of the radio link")
	monitorCmd.Flags().Uint8Var(&monitorEchoPipe, "echo-pipe", 1, "Reading pipe that receives echoed frames (--simulate only, 0 disables)")
}

// discardBus accepts every message; the monitor shows them as events
type discardBus struct{}

func (discardBus) Publish(topic, payload string) error { return nil }

// openSimulatedLink connects a client to an in-memory coprocessor
func openSimulatedLink(timeout time.Duration, logger *slog.Logger) (*rf24link.Client, string) {
	host, device := net.Pipe()
	sim := rf24link.NewSimulator(logger)
	sim.Echo = monitorEchoPipe
	go func() {
		if err := sim.Serve(device); err != nil {
			logger.Error("simulator stopped", "error", err)
		}
	}()
	client := rf24link.NewClient(host, rf24link.Options{Timeout: timeout, Logger: logger})
	return client, fmt.Sprintf("Simulated coprocessor (echo on pipe %d)", monitorEchoPipe)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	defer closeLogging()

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}
	logger := slog.Default()

	radioCfg, err := config.LoadRadio(radioConfigPath)
	if err != nil {
		return err
	}
	settings, err := radioCfg.Settings()
	if err != nil {
		return err
	}
	table, err := radioCfg.Table()
	if err != nil {
		return err
	}

	var client *rf24link.Client
	var connInfo string
	if monitorSimulate {
		client, connInfo = openSimulatedLink(radioCfg.LinkTimeout(), logger)
	} else {
		client, connInfo, err = openLink(linkSettings(cmd, radioCfg.Link), radioCfg.LinkTimeout(), logger)
		if err != nil {
			return err
		}
	}
	defer client.Close()

	events := make(chan bridge.Event, 256)
	pulser := indicator.NewPulser(client, radioCfg.LEDPin, logger)

	br := bridge.New(client, discardBus{}, table, bridge.Config{
		PayloadSize:  radioCfg.PayloadLength,
		TickInterval: radioCfg.TickInterval(),
		Pulser:       pulser,
		Logger:       logger,
		OnEvent: func(e bridge.Event) {
			select {
			case events <- e:
			default:
				logger.Debug("monitor event dropped", "kind", e.Kind.String())
			}
		},
	})

	if err := br.Initialize(settings, radioCfg.CEPin, radioCfg.CSPin); err != nil {
		return err
	}
	pulser.Pulse(indicator.PulsesStartup)

	m := initialMonitorModel(connInfo, table, br.Statistics(), br.Submit)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Forward events in order. Submit emits from the UI goroutine, which
	// must never block on p.Send.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				p.Send(bridgeEventMsg(e))
			}
		}
	}()

	runDone := make(chan error, 1)
	go func() {
		err := br.Run(ctx)
		runDone <- err
		if err != nil {
			p.Send(bridgeStoppedMsg{err: err})
		}
	}()

	_, tuiErr := p.Run()
	cancel()
	runErr := <-runDone

	closeErr := br.Close()
	fmt.Print(br.Statistics().String())
	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	if runErr != nil {
		return fmt.Errorf("bridge loop: %w", runErr)
	}
	return closeErr
}
