// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rfbridge/pkg/bridge"
	"github.com/Thermoquad/rfbridge/pkg/config"
	"github.com/Thermoquad/rfbridge/pkg/indicator"
	"github.com/Thermoquad/rfbridge/pkg/mqttbus"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the radio to MQTT bridge",
	Long: `Bring the transceiver up, connect to the MQTT broker and bridge traffic
until interrupted.

Startup:
  1. load --radio-config and --mqtt-config
  2. open the radio link, configure the transceiver and open every pipe
  3. blink the indicator three times
  4. connect to the broker and subscribe to the writing topic

SIGINT or SIGTERM powers the radio down and disconnects from the broker.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	defer closeLogging()
	logger := slog.Default()

	radioCfg, err := config.LoadRadio(radioConfigPath)
	if err != nil {
		return err
	}
	mqttCfg, err := config.LoadMQTT(mqttConfigPath)
	if err != nil {
		return err
	}
	if err := mqttCfg.ResolvePassword(passwordPrompt("MQTT password")); err != nil {
		return &config.Error{File: mqttConfigPath, Err: err}
	}

	settings, err := radioCfg.Settings()
	if err != nil {
		return err
	}
	table, err := radioCfg.Table()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, connInfo, err := openLink(linkSettings(cmd, radioCfg.Link), radioCfg.LinkTimeout(), logger)
	if err != nil {
		return err
	}
	defer client.Close()
	logger.Info("radio link open", "connection", connInfo)

	pulser := indicator.NewPulser(client, radioCfg.LEDPin, logger)

	var br *bridge.Bridge
	bus := mqttbus.New(mqttCfg.BusConfig(table.Writing().Topic),
		func(payload string) { br.Submit(payload) },
		mqttbus.Options{
			Logger: logger,
			OnDeliveryFailure: func(*mqttbus.DeliveryError) {
				br.Statistics().RecordDeliveryFailure()
			},
		})

	br = bridge.New(client, bus, table, bridge.Config{
		PayloadSize:   radioCfg.PayloadLength,
		TickInterval:  radioCfg.TickInterval(),
		StatsInterval: radioCfg.StatsInterval(),
		Pulser:        pulser,
		Logger:        logger,
	})

	if err := br.Initialize(settings, radioCfg.CEPin, radioCfg.CSPin); err != nil {
		return err
	}
	pulser.Pulse(indicator.PulsesStartup)

	if err := bus.Connect(ctx); err != nil {
		closeErr := br.Close()
		bus.Disconnect()
		if ctx.Err() != nil {
			// interrupted while connecting
			return closeErr
		}
		return errors.Join(err, closeErr)
	}

	runErr := br.Run(ctx)
	if runErr != nil {
		logger.Error("bridge stopped", "error", runErr)
	} else {
		logger.Info("shutting down")
	}

	closeErr := br.Close()
	bus.Disconnect()
	if runErr != nil {
		return fmt.Errorf("bridge loop: %w", runErr)
	}
	return closeErr
}
