// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package indicator blinks an activity LED without blocking the caller.
package indicator

import (
	"log/slog"
	"time"
)

// Pulse counts used by the bridge
const (
	PulsesStartup  = 3
	PulsesReceive  = 2
	PulsesTransmit = 1
	PulsesCorrupt  = 5
)

// DefaultPeriod is the on and off time of a single pulse.
const DefaultPeriod = 100 * time.Millisecond

// Output drives a digital pin.
type Output interface {
	SetPin(pin uint8, high bool) error
}

// Pulser emits pulse trains on one pin of an Output.
type Pulser struct {
	out    Output
	pin    uint8
	period time.Duration
	logger *slog.Logger
}

// NewPulser creates a Pulser for pin. A nil logger uses slog.Default.
func NewPulser(out Output, pin uint8, logger *slog.Logger) *Pulser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pulser{
		out:    out,
		pin:    pin,
		period: DefaultPeriod,
		logger: logger,
	}
}

// SetPeriod changes the on/off time of each pulse.
func (p *Pulser) SetPeriod(d time.Duration) {
	p.period = d
}

// Pulse starts n pulses in the background and returns immediately.
// Concurrent pulse trains are not serialised and may interleave.
func (p *Pulser) Pulse(n int) {
	if n <= 0 {
		return
	}
	go p.run(n)
}

func (p *Pulser) run(n int) {
	for i := 0; i < n; i++ {
		if err := p.out.SetPin(p.pin, true); err != nil {
			p.logger.Debug("indicator pin write failed", "pin", p.pin, "error", err)
			return
		}
		time.Sleep(p.period)
		if err := p.out.SetPin(p.pin, false); err != nil {
			p.logger.Debug("indicator pin write failed", "pin", p.pin, "error", err)
			return
		}
		time.Sleep(p.period)
	}
}
