// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge translates between radio frames and bus messages.
//
// A Bridge owns the transceiver. Its loop polls for one received frame per
// tick, publishes it, then transmits at most one pending bus payload:
//
//	Idle -> Receiving -> (Publishing | Suppressed | Corrupted) -> Sending? -> Idle
package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/rfbridge/pkg/frame"
	"github.com/Thermoquad/rfbridge/pkg/indicator"
	"github.com/Thermoquad/rfbridge/pkg/pipes"
	"github.com/Thermoquad/rfbridge/pkg/radio"
)

// DefaultTickInterval is the pause between two loop iterations
const DefaultTickInterval = 10 * time.Millisecond

// Bus publishes messages. Implementations must not block for the broker
// acknowledgement.
type Bus interface {
	Publish(topic, payload string) error
}

// Pulser starts indicator pulse trains without blocking.
type Pulser interface {
	Pulse(n int)
}

// Result is the outcome of handling one received frame
type Result int

const (
	ResultPublished Result = iota
	ResultSuppressed
	ResultCorrupted
)

func (r Result) String() string {
	switch r {
	case ResultPublished:
		return "published"
	case ResultSuppressed:
		return "suppressed"
	case ResultCorrupted:
		return "corrupted"
	}
	return "unknown"
}

// Config holds the bridge options. Zero values select defaults.
type Config struct {
	PayloadSize   int
	TickInterval  time.Duration
	StatsInterval time.Duration // 0 disables periodic statistics logs
	Pulser        Pulser
	Logger        *slog.Logger
	OnEvent       func(Event)
}

// Bridge connects one radio to one bus.
type Bridge struct {
	radio   radio.Radio
	bus     Bus
	table   *pipes.Table
	mailbox *Mailbox
	stats   *Statistics

	payloadSize   int
	tickInterval  time.Duration
	statsInterval time.Duration
	pulser        Pulser
	logger        *slog.Logger
	onEvent       func(Event)
}

type noPulse struct{}

func (noPulse) Pulse(int) {}

// New creates a Bridge. The radio must not be used by anything else.
func New(r radio.Radio, bus Bus, table *pipes.Table, cfg Config) *Bridge {
	b := &Bridge{
		radio:         r,
		bus:           bus,
		table:         table,
		mailbox:       &Mailbox{},
		stats:         NewStatistics(),
		payloadSize:   cfg.PayloadSize,
		tickInterval:  cfg.TickInterval,
		statsInterval: cfg.StatsInterval,
		pulser:        cfg.Pulser,
		logger:        cfg.Logger,
		onEvent:       cfg.OnEvent,
	}
	if b.payloadSize <= 0 || b.payloadSize > frame.MaxPayloadSize {
		b.payloadSize = frame.MaxPayloadSize
	}
	if b.tickInterval <= 0 {
		b.tickInterval = DefaultTickInterval
	}
	if b.pulser == nil {
		b.pulser = noPulse{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Statistics returns the live statistics tracker
func (b *Bridge) Statistics() *Statistics {
	return b.stats
}

// Initialize brings the transceiver up and opens every configured pipe.
// Errors are returned as *HardwareInitError.
func (b *Bridge) Initialize(settings radio.Settings, cePin, csnPin uint8) error {
	settings.PayloadSize = uint8(b.payloadSize)
	if err := settings.Validate(); err != nil {
		return &HardwareInitError{Op: "configure", Err: err}
	}

	if err := b.radio.Begin(cePin, csnPin); err != nil {
		return &HardwareInitError{Op: "begin", Err: err}
	}
	if err := b.radio.Configure(settings); err != nil {
		return &HardwareInitError{Op: "configure", Err: err}
	}
	b.logger.Info("radio configured",
		"channel", settings.Channel,
		"data_rate", settings.DataRate.String(),
		"crc", settings.CRCLength.String(),
		"pa_level", settings.PALevel.String(),
		"retry_delay", settings.RetryDelay,
		"max_retries", settings.RetryCount,
		"payload_size", settings.PayloadSize)

	writing := b.table.Writing()
	b.logger.Info("opening writing pipe", "pipe", writing.Index, "address", writing.Address.String())
	if err := b.radio.OpenWritingPipe(writing.Address); err != nil {
		return &HardwareInitError{Op: "open writing pipe", Err: err}
	}

	for _, p := range b.table.ReadingPipes() {
		b.logger.Info("opening reading pipe", "pipe", p.Index, "address", p.Address.String(), "topic", p.Topic)
		if err := b.radio.OpenReadingPipe(p.Index, p.Address); err != nil {
			return &HardwareInitError{Op: fmt.Sprintf("open reading pipe %d", p.Index), Err: err}
		}
	}

	if err := b.radio.StartListening(); err != nil {
		return &HardwareInitError{Op: "start listening", Err: err}
	}
	return nil
}

// Submit queues text for transmission on the writing pipe. It is safe to
// call from any goroutine. A payload still pending is replaced.
func (b *Bridge) Submit(text string) {
	if b.mailbox.Put(text) {
		b.stats.add(func(c *Counters) { c.ReplacedWrites++ })
		b.logger.Warn("pending radio write replaced before transmission", "payload", text)
		b.emit(Event{Kind: EventWriteReplaced, Pipe: pipes.WritingIndex, Payload: text})
	}
}

// HandleReceived translates one frame received on pipe and publishes it
// when it is a well-formed message. Only protocol violations are returned
// as errors, and the result is meaningless with them; corrupted frames are
// reported through the result.
func (b *Bridge) HandleReceived(pipe uint8, raw []byte) (Result, error) {
	if pipe == pipes.WritingIndex {
		return ResultCorrupted, fmt.Errorf("%w: frame reported on writing pipe %d", ErrProtocolViolation, pipe)
	}
	cfg, ok := b.table.Reading(pipe)
	if !ok {
		return ResultCorrupted, fmt.Errorf("%w: frame reported on unconfigured pipe %d", ErrProtocolViolation, pipe)
	}

	b.stats.add(func(c *Counters) { c.Frames++ })

	msg, err := frame.Decode(raw, cfg.Topic)
	if err != nil {
		var corrupted *frame.CorruptedError
		if !errors.As(err, &corrupted) {
			return ResultCorrupted, err
		}
		b.stats.add(func(c *Counters) { c.Corrupted++ })
		b.logger.Warn("corrupted radio frame",
			"pipe", pipe,
			"address", cfg.Address.String(),
			"offset", corrupted.Offset,
			"raw", hex.EncodeToString(corrupted.Raw))
		b.signal(cfg, indicator.PulsesCorrupt)
		b.emit(Event{Kind: EventCorrupted, Pipe: pipe, Address: cfg.Address, Topic: cfg.Topic, Raw: corrupted.Raw, Err: err})
		return ResultCorrupted, nil
	}

	if msg.Confirmation {
		b.stats.add(func(c *Counters) { c.Confirmations++ })
		b.logger.Info("message confirmed", "pipe", pipe, "address", cfg.Address.String())
		b.emit(Event{Kind: EventSuppressed, Pipe: pipe, Address: cfg.Address, Topic: msg.Topic, Raw: raw})
		return ResultSuppressed, nil
	}

	b.logger.Info("publishing radio message",
		"pipe", pipe,
		"topic", msg.Topic,
		"payload", msg.Payload)

	if err := b.bus.Publish(msg.Topic, msg.Payload); err != nil {
		b.stats.add(func(c *Counters) { c.PublishErrors++ })
		b.logger.Error("publish failed",
			"pipe", pipe,
			"address", cfg.Address.String(),
			"topic", msg.Topic,
			"payload", msg.Payload,
			"error", err)
		b.emit(Event{Kind: EventPublishError, Pipe: pipe, Address: cfg.Address, Topic: msg.Topic, Payload: msg.Payload, Raw: raw, Err: err})
	} else {
		b.stats.add(func(c *Counters) { c.Published++ })
		b.emit(Event{Kind: EventPublished, Pipe: pipe, Address: cfg.Address, Topic: msg.Topic, Payload: msg.Payload, Raw: raw})
	}

	b.signal(cfg, indicator.PulsesReceive)
	return ResultPublished, nil
}

// HandleWrite encodes text into a frame for the writing pipe. Text longer
// than the payload size is cut and the truncation is logged.
func (b *Bridge) HandleWrite(text string) []byte {
	encoded, truncated := frame.Encode(text, b.payloadSize)
	if truncated {
		b.stats.add(func(c *Counters) { c.Truncated++ })
		b.logger.Warn("outbound payload truncated",
			"original_bytes", len(text),
			"sent_bytes", len(encoded),
			"payload", text)
		b.emit(Event{Kind: EventTruncated, Pipe: pipes.WritingIndex, Payload: text})
	}
	return encoded
}

// Tick runs one loop iteration. It returns an error only when the loop
// must stop.
func (b *Bridge) Tick() error {
	if err := b.receive(); err != nil {
		return err
	}

	if text, ok := b.mailbox.Take(); ok {
		if err := b.transmit(text); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) receive() error {
	available, pipe, err := b.radio.AvailablePipe()
	if err != nil {
		return b.linkError("available", err)
	}
	if !available {
		return nil
	}

	raw, err := b.radio.Read(b.payloadSize)
	if err != nil {
		return b.linkError("read", err)
	}

	_, err = b.HandleReceived(pipe, raw)
	return err
}

func (b *Bridge) transmit(text string) error {
	writing := b.table.Writing()
	data := b.HandleWrite(text)
	b.stats.add(func(c *Counters) { c.Writes++ })

	b.logger.Info("sending radio payload",
		"pipe", writing.Index,
		"address", writing.Address.String(),
		"payload", string(data))

	if err := b.radio.StopListening(); err != nil {
		if fatal := b.linkError("stop listening", err); fatal != nil {
			return fatal
		}
		b.stats.add(func(c *Counters) { c.TransmitFailures++ })
		b.logger.Warn("radio payload dropped, transceiver did not leave listening mode", "payload", string(data))
		b.emit(Event{Kind: EventTransmitFailed, Pipe: writing.Index, Address: writing.Address, Topic: writing.Topic, Payload: text, Raw: data, Err: err})
		return nil
	}

	writeErr := b.radio.Write(data)

	if err := b.radio.StartListening(); err != nil {
		if fatal := b.linkError("start listening", err); fatal != nil {
			return fatal
		}
	}

	if writeErr != nil {
		if errors.Is(writeErr, radio.ErrClosed) {
			return writeErr
		}
		b.stats.add(func(c *Counters) { c.TransmitFailures++ })
		b.logger.Warn("radio transmit failed",
			"pipe", writing.Index,
			"address", writing.Address.String(),
			"payload", string(data),
			"raw", hex.EncodeToString(data),
			"error", writeErr)
		b.emit(Event{Kind: EventTransmitFailed, Pipe: writing.Index, Address: writing.Address, Topic: writing.Topic, Payload: text, Raw: data, Err: writeErr})
		return nil
	}

	b.stats.add(func(c *Counters) { c.Transmitted++ })
	b.emit(Event{Kind: EventTransmitted, Pipe: writing.Index, Address: writing.Address, Topic: writing.Topic, Payload: string(data), Raw: data})
	b.signal(writing, indicator.PulsesTransmit)
	return nil
}

// linkError logs a recoverable transceiver error and passes fatal ones
// through.
func (b *Bridge) linkError(op string, err error) error {
	if errors.Is(err, radio.ErrClosed) {
		return err
	}
	b.stats.add(func(c *Counters) { c.LinkErrors++ })
	b.logger.Warn("radio operation failed", "op", op, "error", err)
	return nil
}

// Run loops until ctx is cancelled or a fatal error occurs. It does not
// power the radio down; call Close for that.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("bridge running",
		"tick_interval", b.tickInterval,
		"writing_topic", b.table.Writing().Topic)

	timer := time.NewTimer(b.tickInterval)
	defer timer.Stop()

	lastStats := time.Now()

	for {
		if err := b.Tick(); err != nil {
			return err
		}

		if b.statsInterval > 0 && time.Since(lastStats) >= b.statsInterval {
			b.logStatistics()
			lastStats = time.Now()
		}

		timer.Reset(b.tickInterval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Close powers the transceiver down and logs final statistics.
func (b *Bridge) Close() error {
	b.logStatistics()
	if err := b.radio.PowerDown(); err != nil {
		return fmt.Errorf("radio power down: %w", err)
	}
	b.logger.Info("radio powered down")
	return nil
}

func (b *Bridge) logStatistics() {
	c := b.stats.Snapshot()
	b.logger.Info("bridge statistics",
		"frames", c.Frames,
		"published", c.Published,
		"confirmations", c.Confirmations,
		"corrupted", c.Corrupted,
		"publish_errors", c.PublishErrors,
		"delivery_failures", c.DeliveryFailures,
		"writes", c.Writes,
		"transmitted", c.Transmitted,
		"transmit_failures", c.TransmitFailures,
		"truncated", c.Truncated,
		"replaced_writes", c.ReplacedWrites,
		"link_errors", c.LinkErrors,
		"frame_rate", fmt.Sprintf("%.2f", c.FrameRate))
}

func (b *Bridge) signal(p pipes.PipeConfig, pulses int) {
	if p.Signal {
		b.pulser.Pulse(pulses)
	}
}

func (b *Bridge) emit(e Event) {
	if b.onEvent == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.onEvent(e)
}
