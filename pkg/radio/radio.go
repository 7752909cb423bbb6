// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package radio defines the nRF24L01 transceiver operations the bridge
// depends on and the settings used to configure it.
package radio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransmitFailed is returned by Write when the frame was not acknowledged
	ErrTransmitFailed = errors.New("transmit failed")
	// ErrClosed is returned once the transceiver can no longer be reached
	ErrClosed = errors.New("radio link closed")
)

// Radio is the interface that wraps the transceiver operations.
//
// Implementations are driven by a single goroutine; callers must stop
// listening before Write and resume listening afterwards.
type Radio interface {
	Begin(cePin, csnPin uint8) error
	Configure(s Settings) error
	OpenWritingPipe(address []byte) error
	OpenReadingPipe(index uint8, address []byte) error
	StartListening() error
	StopListening() error
	AvailablePipe() (available bool, pipe uint8, err error)
	Read(size int) ([]byte, error)
	Write(frame []byte) error
	PowerDown() error
}

// DataRate is the air data rate
type DataRate uint8

// Data rate values, matching the RF24 library enumeration
const (
	Rate1Mbps DataRate = iota
	Rate2Mbps
	Rate250Kbps
)

// CRCLength is the hardware CRC length
type CRCLength uint8

// CRC length values
const (
	CRCDisabled CRCLength = iota
	CRC8
	CRC16
)

// PALevel is the power amplifier level
type PALevel uint8

// Power amplifier levels
const (
	PAMin PALevel = iota
	PALow
	PAHigh
	PAMax
)

// Settings configures the transceiver after Begin.
type Settings struct {
	Channel         uint8
	DataRate        DataRate
	CRCLength       CRCLength
	PALevel         PALevel
	AutoAck         bool
	DynamicPayloads bool
	RetryDelay      uint8 // multiples of 250us, 0..15
	RetryCount      uint8 // 0..15
	PayloadSize     uint8 // 1..32
}

// Hardware limits
const (
	MaxChannel     = 125
	MaxRetryDelay  = 15
	MaxRetryCount  = 15
	MaxPayloadSize = 32
)

// DefaultSettings returns the RF24 library defaults.
func DefaultSettings() Settings {
	return Settings{
		Channel:     76,
		DataRate:    Rate1Mbps,
		CRCLength:   CRC16,
		PALevel:     PAMax,
		AutoAck:     true,
		RetryDelay:  5,
		RetryCount:  15,
		PayloadSize: MaxPayloadSize,
	}
}

// Validate checks the settings against hardware limits.
func (s Settings) Validate() error {
	if s.Channel > MaxChannel {
		return fmt.Errorf("channel %d out of range 0..%d", s.Channel, MaxChannel)
	}
	if s.DataRate > Rate250Kbps {
		return fmt.Errorf("invalid data rate %d", s.DataRate)
	}
	if s.CRCLength > CRC16 {
		return fmt.Errorf("invalid CRC length %d", s.CRCLength)
	}
	if s.PALevel > PAMax {
		return fmt.Errorf("invalid PA level %d", s.PALevel)
	}
	if s.RetryDelay > MaxRetryDelay {
		return fmt.Errorf("retry delay %d out of range 0..%d", s.RetryDelay, MaxRetryDelay)
	}
	if s.RetryCount > MaxRetryCount {
		return fmt.Errorf("retry count %d out of range 0..%d", s.RetryCount, MaxRetryCount)
	}
	if s.PayloadSize < 1 || s.PayloadSize > MaxPayloadSize {
		return fmt.Errorf("payload size %d out of range 1..%d", s.PayloadSize, MaxPayloadSize)
	}
	if s.AutoAck && s.CRCLength == CRCDisabled {
		return fmt.Errorf("auto-ack requires CRC to be enabled")
	}
	return nil
}

// ParseDataRate parses "250kbps", "1mbps" or "2mbps".
func ParseDataRate(s string) (DataRate, error) {
	switch strings.ToLower(s) {
	case "250kbps":
		return Rate250Kbps, nil
	case "1mbps":
		return Rate1Mbps, nil
	case "2mbps":
		return Rate2Mbps, nil
	}
	return 0, fmt.Errorf("unknown data rate %q (use 250kbps, 1mbps or 2mbps)", s)
}

// ParseCRCLength parses "disabled", "8bit" or "16bit".
func ParseCRCLength(s string) (CRCLength, error) {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return CRCDisabled, nil
	case "8bit":
		return CRC8, nil
	case "16bit":
		return CRC16, nil
	}
	return 0, fmt.Errorf("unknown CRC length %q (use disabled, 8bit or 16bit)", s)
}

// ParsePALevel parses "min", "low", "high" or "max".
func ParsePALevel(s string) (PALevel, error) {
	switch strings.ToLower(s) {
	case "min":
		return PAMin, nil
	case "low":
		return PALow, nil
	case "high":
		return PAHigh, nil
	case "max":
		return PAMax, nil
	}
	return 0, fmt.Errorf("unknown PA level %q (use min, low, high or max)", s)
}

func (r DataRate) String() string {
	switch r {
	case Rate250Kbps:
		return "250kbps"
	case Rate1Mbps:
		return "1mbps"
	case Rate2Mbps:
		return "2mbps"
	}
	return fmt.Sprintf("DataRate(%d)", uint8(r))
}

func (c CRCLength) String() string {
	switch c {
	case CRCDisabled:
		return "disabled"
	case CRC8:
		return "8bit"
	case CRC16:
		return "16bit"
	}
	return fmt.Sprintf("CRCLength(%d)", uint8(c))
}

func (p PALevel) String() string {
	switch p {
	case PAMin:
		return "min"
	case PALow:
		return "low"
	case PAHigh:
		return "high"
	case PAMax:
		return "max"
	}
	return fmt.Sprintf("PALevel(%d)", uint8(p))
}
