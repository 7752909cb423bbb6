// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"time"

	"github.com/Thermoquad/rfbridge/pkg/pipes"
)

// EventKind classifies bridge activity
type EventKind int

const (
	EventPublished EventKind = iota
	EventSuppressed
	EventCorrupted
	EventPublishError
	EventTransmitted
	EventTransmitFailed
	EventTruncated
	EventWriteReplaced
)

// Event describes one thing the bridge did. Events are delivered to
// Config.OnEvent on the goroutine that caused them.
type Event struct {
	Time    time.Time
	Kind    EventKind
	Pipe    uint8
	Address pipes.Address
	Topic   string
	Payload string
	Raw     []byte
	Err     error
}

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventPublished:
		return "PUBLISHED"
	case EventSuppressed:
		return "CONFIRMED"
	case EventCorrupted:
		return "CORRUPTED"
	case EventPublishError:
		return "PUBLISH_ERROR"
	case EventTransmitted:
		return "TRANSMITTED"
	case EventTransmitFailed:
		return "TRANSMIT_FAILED"
	case EventTruncated:
		return "TRUNCATED"
	case EventWriteReplaced:
		return "WRITE_REPLACED"
	}
	return "UNKNOWN"
}

// IsError reports whether the event records a recovered failure
func (k EventKind) IsError() bool {
	switch k {
	case EventCorrupted, EventPublishError, EventTransmitFailed:
		return true
	}
	return false
}
