// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of the bridge statistics
type Counters struct {
	StartTime time.Time

	// Inbound
	Frames           uint64
	Published        uint64
	Confirmations    uint64
	Corrupted        uint64
	PublishErrors    uint64
	DeliveryFailures uint64

	// Outbound
	Writes           uint64
	Transmitted      uint64
	TransmitFailures uint64
	Truncated        uint64
	ReplacedWrites   uint64

	// Link errors recovered by the loop
	LinkErrors uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Errors returns the total of all recovered error conditions
func (c Counters) Errors() uint64 {
	return c.Corrupted + c.PublishErrors + c.DeliveryFailures + c.TransmitFailures + c.LinkErrors
}

// Statistics tracks bridge traffic and error rates. It is safe for
// concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now()}}
}

func (s *Statistics) add(f func(c *Counters)) {
	s.mu.Lock()
	f(&s.c)
	s.mu.Unlock()
}

// RecordDeliveryFailure counts a publish the broker never acknowledged
func (s *Statistics) RecordDeliveryFailure() {
	s.add(func(c *Counters) { c.DeliveryFailures++ })
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	c := s.c
	s.mu.Unlock()

	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.FrameRate = float64(c.Frames) / elapsed
		c.ErrorRate = float64(c.Errors()) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()

	var publishedPercent, corruptedPercent float64
	if c.Frames > 0 {
		publishedPercent = float64(c.Published) * 100.0 / float64(c.Frames)
		corruptedPercent = float64(c.Corrupted) * 100.0 / float64(c.Frames)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Received: %8d\n", c.Frames)
	result += fmt.Sprintf("Published:       %8d (%.1f%%)\n", c.Published, publishedPercent)
	result += fmt.Sprintf("Confirmations:   %8d\n", c.Confirmations)

	if c.Corrupted > 0 {
		result += fmt.Sprintf("Corrupted:       %8d (%.1f%%)\n", c.Corrupted, corruptedPercent)
	}
	if c.PublishErrors > 0 || c.DeliveryFailures > 0 {
		result += fmt.Sprintf("Publish Errors:  %8d\n", c.PublishErrors)
		result += fmt.Sprintf("  Unacknowledged:   %5d\n", c.DeliveryFailures)
	}

	result += fmt.Sprintf("Writes:          %8d\n", c.Writes)
	result += fmt.Sprintf("Transmitted:     %8d\n", c.Transmitted)
	if c.TransmitFailures > 0 {
		result += fmt.Sprintf("Transmit Failed: %8d\n", c.TransmitFailures)
	}
	if c.Truncated > 0 {
		result += fmt.Sprintf("  Truncated:        %5d\n", c.Truncated)
	}
	if c.ReplacedWrites > 0 {
		result += fmt.Sprintf("  Replaced:         %5d\n", c.ReplacedWrites)
	}
	if c.LinkErrors > 0 {
		result += fmt.Sprintf("Link Errors:     %8d\n", c.LinkErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	s.c = Counters{StartTime: time.Now()}
	s.mu.Unlock()
}
