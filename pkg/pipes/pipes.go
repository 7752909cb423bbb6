// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pipes holds the static mapping between radio pipes, their
// hardware addresses and the bus topics they are bridged to.
package pipes

import (
	"encoding/hex"
	"fmt"
	"sort"
)

// Pipe limits of the nRF24L01
const (
	WritingIndex    = 0
	MaxReadingPipes = 5
	MinAddressWidth = 3
	MaxAddressWidth = 5
)

// Address is a radio pipe address, 3 to 5 bytes wide.
type Address []byte

// String returns the address as text when printable, hex otherwise.
func (a Address) String() string {
	for _, b := range a {
		if b < 0x20 || b > 0x7E {
			return "0x" + hex.EncodeToString(a)
		}
	}
	return string(a)
}

// PipeConfig describes one logical pipe.
type PipeConfig struct {
	Index   uint8
	Address Address
	Topic   string
	// Signal pulses the indicator on activity
	Signal bool
}

// Table resolves pipe indices to their configuration. It is never modified
// after NewTable returns.
type Table struct {
	writing PipeConfig
	reading map[uint8]PipeConfig
	ordered []PipeConfig
}

// NewTable validates the pipe layout and builds a Table.
func NewTable(writing PipeConfig, reading []PipeConfig) (*Table, error) {
	if writing.Index != WritingIndex {
		return nil, &ConfigError{Index: writing.Index, Reason: "writing pipe must use index 0"}
	}
	if writing.Topic == "" {
		return nil, &ConfigError{Index: writing.Index, Reason: "writing pipe has no topic"}
	}
	if err := checkAddress(writing); err != nil {
		return nil, err
	}

	if len(reading) == 0 {
		return nil, &ConfigError{Reason: "at least one reading pipe must be configured"}
	}
	if len(reading) > MaxReadingPipes {
		return nil, &ConfigError{Reason: fmt.Sprintf("%d reading pipes configured (max %d)", len(reading), MaxReadingPipes)}
	}

	t := &Table{
		writing: clonePipe(writing),
		reading: make(map[uint8]PipeConfig, len(reading)),
	}

	width := len(writing.Address)
	seen := map[string]uint8{string(writing.Address): writing.Index}

	for _, p := range reading {
		if p.Index < 1 || p.Index > MaxReadingPipes {
			return nil, &ConfigError{Index: p.Index, Reason: fmt.Sprintf("reading pipe index out of range 1..%d", MaxReadingPipes)}
		}
		if _, dup := t.reading[p.Index]; dup {
			return nil, &ConfigError{Index: p.Index, Reason: "duplicate reading pipe index"}
		}
		if p.Topic == "" {
			return nil, &ConfigError{Index: p.Index, Reason: "reading pipe has no topic"}
		}
		if err := checkAddress(p); err != nil {
			return nil, err
		}
		if len(p.Address) != width {
			return nil, &ConfigError{Index: p.Index, Reason: fmt.Sprintf("address width %d differs from writing pipe width %d", len(p.Address), width)}
		}
		if other, ok := seen[string(p.Address)]; ok {
			return nil, &ConfigError{Index: p.Index, Reason: fmt.Sprintf("address %s collides with pipe %d", p.Address, other)}
		}
		seen[string(p.Address)] = p.Index
		t.reading[p.Index] = clonePipe(p)
	}

	// Indices must be contiguous from 1 so every opened pipe resolves.
	for i := uint8(1); i <= uint8(len(reading)); i++ {
		if _, ok := t.reading[i]; !ok {
			return nil, &ConfigError{Index: i, Reason: "reading pipe index missing"}
		}
	}

	t.ordered = make([]PipeConfig, 0, len(t.reading))
	for _, p := range t.reading {
		t.ordered = append(t.ordered, p)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Index < t.ordered[j].Index })

	return t, nil
}

// Reading resolves a reading pipe index.
func (t *Table) Reading(index uint8) (PipeConfig, bool) {
	p, ok := t.reading[index]
	return p, ok
}

// Writing returns the writing pipe configuration.
func (t *Table) Writing() PipeConfig {
	return t.writing
}

// ReadingPipes returns all reading pipes ordered by index.
func (t *Table) ReadingPipes() []PipeConfig {
	out := make([]PipeConfig, len(t.ordered))
	copy(out, t.ordered)
	return out
}

func checkAddress(p PipeConfig) error {
	if n := len(p.Address); n < MinAddressWidth || n > MaxAddressWidth {
		return &ConfigError{Index: p.Index, Reason: fmt.Sprintf("address width %d outside %d..%d", n, MinAddressWidth, MaxAddressWidth)}
	}
	return nil
}

func clonePipe(p PipeConfig) PipeConfig {
	addr := make(Address, len(p.Address))
	copy(addr, p.Address)
	p.Address = addr
	return p
}

// ConfigError reports an invalid pipe layout.
type ConfigError struct {
	Index  uint8
	Reason string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipe %d: %s", e.Index, e.Reason)
}
