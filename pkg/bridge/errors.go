// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation is returned when the radio reports a frame on a pipe
// that is not a configured reading pipe. The loop stops on it.
var ErrProtocolViolation = errors.New("radio protocol violation")

// HardwareInitError reports a transceiver operation that failed during
// Initialize.
type HardwareInitError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *HardwareInitError) Error() string {
	return fmt.Sprintf("radio initialisation failed at %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *HardwareInitError) Unwrap() error {
	return e.Err
}
