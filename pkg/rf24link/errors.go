// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/rfbridge/pkg/radio"
)

var (
	// ErrLinkClosed is returned once the underlying connection is gone.
	// It matches radio.ErrClosed.
	ErrLinkClosed = fmt.Errorf("link closed: %w", radio.ErrClosed)

	// ErrTimeout is returned when a request gets no response in time
	ErrTimeout = errors.New("link response timeout")

	// ErrUnexpectedResponse is returned for a response of the wrong type
	ErrUnexpectedResponse = errors.New("unexpected link response")
)

// RemoteError is a request the coprocessor rejected.
type RemoteError struct {
	Op   string
	Code ResultCode
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s rejected by coprocessor: %s", e.Op, e.Code)
}

// Unwrap maps a missing acknowledgement to radio.ErrTransmitFailed
func (e *RemoteError) Unwrap() error {
	if e.Code == CodeTransmitFailed {
		return radio.ErrTransmitFailed
	}
	return nil
}
