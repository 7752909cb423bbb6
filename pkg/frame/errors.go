// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// CorruptedError reports a frame whose content is not valid text.
type CorruptedError struct {
	// Raw is the complete frame as received, padding included
	Raw []byte
	// Offset is the position of the first invalid byte
	Offset int
}

func newCorruptedError(raw, data []byte) *CorruptedError {
	offset := 0
	for offset < len(data) {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		offset += size
	}

	rawCopy := make([]byte, len(raw))
	copy(rawCopy, raw)
	return &CorruptedError{Raw: rawCopy, Offset: offset}
}

// Error implements the error interface
func (e *CorruptedError) Error() string {
	return fmt.Sprintf("corrupted frame: invalid UTF-8 at byte %d (raw %s)", e.Offset, hex.EncodeToString(e.Raw))
}
