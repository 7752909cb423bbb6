// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import (
	"errors"
	"fmt"
)

// ErrIncompleteEscape is returned by UnstuffBytes for data ending in ESC
var ErrIncompleteEscape = errors.New("incomplete escape sequence at end of data")

// Encode renders p as wire bytes, framing included.
func Encode(p *Packet) ([]byte, error) {
	body, err := encodeMessage(p.Type(), p.PayloadMap())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", FormatMessageType(p.Type()), err)
	}
	if len(body) > MaxPayloadSize {
		return nil, fmt.Errorf("encode %s: CBOR payload too large: %d bytes (max %d)",
			FormatMessageType(p.Type()), len(body), MaxPayloadSize)
	}

	data := make([]byte, 0, headerSize+len(body)+crcSize)
	data = append(data, uint8(len(body)), p.seq)
	data = append(data, body...)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc))

	wire := make([]byte, 0, len(data)*2+2)
	wire = append(wire, StartByte)
	wire = stuffBytes(wire, data)
	wire = append(wire, EndByte)
	return wire, nil
}

// stuffBytes appends data to dst, escaping the framing bytes.
func stuffBytes(dst, data []byte) []byte {
	for _, b := range data {
		switch b {
		case StartByte, EndByte, EscByte:
			dst = append(dst, EscByte, b^EscXor)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// UnstuffBytes reverses the byte stuffing applied by Encode.
func UnstuffBytes(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	escaped := false
	for _, b := range data {
		switch {
		case escaped:
			out = append(out, b^EscXor)
			escaped = false
		case b == EscByte:
			escaped = true
		default:
			out = append(out, b)
		}
	}
	if escaped {
		return nil, ErrIncompleteEscape
	}
	return out, nil
}
