// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is returned when a packet's checksum does not match its
// contents
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder reassembles packets from a byte stream one byte at a time.
type Decoder struct {
	state      int
	buffer     [MaxPacketSize]byte
	index      int
	length     int
	escapeNext bool
	crc        uint16
	raw        []byte
}

// NewDecoder creates a new link decoder
func NewDecoder() *Decoder {
	return &Decoder{raw: make([]byte, 0, MaxPacketSize*2)}
}

// Reset drops any partial packet
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.index = 0
	d.length = 0
	d.escapeNext = false
	d.crc = 0
	d.raw = d.raw[:0]
}

// RawBytes returns the wire bytes of the packet in progress, framing
// included
func (d *Decoder) RawBytes() []byte {
	return d.raw
}

// DecodeByte feeds one byte into the decoder. It returns a packet once the
// END byte of a valid frame arrives, nil while a frame is incomplete, and an
// error when the frame in progress is rejected. Bytes outside a frame are
// ignored.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	if b == StartByte {
		d.Reset()
		d.raw = append(d.raw, b)
		d.state = stateLength
		return nil, nil
	}
	if d.state == stateIdle {
		return nil, nil
	}

	d.raw = append(d.raw, b)

	if b == EndByte {
		return d.finish()
	}
	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength:
		if b == 0 || b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.length = int(b)
		d.store(b)
		d.state = stateSeq

	case stateSeq:
		d.store(b)
		d.state = statePayload

	case statePayload:
		d.store(b)
		if d.index-headerSize >= d.length {
			d.state = stateCRC1
		}

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("expected END byte after CRC, got 0x%02X", b)
	}
	return nil, nil
}

func (d *Decoder) store(b byte) {
	d.buffer[d.index] = b
	d.index++
}

func (d *Decoder) finish() (*Packet, error) {
	state := d.state
	if state != stateEnd {
		d.Reset()
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	calculated := CalculateCRC(d.buffer[:d.index])
	if calculated != d.crc {
		received := d.crc
		d.Reset()
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, received)
	}

	body := make([]byte, d.length)
	copy(body, d.buffer[headerSize:d.index])
	p := &Packet{
		length:      uint8(d.length),
		seq:         d.buffer[1],
		cborPayload: body,
		crc:         d.crc,
		timestamp:   time.Now(),
	}
	d.Reset()
	return p, nil
}
