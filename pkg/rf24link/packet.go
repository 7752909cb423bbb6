// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import "time"

// Packet is one link message, either decoded from the wire or built for
// sending.
type Packet struct {
	length      uint8
	seq         uint8
	cborPayload []byte
	crc         uint16
	timestamp   time.Time

	// parsed lazily from cborPayload
	msgType    uint8
	payloadMap map[int]interface{}
	parsed     bool
	parseErr   error
}

// NewPacket builds a packet from its message type and payload map.
func NewPacket(seq uint8, msgType uint8, payload map[int]interface{}) *Packet {
	return &Packet{
		seq:        seq,
		msgType:    msgType,
		payloadMap: payload,
		parsed:     true,
		timestamp:  time.Now(),
	}
}

func (p *Packet) ensureParsed() {
	if p.parsed {
		return
	}
	p.parsed = true
	p.msgType, p.payloadMap, p.parseErr = ParseMessage(p.cborPayload)
}

// Seq returns the sequence number that pairs a response with its request
func (p *Packet) Seq() uint8 {
	return p.seq
}

// Type returns the message type
func (p *Packet) Type() uint8 {
	p.ensureParsed()
	return p.msgType
}

// PayloadMap returns the decoded payload (nil for empty payloads)
func (p *Packet) PayloadMap() map[int]interface{} {
	p.ensureParsed()
	return p.payloadMap
}

// ParseError returns the error from decoding the CBOR body, if any
func (p *Packet) ParseError() error {
	p.ensureParsed()
	return p.parseErr
}

// Payload returns the raw CBOR body of a decoded packet
func (p *Packet) Payload() []byte {
	return p.cborPayload
}

// CRC returns the checksum received with the packet
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns when the packet was built or decoded
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// Code returns the result code of a RESULT or ERROR response
func (p *Packet) Code() ResultCode {
	code, _ := GetMapUint(p.PayloadMap(), keyCode)
	if p.Type() == MsgError {
		code, _ = GetMapUint(p.PayloadMap(), 0)
	}
	return ResultCode(code)
}
