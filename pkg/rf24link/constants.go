// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rf24link drives an nRF24 transceiver that sits behind a serial
// coprocessor.
//
// The host sends framed request packets and the coprocessor answers each one
// with a response carrying the same sequence number. Frames use byte
// stuffing and a CRC-16-CCITT trailer:
//
//	0x7E | stuffed(length | seq | cbor | crc16) | 0x7F
//
// The CBOR body is a two element array [msg_type, payload_map].
package rf24link

// Framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits. A WRITE carrying a full 32 byte frame plus the pipe
// configuration keys fits with room to spare.
const (
	MaxPayloadSize = 96
	headerSize     = 2 // length + seq
	crcSize        = 2
	MaxPacketSize  = headerSize + MaxPayloadSize + crcSize
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Requests (host -> coprocessor) 0x10-0x2F
const (
	MsgBegin           = 0x10
	MsgConfigure       = 0x11
	MsgOpenWritingPipe = 0x12
	MsgOpenReadingPipe = 0x13
	MsgStartListening  = 0x14
	MsgStopListening   = 0x15
	MsgAvailable       = 0x16
	MsgRead            = 0x17
	MsgWrite           = 0x18
	MsgPowerDown       = 0x19
	MsgSetPin          = 0x1A
	MsgPing            = 0x2F
)

// Responses (coprocessor -> host) 0x30-0x3F
const (
	MsgResult        = 0x30
	MsgAvailableData = 0x31
	MsgFrameData     = 0x32
	MsgPong          = 0x3F
)

// MsgError answers a request the coprocessor could not parse
const MsgError = 0xE0

// Payload keys
const (
	keyOK   = 0
	keyCode = 1

	keyAvailable = 0
	keyPipe      = 1

	keyData = 0

	keyUptime = 0
)

// ResultCode is reported by the coprocessor in RESULT and ERROR responses
type ResultCode uint8

// Result code values
const (
	CodeOK             ResultCode = 0x00
	CodeTransmitFailed ResultCode = 0x01 // no acknowledgement after retries
	CodeInvalidArg     ResultCode = 0x02
	CodeHardware       ResultCode = 0x03 // transceiver not responding
	CodeInvalidState   ResultCode = 0x04 // e.g. WRITE while listening
	CodeNoData         ResultCode = 0x05
	CodeUnknownCommand ResultCode = 0x06
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateSeq
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
