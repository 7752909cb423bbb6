// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import "github.com/Thermoquad/rfbridge/pkg/radio"

// Request builders. The sequence number is left at zero; Client assigns it
// when the request is sent.

// Configure payload keys
const (
	keyChannel         = 0
	keyDataRate        = 1
	keyCRCLength       = 2
	keyPALevel         = 3
	keyAutoAck         = 4
	keyDynamicPayloads = 5
	keyRetryDelay      = 6
	keyRetryCount      = 7
	keyPayloadSize     = 8
)

// NewBegin creates a BEGIN request (0x10) that powers the transceiver up
// on the given chip-enable and chip-select pins.
func NewBegin(cePin, csnPin uint8) *Packet {
	return NewPacket(0, MsgBegin, map[int]interface{}{
		0: uint64(cePin),
		1: uint64(csnPin),
	})
}

// NewConfigure creates a CONFIGURE request (0x11).
func NewConfigure(s radio.Settings) *Packet {
	return NewPacket(0, MsgConfigure, map[int]interface{}{
		keyChannel:         uint64(s.Channel),
		keyDataRate:        uint64(s.DataRate),
		keyCRCLength:       uint64(s.CRCLength),
		keyPALevel:         uint64(s.PALevel),
		keyAutoAck:         s.AutoAck,
		keyDynamicPayloads: s.DynamicPayloads,
		keyRetryDelay:      uint64(s.RetryDelay),
		keyRetryCount:      uint64(s.RetryCount),
		keyPayloadSize:     uint64(s.PayloadSize),
	})
}

// SettingsFromConfigure recovers radio settings from a CONFIGURE payload.
func SettingsFromConfigure(m map[int]interface{}) radio.Settings {
	get := func(key int) uint8 {
		v, _ := GetMapUint(m, key)
		return uint8(v)
	}
	autoAck, _ := GetMapBool(m, keyAutoAck)
	dynamic, _ := GetMapBool(m, keyDynamicPayloads)
	return radio.Settings{
		Channel:         get(keyChannel),
		DataRate:        radio.DataRate(get(keyDataRate)),
		CRCLength:       radio.CRCLength(get(keyCRCLength)),
		PALevel:         radio.PALevel(get(keyPALevel)),
		AutoAck:         autoAck,
		DynamicPayloads: dynamic,
		RetryDelay:      get(keyRetryDelay),
		RetryCount:      get(keyRetryCount),
		PayloadSize:     get(keyPayloadSize),
	}
}

// NewOpenWritingPipe creates an OPEN_WRITING_PIPE request (0x12).
func NewOpenWritingPipe(address []byte) *Packet {
	return NewPacket(0, MsgOpenWritingPipe, map[int]interface{}{
		0: address,
	})
}

// NewOpenReadingPipe creates an OPEN_READING_PIPE request (0x13).
func NewOpenReadingPipe(index uint8, address []byte) *Packet {
	return NewPacket(0, MsgOpenReadingPipe, map[int]interface{}{
		0: uint64(index),
		1: address,
	})
}

// NewStartListening creates a START_LISTENING request (0x14).
func NewStartListening() *Packet {
	return NewPacket(0, MsgStartListening, nil)
}

// NewStopListening creates a STOP_LISTENING request (0x15).
func NewStopListening() *Packet {
	return NewPacket(0, MsgStopListening, nil)
}

// NewAvailable creates an AVAILABLE request (0x16). The coprocessor answers
// with AVAILABLE_DATA.
func NewAvailable() *Packet {
	return NewPacket(0, MsgAvailable, nil)
}

// NewRead creates a READ request (0x17) for size bytes of the oldest
// received frame. The coprocessor answers with FRAME_DATA.
func NewRead(size int) *Packet {
	return NewPacket(0, MsgRead, map[int]interface{}{
		0: uint64(size),
	})
}

// NewWrite creates a WRITE request (0x18). The coprocessor answers once the
// transceiver reports the transmission outcome.
func NewWrite(data []byte) *Packet {
	return NewPacket(0, MsgWrite, map[int]interface{}{
		0: data,
	})
}

// NewPowerDown creates a POWER_DOWN request (0x19).
func NewPowerDown() *Packet {
	return NewPacket(0, MsgPowerDown, nil)
}

// NewSetPin creates a SET_PIN request (0x1A) driving a coprocessor GPIO.
func NewSetPin(pin uint8, high bool) *Packet {
	return NewPacket(0, MsgSetPin, map[int]interface{}{
		0: uint64(pin),
		1: high,
	})
}

// NewPing creates a PING request (0x2F). The coprocessor answers with PONG
// containing its uptime.
func NewPing() *Packet {
	return NewPacket(0, MsgPing, nil)
}

// Response builders, used by the simulator.

// NewResult creates a RESULT response (0x30).
func NewResult(seq uint8, code ResultCode) *Packet {
	return NewPacket(seq, MsgResult, map[int]interface{}{
		keyOK:   code == CodeOK,
		keyCode: uint64(code),
	})
}

// NewAvailableData creates an AVAILABLE_DATA response (0x31).
func NewAvailableData(seq uint8, available bool, pipe uint8) *Packet {
	return NewPacket(seq, MsgAvailableData, map[int]interface{}{
		keyAvailable: available,
		keyPipe:      uint64(pipe),
	})
}

// NewFrameData creates a FRAME_DATA response (0x32).
func NewFrameData(seq uint8, data []byte) *Packet {
	return NewPacket(seq, MsgFrameData, map[int]interface{}{
		keyData: data,
	})
}

// NewPong creates a PONG response (0x3F).
func NewPong(seq uint8, uptimeMs uint64) *Packet {
	return NewPacket(seq, MsgPong, map[int]interface{}{
		keyUptime: uptimeMs,
	})
}

// NewError creates an ERROR response (0xE0).
func NewError(seq uint8, code ResultCode) *Packet {
	return NewPacket(seq, MsgError, map[int]interface{}{
		0: uint64(code),
	})
}
