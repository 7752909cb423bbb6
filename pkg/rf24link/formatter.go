// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// FormatPacket renders a packet on one line for debug logs
func FormatPacket(p *Packet) string {
	result := fmt.Sprintf("[%s] %s (0x%02X) seq=%d",
		p.timestamp.Format("15:04:05.000"), FormatMessageType(p.Type()), p.Type(), p.seq)
	if err := p.ParseError(); err != nil {
		return result + " parse error: " + err.Error()
	}
	if body := FormatPayloadMap(p.Type(), p.PayloadMap()); body != "" {
		result += " " + body
	}
	return result
}

// FormatMessageType returns the name of a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgBegin:
		return "BEGIN"
	case MsgConfigure:
		return "CONFIGURE"
	case MsgOpenWritingPipe:
		return "OPEN_WRITING_PIPE"
	case MsgOpenReadingPipe:
		return "OPEN_READING_PIPE"
	case MsgStartListening:
		return "START_LISTENING"
	case MsgStopListening:
		return "STOP_LISTENING"
	case MsgAvailable:
		return "AVAILABLE"
	case MsgRead:
		return "READ"
	case MsgWrite:
		return "WRITE"
	case MsgPowerDown:
		return "POWER_DOWN"
	case MsgSetPin:
		return "SET_PIN"
	case MsgPing:
		return "PING"
	case MsgResult:
		return "RESULT"
	case MsgAvailableData:
		return "AVAILABLE_DATA"
	case MsgFrameData:
		return "FRAME_DATA"
	case MsgPong:
		return "PONG"
	case MsgError:
		return "ERROR"
	}
	return fmt.Sprintf("UNKNOWN_0x%02X", msgType)
}

// String returns the name of a result code
func (c ResultCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeTransmitFailed:
		return "TRANSMIT_FAILED"
	case CodeInvalidArg:
		return "INVALID_ARGUMENT"
	case CodeHardware:
		return "HARDWARE"
	case CodeInvalidState:
		return "INVALID_STATE"
	case CodeNoData:
		return "NO_DATA"
	case CodeUnknownCommand:
		return "UNKNOWN_COMMAND"
	}
	return fmt.Sprintf("CODE_0x%02X", uint8(c))
}

// FormatPayloadMap renders the payload of a known message type
func FormatPayloadMap(msgType uint8, m map[int]interface{}) string {
	switch msgType {
	case MsgResult, MsgError:
		p := NewPacket(0, msgType, m)
		return "code=" + p.Code().String()
	case MsgAvailableData:
		available, _ := GetMapBool(m, keyAvailable)
		pipe, _ := GetMapUint(m, keyPipe)
		return fmt.Sprintf("available=%t pipe=%d", available, pipe)
	case MsgFrameData, MsgWrite, MsgOpenWritingPipe:
		data, _ := GetMapBytes(m, 0)
		return fmt.Sprintf("data=%s (%d bytes)", hex.EncodeToString(data), len(data))
	case MsgOpenReadingPipe:
		index, _ := GetMapUint(m, 0)
		addr, _ := GetMapBytes(m, 1)
		return fmt.Sprintf("pipe=%d address=%s", index, hex.EncodeToString(addr))
	case MsgPong:
		uptime, _ := GetMapUint(m, keyUptime)
		return fmt.Sprintf("uptime=%dms", uptime)
	case MsgConfigure:
		s := SettingsFromConfigure(m)
		return fmt.Sprintf("channel=%d rate=%s crc=%s pa=%s auto_ack=%t retries=%d/%d size=%d",
			s.Channel, s.DataRate, s.CRCLength, s.PALevel, s.AutoAck, s.RetryDelay, s.RetryCount, s.PayloadSize)
	}
	return formatGeneric(m)
}

func formatGeneric(m map[int]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
