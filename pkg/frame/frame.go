// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package frame implements the text convention carried inside fixed-size
// radio payloads.
//
// A radio frame is a zero-padded UTF-8 string. A frame beginning with a
// bracketed segment routes its payload to a subtopic of the receiving pipe's
// base topic:
//
//	[kitchen] on      -> topic base+"kitchen", payload "on"
//	[c] / [confirm]   -> confirmation, never published
//	21.5              -> topic base, payload "21.5"
package frame

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// MaxPayloadSize is the largest frame an nRF24 transceiver carries.
const MaxPayloadSize = 32

// Topic-prefix convention markers
const (
	prefixOpen   = "["
	prefixSplit  = "] "
	confirmShort = "[c]"
	confirmLong  = "[confirm]"
)

// Message is the result of decoding a radio frame.
type Message struct {
	Topic        string
	Payload      string
	Confirmation bool
}

// Decode interprets a raw radio frame received on a pipe whose topic is
// baseTopic. It returns a *CorruptedError when the bytes before the zero
// padding are not valid UTF-8.
func Decode(raw []byte, baseTopic string) (Message, error) {
	data := raw
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}

	if !utf8.Valid(data) {
		return Message{}, newCorruptedError(raw, data)
	}
	text := string(data)

	if !strings.HasPrefix(text, prefixOpen) {
		return Message{Topic: baseTopic, Payload: text}, nil
	}

	if IsConfirmation(text) {
		return Message{Topic: baseTopic, Confirmation: true}, nil
	}

	// Only the first separator routes; later "] " belong to the payload.
	segment, payload, found := strings.Cut(text, prefixSplit)
	if !found {
		return Message{Topic: baseTopic, Payload: text}, nil
	}

	subtopic := strings.ReplaceAll(segment, prefixOpen, "")
	return Message{Topic: baseTopic + subtopic, Payload: payload}, nil
}

// IsConfirmation reports whether text starts with a confirmation marker.
func IsConfirmation(text string) bool {
	return strings.HasPrefix(text, confirmShort) || strings.HasPrefix(text, confirmLong)
}

// Encode converts text to a radio frame of at most maxSize bytes.
//
// Truncation is byte-level and may split a multi-byte rune. The second return
// value reports whether any bytes were cut so the caller can log it.
func Encode(text string, maxSize int) ([]byte, bool) {
	if maxSize <= 0 || maxSize > MaxPayloadSize {
		maxSize = MaxPayloadSize
	}

	data := []byte(text)
	if len(data) <= maxSize {
		return data, false
	}

	out := make([]byte, maxSize)
	copy(out, data)
	return out, true
}

// Pad returns frame extended with zero bytes to size. Frames longer than
// size are returned unchanged.
func Pad(frame []byte, size int) []byte {
	if len(frame) >= size {
		return frame
	}
	out := make([]byte, size)
	copy(out, frame)
	return out
}
