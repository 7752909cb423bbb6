// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// padded returns s as a zero-padded radio frame of MaxPayloadSize bytes
func padded(s string) []byte {
	return Pad([]byte(s), MaxPayloadSize)
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		raw         []byte
		base        string
		wantTopic   string
		wantPayload string
		wantConfirm bool
	}{
		{
			name:        "plain payload uses base topic",
			raw:         padded("21.5"),
			base:        "sensors/",
			wantTopic:   "sensors/",
			wantPayload: "21.5",
		},
		{
			name:        "subtopic prefix",
			raw:         padded("[kitchen] on"),
			base:        "sensors/",
			wantTopic:   "sensors/kitchen",
			wantPayload: "on",
		},
		{
			name:        "only first separator is consumed",
			raw:         padded("[a] b] c] d"),
			base:        "t/",
			wantTopic:   "t/a",
			wantPayload: "b] c] d",
		},
		{
			name:        "nested subtopic path",
			raw:         padded("[room/1] off"),
			base:        "home/",
			wantTopic:   "home/room/1",
			wantPayload: "off",
		},
		{
			name:        "empty payload after separator",
			raw:         padded("[door] "),
			base:        "s/",
			wantTopic:   "s/door",
			wantPayload: "",
		},
		{
			name:        "bracket without separator is not routed",
			raw:         padded("[door]open"),
			base:        "s/",
			wantTopic:   "s/",
			wantPayload: "[door]open",
		},
		{
			name:        "short confirmation",
			raw:         padded("[c]"),
			base:        "s/",
			wantTopic:   "s/",
			wantConfirm: true,
		},
		{
			name:        "long confirmation with trailing text",
			raw:         padded("[confirm] 42"),
			base:        "s/",
			wantTopic:   "s/",
			wantConfirm: true,
		},
		{
			name:        "unpadded frame",
			raw:         []byte("hello"),
			base:        "x",
			wantTopic:   "x",
			wantPayload: "hello",
		},
		{
			name:        "empty frame",
			raw:         make([]byte, MaxPayloadSize),
			base:        "x/",
			wantTopic:   "x/",
			wantPayload: "",
		},
		{
			name:        "garbage after padding is ignored",
			raw:         append([]byte("ok\x00"), 0xFF, 0xFE),
			base:        "x/",
			wantTopic:   "x/",
			wantPayload: "ok",
		},
		{
			name:        "multi-byte text",
			raw:         padded("[küche] 20°C"),
			base:        "h/",
			wantTopic:   "h/küche",
			wantPayload: "20°C",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.raw, tt.base)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if msg.Confirmation != tt.wantConfirm {
				t.Errorf("Confirmation = %v, want %v", msg.Confirmation, tt.wantConfirm)
			}
			if msg.Topic != tt.wantTopic {
				t.Errorf("Topic = %q, want %q", msg.Topic, tt.wantTopic)
			}
			if !tt.wantConfirm && msg.Payload != tt.wantPayload {
				t.Errorf("Payload = %q, want %q", msg.Payload, tt.wantPayload)
			}
		})
	}
}

func TestDecode_Corrupted(t *testing.T) {
	raw := Pad([]byte{'o', 'k', 0xC3, 0x28}, MaxPayloadSize)

	msg, err := Decode(raw, "s/")
	if err == nil {
		t.Fatalf("expected error, got message %+v", msg)
	}

	var corrupted *CorruptedError
	if !errors.As(err, &corrupted) {
		t.Fatalf("expected *CorruptedError, got %T", err)
	}
	if corrupted.Offset != 2 {
		t.Errorf("Offset = %d, want 2", corrupted.Offset)
	}
	if !bytes.Equal(corrupted.Raw, raw) {
		t.Errorf("Raw = %x, want %x", corrupted.Raw, raw)
	}
	if !strings.Contains(err.Error(), "6f6bc328") {
		t.Errorf("error message should carry raw hex, got %q", err.Error())
	}
}

func TestDecode_CorruptedRawIsCopied(t *testing.T) {
	raw := []byte{0xFF, 0x00}

	_, err := Decode(raw, "s/")
	var corrupted *CorruptedError
	if !errors.As(err, &corrupted) {
		t.Fatalf("expected *CorruptedError, got %v", err)
	}

	raw[0] = 'a'
	if corrupted.Raw[0] != 0xFF {
		t.Error("CorruptedError.Raw must not alias the caller's buffer")
	}
}

func TestDecode_ConfirmationIsIdempotent(t *testing.T) {
	raw := padded("[c]")
	for i := 0; i < 2; i++ {
		msg, err := Decode(raw, "s/")
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !msg.Confirmation {
			t.Fatalf("decode %d: expected confirmation", i)
		}
	}
}

func TestIsConfirmation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"[c]", true},
		{"[confirm]", true},
		{"[c] extra", true},
		{"[conf]", false},
		{"[C]", false},
		{"c", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsConfirmation(tt.text); got != tt.want {
			t.Errorf("IsConfirmation(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncode(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		maxSize       int
		want          []byte
		wantTruncated bool
	}{
		{
			name:    "short text unchanged",
			text:    "on",
			maxSize: 32,
			want:    []byte("on"),
		},
		{
			name:    "exactly max size",
			text:    strings.Repeat("a", 32),
			maxSize: 32,
			want:    []byte(strings.Repeat("a", 32)),
		},
		{
			name:          "40 characters truncated to 32 bytes",
			text:          "0123456789012345678901234567890123456789",
			maxSize:       32,
			want:          []byte("01234567890123456789012345678901"),
			wantTruncated: true,
		},
		{
			name:          "smaller configured payload",
			text:          "abcdefgh",
			maxSize:       4,
			want:          []byte("abcd"),
			wantTruncated: true,
		},
		{
			name:          "multi-byte rune split at boundary",
			text:          "ab€",
			maxSize:       3,
			want:          []byte{'a', 'b', 0xE2},
			wantTruncated: true,
		},
		{
			name:          "invalid max size falls back to radio limit",
			text:          strings.Repeat("z", 40),
			maxSize:       0,
			want:          []byte(strings.Repeat("z", 32)),
			wantTruncated: true,
		},
		{
			name:    "empty text",
			text:    "",
			maxSize: 32,
			want:    []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Encode(tt.text, tt.maxSize)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
			if truncated != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.wantTruncated)
			}
		})
	}
}

func TestPad(t *testing.T) {
	got := Pad([]byte("ab"), 4)
	if !bytes.Equal(got, []byte{'a', 'b', 0, 0}) {
		t.Errorf("Pad() = %v", got)
	}

	long := []byte("abcdef")
	if got := Pad(long, 4); !bytes.Equal(got, long) {
		t.Errorf("Pad() should not shrink, got %v", got)
	}
}

// ============================================================
// Round Trip
// ============================================================

func TestRoundTrip_PlainPayload(t *testing.T) {
	payloads := []string{"on", "21.5", "hello world", strings.Repeat("x", 32), "ümlaut"}

	for _, payload := range payloads {
		raw := padded(payload)
		msg, err := Decode(raw, "base/")
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", payload, err)
		}

		encoded, _ := Encode(msg.Payload, MaxPayloadSize)
		prefix := raw[:bytes.IndexByte(append(raw, 0), 0)]
		if !bytes.Equal(encoded, prefix) {
			t.Errorf("round trip %q: got %q, want %q", payload, encoded, prefix)
		}
	}
}
