// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import "testing"

func TestDefaultSettingsValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"channel too high", func(s *Settings) { s.Channel = 126 }},
		{"bad data rate", func(s *Settings) { s.DataRate = 9 }},
		{"bad crc", func(s *Settings) { s.CRCLength = 3 }},
		{"bad pa level", func(s *Settings) { s.PALevel = 4 }},
		{"retry delay", func(s *Settings) { s.RetryDelay = 16 }},
		{"retry count", func(s *Settings) { s.RetryCount = 16 }},
		{"payload zero", func(s *Settings) { s.PayloadSize = 0 }},
		{"payload too big", func(s *Settings) { s.PayloadSize = 33 }},
		{"auto-ack without crc", func(s *Settings) { s.CRCLength = CRCDisabled }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	for _, name := range []string{"250kbps", "1MBPS", "2mbps"} {
		r, err := ParseDataRate(name)
		if err != nil {
			t.Errorf("ParseDataRate(%q) error = %v", name, err)
			continue
		}
		if got, _ := ParseDataRate(r.String()); got != r {
			t.Errorf("DataRate %v does not round trip", r)
		}
	}
	if _, err := ParseDataRate("3mbps"); err == nil {
		t.Error("expected error for 3mbps")
	}

	for _, name := range []string{"disabled", "8bit", "16bit"} {
		c, err := ParseCRCLength(name)
		if err != nil || c.String() != name {
			t.Errorf("ParseCRCLength(%q) = %v, %v", name, c, err)
		}
	}
	if _, err := ParseCRCLength("32bit"); err == nil {
		t.Error("expected error for 32bit")
	}

	for _, name := range []string{"min", "low", "high", "max"} {
		p, err := ParsePALevel(name)
		if err != nil || p.String() != name {
			t.Errorf("ParsePALevel(%q) = %v, %v", name, p, err)
		}
	}
	if _, err := ParsePALevel("ultra"); err == nil {
		t.Error("expected error for ultra")
	}
}
