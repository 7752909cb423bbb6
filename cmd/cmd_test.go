// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rfbridge/pkg/bridge"
	"github.com/Thermoquad/rfbridge/pkg/config"
	"github.com/Thermoquad/rfbridge/pkg/pipes"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{999, "0 seconds"},
		{1000, "1 second"},
		{61000, "1 minute and 1 second"},
		{3600000, "1 hour"},
		{90061000, "1 day, 1 hour, 1 minute, and 1 second"},
		{2 * 86400000, "2 days"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.ms); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"5b6b5d", []byte("[k]"), false},
		{"5B 6B:5D", []byte("[k]"), false},
		{"0x7e7f", []byte{0x7E, 0x7F}, false},
		{"7", nil, true},
		{"zz", nil, true},
	}

	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHex(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("parseHex(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []string
	}{
		{"subtopic", append([]byte("[kitchen] on"), 0, 0, 0), []string{"Topic:   sensors/kitchen", `Payload: "on"`}},
		{"plain", []byte("21.5"), []string{"Topic:   sensors/", `Payload: "21.5"`}},
		{"confirmation", []byte("[c]"), []string{"CONFIRMATION"}},
		{"corrupted", []byte{'o', 'k', 0xFF, 0xFE}, []string{"CORRUPTED: invalid UTF-8 at offset 2", "Raw: 6f6bfffe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := decodeFrame(&out, tt.raw, "sensors/"); err != nil {
				t.Fatalf("decodeFrame() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output %q does not contain %q", out.String(), want)
				}
			}
		})
	}
}

func TestDecodeLinkPackets(t *testing.T) {
	data, err := parseHex("00 7e040082182ff64b227f ff")
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := decodeLinkPackets(&out, data); err != nil {
		t.Fatalf("decodeLinkPackets() error = %v", err)
	}
	if !strings.Contains(out.String(), "PING (0x2F) seq=0") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := decodeLinkPackets(&out, []byte{0x7E, 0x04, 0x00}); err == nil {
		t.Error("expected error for incomplete packet")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewLogHandler(t *testing.T) {
	var out bytes.Buffer
	h, err := newLogHandler(&out, "json", slog.LevelWarn)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(h)
	logger.Info("hidden")
	logger.Warn("shown", "pipe", 1)

	if strings.Contains(out.String(), "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out.String(), `"msg":"shown"`) || !strings.Contains(out.String(), `"pipe":1`) {
		t.Errorf("json output = %q", out.String())
	}

	if _, err := newLogHandler(&out, "xml", slog.LevelInfo); err == nil {
		t.Error("expected error for unknown format")
	}
}

func newLinkFlagCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().StringVarP(&portName, "port", "p", "", "")
	c.Flags().IntVarP(&baudRate, "baud", "b", 115200, "")
	c.Flags().StringVarP(&wsURL, "url", "u", "", "")
	c.Flags().StringVar(&wsUsername, "username", "", "")
	c.Flags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "")
	return c
}

func TestLinkSettings(t *testing.T) {
	configured := config.Link{Port: "/dev/ttyACM0", Baud: 57600, TimeoutMs: 250}

	c := newLinkFlagCommand()
	if got := linkSettings(c, configured); got != configured {
		t.Errorf("no flags: %+v, want %+v", got, configured)
	}

	c = newLinkFlagCommand()
	c.Flags().Set("port", "/dev/ttyUSB1")
	c.Flags().Set("baud", "9600")
	got := linkSettings(c, config.Link{URL: "ws://old", Baud: 57600})
	if got.Port != "/dev/ttyUSB1" || got.Baud != 9600 || got.URL != "" {
		t.Errorf("serial flags: %+v", got)
	}

	c = newLinkFlagCommand()
	c.Flags().Set("url", "wss://radio.local/link")
	c.Flags().Set("username", "admin")
	c.Flags().Set("no-ssl-verify", "true")
	got = linkSettings(c, configured)
	if got.URL != "wss://radio.local/link" || got.Username != "admin" || !got.NoSSLVerify {
		t.Errorf("websocket flags: %+v", got)
	}

	c = newLinkFlagCommand()
	if got := linkSettings(c, config.Link{Port: "/dev/ttyS0"}); got.Baud != 115200 {
		t.Errorf("missing baud not defaulted: %d", got.Baud)
	}
}

func TestOpenConnection_NoLink(t *testing.T) {
	if _, _, err := OpenConnection(config.Link{}); err == nil {
		t.Error("expected error without port or URL")
	}
	if _, _, err := OpenConnection(config.Link{URL: "http://radio.local"}); err == nil {
		t.Error("expected error for http scheme")
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		event bridge.Event
		want  string
	}{
		{bridge.Event{Kind: bridge.EventPublished, Pipe: 1, Topic: "sensors/kitchen", Payload: "on"}, `PUBLISHED pipe 1 -> sensors/kitchen: "on"`},
		{bridge.Event{Kind: bridge.EventSuppressed, Pipe: 2, Address: pipes.Address("3Node")}, "CONFIRMED pipe 2 (3Node)"},
		{bridge.Event{Kind: bridge.EventCorrupted, Pipe: 1, Address: pipes.Address("2Node"), Raw: []byte{0xFF}}, "CORRUPTED pipe 1 (2Node) raw=ff"},
		{bridge.Event{Kind: bridge.EventTransmitted, Pipe: 0, Address: pipes.Address("1Node"), Payload: "lamp=off"}, `TRANSMITTED pipe 0 (1Node) <- "lamp=off"`},
		{bridge.Event{Kind: bridge.EventTransmitFailed, Payload: "x", Err: errors.New("no ack")}, `TRANSMIT_FAILED "x": no ack`},
		{bridge.Event{Kind: bridge.EventWriteReplaced, Payload: "old"}, `WRITE_REPLACED "old"`},
	}

	for _, tt := range tests {
		if got := formatEvent(tt.event); got != tt.want {
			t.Errorf("formatEvent() = %q, want %q", got, tt.want)
		}
	}
}

func testMonitorModel(t *testing.T, submitted *[]string) monitorModel {
	t.Helper()
	table, err := pipes.NewTable(
		pipes.PipeConfig{Index: 0, Address: pipes.Address("1Node"), Topic: "rf/write"},
		[]pipes.PipeConfig{{Index: 1, Address: pipes.Address("2Node"), Topic: "sensors/"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return initialMonitorModel("test", table, bridge.NewStatistics(), func(s string) {
		*submitted = append(*submitted, s)
	})
}

func TestMonitorModel_Submit(t *testing.T) {
	var submitted []string
	m := testMonitorModel(t, &submitted)

	m.input.SetValue("lamp=on")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(monitorModel)

	if len(submitted) != 1 || submitted[0] != "lamp=on" {
		t.Fatalf("submitted = %v", submitted)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
	if len(m.eventLog) != 1 || !strings.Contains(m.eventLog[0].message, "lamp=on") {
		t.Errorf("event log = %+v", m.eventLog)
	}

	// empty input is not sent
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(monitorModel)
	if len(submitted) != 1 {
		t.Errorf("empty input submitted")
	}

	if !strings.Contains(m.View(), "RFBRIDGE - MONITOR") {
		t.Error("view has no title")
	}
}

func TestMonitorModel_Events(t *testing.T) {
	var submitted []string
	m := testMonitorModel(t, &submitted)

	next, _ := m.Update(bridgeEventMsg(bridge.Event{Kind: bridge.EventCorrupted, Pipe: 1, Raw: []byte{0xFF}}))
	m = next.(monitorModel)
	if len(m.eventLog) != 1 || !m.eventLog[0].isError {
		t.Fatalf("event log = %+v", m.eventLog)
	}

	next, _ = m.Update(bridgeStoppedMsg{err: errors.New("link closed")})
	m = next.(monitorModel)
	if m.stopped == nil || !strings.Contains(m.View(), "Bridge stopped") {
		t.Error("stopped bridge not shown")
	}

	m.input.SetValue("ignored")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(submitted) != 0 {
		t.Errorf("submitted after stop: %v", submitted)
	}

	next, cmd := next.(monitorModel).Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !next.(monitorModel).quitting || cmd == nil {
		t.Error("Esc did not quit")
	}
}
