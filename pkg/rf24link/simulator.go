// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Thermoquad/rfbridge/pkg/radio"
)

type simFrame struct {
	pipe uint8
	data []byte
}

// Simulator answers link requests the way the coprocessor firmware does,
// backed by an in-memory transceiver. It is used by tests and by the
// monitor's --simulate mode.
type Simulator struct {
	// Echo, when non-zero, re-injects every transmitted frame on that
	// reading pipe.
	Echo uint8

	mu          sync.Mutex
	started     time.Time
	begun       bool
	listening   bool
	poweredDown bool
	failWrites  bool
	settings    radio.Settings
	writing     []byte
	reading     map[uint8][]byte
	rx          []simFrame
	sent        [][]byte
	pins        map[uint8]bool
	toggles     map[uint8]int
	logger      *slog.Logger
}

// NewSimulator creates a powered-off simulated coprocessor
func NewSimulator(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		started: time.Now(),
		reading: make(map[uint8][]byte),
		pins:    make(map[uint8]bool),
		toggles: make(map[uint8]int),
		logger:  logger,
	}
}

// Serve answers requests read from conn until it is closed.
func (s *Simulator) Serve(conn io.ReadWriter) error {
	decoder := NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			req, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				s.logger.Debug("simulator decode error", "error", decodeErr)
				continue
			}
			if req == nil {
				continue
			}
			data, encodeErr := Encode(s.handle(req))
			if encodeErr != nil {
				return encodeErr
			}
			if _, writeErr := conn.Write(data); writeErr != nil {
				return closedOK(writeErr)
			}
		}
		if err != nil {
			return closedOK(err)
		}
	}
}

func closedOK(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Simulator) handle(req *Packet) *Packet {
	seq := req.Seq()
	if req.ParseError() != nil {
		return NewError(seq, CodeInvalidArg)
	}
	m := req.PayloadMap()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Type() {
	case MsgPing:
		return NewPong(seq, uint64(time.Since(s.started).Milliseconds()))

	case MsgSetPin:
		pin, ok := GetMapUint(m, 0)
		high, _ := GetMapBool(m, 1)
		if !ok {
			return NewResult(seq, CodeInvalidArg)
		}
		if s.pins[uint8(pin)] != high {
			s.toggles[uint8(pin)]++
		}
		s.pins[uint8(pin)] = high
		return NewResult(seq, CodeOK)

	case MsgBegin:
		s.begun = true
		s.poweredDown = false
		return NewResult(seq, CodeOK)
	}

	if !s.begun || s.poweredDown {
		return s.requestResponse(req, CodeHardware)
	}

	switch req.Type() {
	case MsgConfigure:
		settings := SettingsFromConfigure(m)
		if settings.Validate() != nil {
			return NewResult(seq, CodeInvalidArg)
		}
		s.settings = settings
		return NewResult(seq, CodeOK)

	case MsgOpenWritingPipe:
		addr, ok := GetMapBytes(m, 0)
		if !ok || len(addr) == 0 {
			return NewResult(seq, CodeInvalidArg)
		}
		s.writing = append([]byte(nil), addr...)
		return NewResult(seq, CodeOK)

	case MsgOpenReadingPipe:
		index, ok1 := GetMapUint(m, 0)
		addr, ok2 := GetMapBytes(m, 1)
		if !ok1 || !ok2 || index < 1 || index > 5 {
			return NewResult(seq, CodeInvalidArg)
		}
		s.reading[uint8(index)] = append([]byte(nil), addr...)
		return NewResult(seq, CodeOK)

	case MsgStartListening:
		s.listening = true
		return NewResult(seq, CodeOK)

	case MsgStopListening:
		s.listening = false
		return NewResult(seq, CodeOK)

	case MsgAvailable:
		frame, ok := s.nextFrame()
		if !ok {
			return NewAvailableData(seq, false, 0)
		}
		return NewAvailableData(seq, true, frame.pipe)

	case MsgRead:
		size, _ := GetMapUint(m, 0)
		frame, ok := s.nextFrame()
		if !ok {
			return NewError(seq, CodeNoData)
		}
		s.rx = s.rx[1:]
		data := make([]byte, size)
		copy(data, frame.data)
		return NewFrameData(seq, data)

	case MsgWrite:
		data, ok := GetMapBytes(m, 0)
		if !ok {
			return NewResult(seq, CodeInvalidArg)
		}
		if s.listening || s.writing == nil {
			return NewResult(seq, CodeInvalidState)
		}
		if s.failWrites {
			return NewResult(seq, CodeTransmitFailed)
		}
		s.sent = append(s.sent, append([]byte(nil), data...))
		if s.Echo != 0 {
			s.rx = append(s.rx, simFrame{pipe: s.Echo, data: append([]byte(nil), data...)})
		}
		return NewResult(seq, CodeOK)

	case MsgPowerDown:
		s.poweredDown = true
		s.listening = false
		return NewResult(seq, CodeOK)
	}

	return NewError(seq, CodeUnknownCommand)
}

// requestResponse answers req with code in the response type the host waits
// for.
func (s *Simulator) requestResponse(req *Packet, code ResultCode) *Packet {
	switch req.Type() {
	case MsgAvailable, MsgRead:
		return NewError(req.Seq(), code)
	}
	return NewResult(req.Seq(), code)
}

// nextFrame returns the oldest frame on an open pipe while listening.
// Frames for closed pipes are dropped.
func (s *Simulator) nextFrame() (simFrame, bool) {
	if !s.listening {
		return simFrame{}, false
	}
	for len(s.rx) > 0 {
		f := s.rx[0]
		if _, open := s.reading[f.pipe]; open {
			return f, true
		}
		s.rx = s.rx[1:]
	}
	return simFrame{}, false
}

// Inject queues a frame as if received over the air on pipe
func (s *Simulator) Inject(pipe uint8, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx = append(s.rx, simFrame{pipe: pipe, data: append([]byte(nil), data...)})
}

// Sent returns every frame transmitted so far
func (s *Simulator) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// SetWriteFailure makes subsequent writes fail as unacknowledged
func (s *Simulator) SetWriteFailure(fail bool) {
	s.mu.Lock()
	s.failWrites = fail
	s.mu.Unlock()
}

// Listening reports whether the transceiver is in receive mode
func (s *Simulator) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// PoweredDown reports whether POWER_DOWN was received since BEGIN
func (s *Simulator) PoweredDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poweredDown
}

// Settings returns the last applied configuration
func (s *Simulator) Settings() radio.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ReadingAddress returns the address opened on a reading pipe
func (s *Simulator) ReadingAddress(index uint8) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.reading[index]
	return addr, ok
}

// PinToggles returns how many times pin changed level
func (s *Simulator) PinToggles(pin uint8) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggles[pin]
}
