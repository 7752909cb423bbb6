// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rf24link

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Thermoquad/rfbridge/pkg/radio"
)

// DefaultTimeout bounds one request/response transaction
const DefaultTimeout = 250 * time.Millisecond

// Options configures a Client. Zero values select defaults.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client drives a coprocessor over conn. It implements radio.Radio and
// indicator.Output, and is safe for concurrent use: transactions are
// serialized.
type Client struct {
	conn    io.ReadWriteCloser
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex // one transaction at a time
	seq uint8

	packets   chan *Packet
	done      chan struct{}
	readErr   error
	closeOnce sync.Once
}

// NewClient starts reading from conn. Close the client to release it.
func NewClient(conn io.ReadWriteCloser, opts Options) *Client {
	c := &Client{
		conn:    conn,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		packets: make(chan *Packet, 16),
		done:    make(chan struct{}),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	decoder := NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := c.conn.Read(buf)
		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				c.logger.Debug("link decode error", "error", decodeErr)
				continue
			}
			if packet == nil {
				continue
			}
			select {
			case c.packets <- packet:
			default:
				c.logger.Debug("link response dropped, nobody waiting", "packet", FormatPacket(packet))
			}
		}
		if err != nil {
			c.readErr = err
			close(c.done)
			return
		}
	}
}

// Close closes the connection and waits for the reader to stop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) closedError() error {
	if c.readErr == nil || c.readErr == io.EOF {
		return ErrLinkClosed
	}
	return fmt.Errorf("%w: %v", ErrLinkClosed, c.readErr)
}

// transact sends req and waits for the response carrying its sequence
// number. Responses to earlier, timed out requests are discarded.
func (c *Client) transact(req *Packet, want uint8) (*Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil, c.closedError()
	default:
	}

	c.seq++
	req.seq = c.seq
	op := FormatMessageType(req.Type())

	data, err := Encode(req)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(data); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrLinkClosed, op, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.done:
			return nil, c.closedError()

		case <-timer.C:
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, op, c.timeout)

		case resp := <-c.packets:
			if resp.Seq() != req.seq {
				c.logger.Debug("discarding stale link response",
					"packet", FormatPacket(resp),
					"expected_seq", req.seq)
				continue
			}
			if err := resp.ParseError(); err != nil {
				return nil, fmt.Errorf("%s response: %w", op, err)
			}
			if resp.Type() == MsgError {
				return nil, &RemoteError{Op: op, Code: resp.Code()}
			}
			if resp.Type() != want {
				return nil, fmt.Errorf("%w: %s to %s", ErrUnexpectedResponse, FormatMessageType(resp.Type()), op)
			}
			return resp, nil
		}
	}
}

// command sends a request answered by RESULT
func (c *Client) command(req *Packet) error {
	resp, err := c.transact(req, MsgResult)
	if err != nil {
		return err
	}
	ok, _ := GetMapBool(resp.PayloadMap(), keyOK)
	if !ok {
		return &RemoteError{Op: FormatMessageType(req.Type()), Code: resp.Code()}
	}
	return nil
}

// Begin implements radio.Radio
func (c *Client) Begin(cePin, csnPin uint8) error {
	return c.command(NewBegin(cePin, csnPin))
}

// Configure implements radio.Radio
func (c *Client) Configure(s radio.Settings) error {
	return c.command(NewConfigure(s))
}

// OpenWritingPipe implements radio.Radio
func (c *Client) OpenWritingPipe(address []byte) error {
	return c.command(NewOpenWritingPipe(address))
}

// OpenReadingPipe implements radio.Radio
func (c *Client) OpenReadingPipe(index uint8, address []byte) error {
	return c.command(NewOpenReadingPipe(index, address))
}

// StartListening implements radio.Radio
func (c *Client) StartListening() error {
	return c.command(NewStartListening())
}

// StopListening implements radio.Radio
func (c *Client) StopListening() error {
	return c.command(NewStopListening())
}

// AvailablePipe implements radio.Radio
func (c *Client) AvailablePipe() (bool, uint8, error) {
	resp, err := c.transact(NewAvailable(), MsgAvailableData)
	if err != nil {
		return false, 0, err
	}
	available, _ := GetMapBool(resp.PayloadMap(), keyAvailable)
	pipe, _ := GetMapUint(resp.PayloadMap(), keyPipe)
	return available, uint8(pipe), nil
}

// Read implements radio.Radio. The result is always size bytes long.
func (c *Client) Read(size int) ([]byte, error) {
	resp, err := c.transact(NewRead(size), MsgFrameData)
	if err != nil {
		return nil, err
	}
	data, ok := GetMapBytes(resp.PayloadMap(), keyData)
	if !ok {
		return nil, fmt.Errorf("%w: FRAME_DATA without data", ErrUnexpectedResponse)
	}
	out := make([]byte, size)
	copy(out, data)
	return out, nil
}

// Write implements radio.Radio. A frame the receiver never acknowledged
// yields an error matching radio.ErrTransmitFailed.
func (c *Client) Write(data []byte) error {
	if err := c.command(NewWrite(data)); err != nil {
		return fmt.Errorf("write %s: %w", hex.EncodeToString(data), err)
	}
	return nil
}

// PowerDown implements radio.Radio
func (c *Client) PowerDown() error {
	return c.command(NewPowerDown())
}

// SetPin implements indicator.Output
func (c *Client) SetPin(pin uint8, high bool) error {
	return c.command(NewSetPin(pin, high))
}

// PingResult is the outcome of a Ping
type PingResult struct {
	Uptime time.Duration // coprocessor uptime
	RTT    time.Duration // round trip time
}

// Ping checks that the coprocessor answers.
func (c *Client) Ping() (PingResult, error) {
	start := time.Now()
	resp, err := c.transact(NewPing(), MsgPong)
	if err != nil {
		return PingResult{}, err
	}
	uptime, _ := GetMapUint(resp.PayloadMap(), keyUptime)
	return PingResult{
		Uptime: time.Duration(uptime) * time.Millisecond,
		RTT:    time.Since(start),
	}, nil
}
