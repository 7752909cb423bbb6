// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqttbus connects the bridge to an MQTT broker.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Defaults applied by New for zero Config fields
const (
	DefaultPort           = 1883
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultPublishTimeout = 5 * time.Second
	disconnectQuiesce     = 250 // ms
)

// ErrNotConnected is returned by Publish before the first connection
var ErrNotConnected = errors.New("mqtt not connected")

// Config holds the broker settings
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	ClientID       string // empty selects rfbridge-<uuid>
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	QoS            byte

	// WriteTopic is subscribed on every (re)connect; its messages are
	// handed to the Handler.
	WriteTopic string
}

// Handler receives the payload of every message on the write topic. It runs
// on paho's goroutine and must not block.
type Handler func(payload string)

// DeliveryError reports a publish the broker did not acknowledge
type DeliveryError struct {
	Topic   string
	Payload string
	Err     error
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Topic, e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Options holds the optional collaborators of a Bus
type Options struct {
	Logger *slog.Logger

	// OnDeliveryFailure is called from a background goroutine for every
	// publish that was not acknowledged in time.
	OnDeliveryFailure func(*DeliveryError)

	// NewClient builds the paho client; tests replace it.
	NewClient func(*mqtt.ClientOptions) mqtt.Client
}

// Bus publishes bridge messages and feeds write-topic messages back to the
// bridge. It implements bridge.Bus.
type Bus struct {
	cfg       Config
	handler   Handler
	onFailure func(*DeliveryError)
	logger    *slog.Logger
	client    mqtt.Client

	mu        sync.RWMutex
	connected bool

	inflight sync.WaitGroup
}

// New builds a Bus. Nothing is sent until Connect.
func New(cfg Config, handler Handler, opts Options) *Bus {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "rfbridge-" + uuid.NewString()
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	b := &Bus{
		cfg:       cfg,
		handler:   handler,
		onFailure: opts.OnDeliveryFailure,
		logger:    opts.Logger,
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	newClient := opts.NewClient
	if newClient == nil {
		newClient = mqtt.NewClient
	}
	b.client = newClient(b.clientOptions())
	return b
}

// Broker returns the broker URL
func (b *Bus) Broker() string {
	return fmt.Sprintf("tcp://%s:%d", b.cfg.Host, b.cfg.Port)
}

// ClientID returns the MQTT client identifier in use
func (b *Bus) ClientID() string {
	return b.cfg.ClientID
}

func (b *Bus) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.Broker())
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.User != "" {
		opts.SetUsername(b.cfg.User)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetKeepAlive(b.cfg.KeepAlive)
	opts.SetConnectTimeout(b.cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)
	return opts
}

func (b *Bus) onConnect(c mqtt.Client) {
	b.setConnected(true)
	b.logger.Info("mqtt connection established",
		"broker", b.Broker(),
		"client_id", b.cfg.ClientID)

	if b.cfg.WriteTopic == "" {
		return
	}
	// subscribe on every connect, the session is not persistent
	token := c.Subscribe(b.cfg.WriteTopic, b.cfg.QoS, b.onMessage)
	go func() {
		if !token.WaitTimeout(b.cfg.ConnectTimeout) {
			b.logger.Error("mqtt subscribe timeout", "topic", b.cfg.WriteTopic)
			return
		}
		if err := token.Error(); err != nil {
			b.logger.Error("mqtt subscribe failed", "topic", b.cfg.WriteTopic, "error", err)
			return
		}
		b.logger.Info("subscribed to write topic", "topic", b.cfg.WriteTopic, "qos", b.cfg.QoS)
	}()
}

func (b *Bus) onConnectionLost(_ mqtt.Client, err error) {
	b.setConnected(false)
	b.logger.Warn("mqtt connection lost, will auto-reconnect",
		"broker", b.Broker(),
		"error", err)
}

func (b *Bus) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())
	b.logger.Info("write message received", "topic", msg.Topic(), "payload", payload)
	if b.handler != nil {
		b.handler(payload)
	}
}

func (b *Bus) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

// Connected reports whether the broker connection is up
func (b *Bus) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Connect opens the broker connection and waits for it, up to the connect
// timeout or until ctx is done.
func (b *Bus) Connect(ctx context.Context) error {
	b.logger.Info("connecting to mqtt broker", "broker", b.Broker(), "client_id", b.cfg.ClientID)

	token := b.client.Connect()
	timer := time.NewTimer(b.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("mqtt connection to %s: timeout after %s", b.Broker(), b.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection to %s: %w", b.Broker(), err)
	}
	b.setConnected(true)
	return nil
}

// Publish sends payload to topic without waiting for the acknowledgement.
// Delivery failures are logged and passed to Options.OnDeliveryFailure.
func (b *Bus) Publish(topic, payload string) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}

	token := b.client.Publish(topic, b.cfg.QoS, false, payload)

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()

		var err error
		if !token.WaitTimeout(b.cfg.PublishTimeout) {
			err = fmt.Errorf("no acknowledgement after %s", b.cfg.PublishTimeout)
		} else {
			err = token.Error()
		}
		if err == nil {
			b.logger.Debug("message delivered", "topic", topic)
			return
		}

		derr := &DeliveryError{Topic: topic, Payload: payload, Err: err}
		b.logger.Error("mqtt delivery failed", "topic", topic, "payload", payload, "error", err)
		if b.onFailure != nil {
			b.onFailure(derr)
		}
	}()
	return nil
}

// Disconnect waits for outstanding deliveries and closes the connection.
func (b *Bus) Disconnect() {
	b.inflight.Wait()
	wasOpen := b.client.IsConnectionOpen()
	// also stops a connect retry still in progress
	b.client.Disconnect(disconnectQuiesce)
	if wasOpen {
		b.logger.Info("mqtt disconnected")
	}
	b.setConnected(false)
}
