// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ============================================================
// Test Fakes
// ============================================================

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	payload interface{}
}

type fakeClient struct {
	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	connected    bool
	connectToken mqtt.Token
	publishToken mqtt.Token
	published    []publishCall
	subscribed   []string
	handler      mqtt.MessageHandler
	disconnects  int
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectToken == nil {
		c.connected = true
		return completedToken(nil)
	}
	return c.connectToken
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishCall{topic, qos, payload})
	if c.publishToken != nil {
		return c.publishToken
	}
	return completedToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	c.handler = callback
	return completedToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return completedToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	return completedToken(nil)
}

func (c *fakeClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func (c *fakeClient) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBus(cfg Config, handler Handler, onFailure func(*DeliveryError)) (*Bus, *fakeClient) {
	fake := &fakeClient{}
	bus := New(cfg, handler, Options{
		Logger:            quietLogger(),
		OnDeliveryFailure: onFailure,
		NewClient: func(o *mqtt.ClientOptions) mqtt.Client {
			fake.opts = o
			return fake
		},
	})
	return bus, fake
}

// ============================================================
// Tests
// ============================================================

func TestNew_Defaults(t *testing.T) {
	bus, fake := newTestBus(Config{Host: "broker.local"}, nil, nil)

	if bus.Broker() != "tcp://broker.local:1883" {
		t.Errorf("Broker() = %s", bus.Broker())
	}
	if !strings.HasPrefix(bus.ClientID(), "rfbridge-") || len(bus.ClientID()) != len("rfbridge-")+36 {
		t.Errorf("ClientID() = %s", bus.ClientID())
	}
	if fake.opts.ClientID != bus.ClientID() {
		t.Errorf("options client id = %s", fake.opts.ClientID)
	}
	if len(fake.opts.Servers) != 1 || fake.opts.Servers[0].Host != "broker.local:1883" {
		t.Errorf("servers = %v", fake.opts.Servers)
	}
	if fake.opts.Username != "" {
		t.Errorf("username set without user: %q", fake.opts.Username)
	}
	if !fake.opts.AutoReconnect {
		t.Error("auto reconnect disabled")
	}
}

func TestNew_Credentials(t *testing.T) {
	_, fake := newTestBus(Config{Host: "h", Port: 8883, User: "bridge", Password: "secret", ClientID: "fixed"}, nil, nil)

	if fake.opts.Username != "bridge" || fake.opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", fake.opts.Username, fake.opts.Password)
	}
	if fake.opts.ClientID != "fixed" {
		t.Errorf("client id = %s", fake.opts.ClientID)
	}
	if fake.opts.Servers[0].Port() != "8883" {
		t.Errorf("port = %s", fake.opts.Servers[0].Port())
	}
}

func TestOnConnect_SubscribesEveryTime(t *testing.T) {
	var got []string
	bus, fake := newTestBus(Config{Host: "h", WriteTopic: "rf/write"}, func(p string) { got = append(got, p) }, nil)

	fake.opts.OnConnect(fake)
	fake.opts.OnConnectionLost(fake, errors.New("network down"))
	if bus.Connected() {
		t.Error("Connected() after connection lost")
	}
	fake.opts.OnConnect(fake)

	if subs := fake.subscriptions(); len(subs) != 2 || subs[0] != "rf/write" {
		t.Errorf("subscriptions = %v", subs)
	}
	if !bus.Connected() {
		t.Error("Connected() = false after reconnect")
	}

	fake.handler(fake, &fakeMessage{topic: "rf/write", payload: []byte("lamp=on")})
	if len(got) != 1 || got[0] != "lamp=on" {
		t.Errorf("handler received %v", got)
	}
}

func TestConnect(t *testing.T) {
	bus, _ := newTestBus(Config{Host: "h"}, nil, nil)
	if err := bus.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !bus.Connected() {
		t.Error("Connected() = false")
	}
}

func TestConnect_Errors(t *testing.T) {
	refused := errors.New("connection refused")

	bus, fake := newTestBus(Config{Host: "h"}, nil, nil)
	fake.connectToken = completedToken(refused)
	if err := bus.Connect(context.Background()); !errors.Is(err, refused) {
		t.Errorf("Connect() = %v, want refused", err)
	}

	bus, fake = newTestBus(Config{Host: "h", ConnectTimeout: 10 * time.Millisecond}, nil, nil)
	fake.connectToken = pendingToken()
	if err := bus.Connect(context.Background()); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("Connect() = %v, want timeout", err)
	}

	bus, fake = newTestBus(Config{Host: "h"}, nil, nil)
	fake.connectToken = pendingToken()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bus.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() = %v, want context.Canceled", err)
	}
}

func TestPublish(t *testing.T) {
	bus, fake := newTestBus(Config{Host: "h", QoS: 1}, nil, func(*DeliveryError) {
		t.Error("unexpected delivery failure")
	})

	if err := bus.Publish("sensors/kitchen", "on"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() before Connect = %v", err)
	}

	if err := bus.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish("sensors/kitchen", "on"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	bus.Disconnect()

	if len(fake.published) != 1 {
		t.Fatalf("published %d messages", len(fake.published))
	}
	call := fake.published[0]
	if call.topic != "sensors/kitchen" || call.payload != "on" || call.qos != 1 {
		t.Errorf("publish call = %+v", call)
	}
	if fake.disconnects != 1 {
		t.Errorf("disconnects = %d", fake.disconnects)
	}
}

func TestPublish_DeliveryFailure(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
	}{
		{"broker error", completedToken(errors.New("not authorized"))},
		{"no acknowledgement", pendingToken()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := make(chan *DeliveryError, 1)
			bus, fake := newTestBus(
				Config{Host: "h", PublishTimeout: 10 * time.Millisecond},
				nil,
				func(e *DeliveryError) { failures <- e },
			)
			bus.Connect(context.Background())
			fake.publishToken = tt.token

			if err := bus.Publish("sensors/a", "1"); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			select {
			case e := <-failures:
				if e.Topic != "sensors/a" || e.Payload != "1" || e.Err == nil {
					t.Errorf("DeliveryError = %+v", e)
				}
				if !strings.Contains(e.Error(), "delivery to sensors/a failed") {
					t.Errorf("Error() = %s", e)
				}
			case <-time.After(time.Second):
				t.Fatal("delivery failure not reported")
			}
			bus.Disconnect()
		})
	}
}
